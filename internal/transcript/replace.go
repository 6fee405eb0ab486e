package transcript

import (
	"sort"
	"strings"
)

// Replacer applies a fixed word-substitution table to raw transcripts.
// Speech recognisers reliably mangle the same proper nouns and technical
// terms; a replacement table fixes those before any further processing.
type Replacer struct {
	pairs []replacement
}

type replacement struct {
	from, to string
}

// NewReplacer builds a Replacer from a substitution table. Longer keys are
// applied first so that an entry for a compound term wins over an entry for
// one of its parts.
func NewReplacer(table map[string]string) *Replacer {
	pairs := make([]replacement, 0, len(table))
	for from, to := range table {
		if from == "" {
			continue
		}
		pairs = append(pairs, replacement{from: from, to: to})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].from) != len(pairs[j].from) {
			return len(pairs[i].from) > len(pairs[j].from)
		}
		return pairs[i].from < pairs[j].from
	})
	return &Replacer{pairs: pairs}
}

// Apply performs all substitutions on text and returns the result.
func (r *Replacer) Apply(text string) string {
	for _, p := range r.pairs {
		text = strings.ReplaceAll(text, p.from, p.to)
	}
	return text
}

// Len returns the number of active substitution pairs.
func (r *Replacer) Len() int { return len(r.pairs) }

// DefaultFillers are spoken Japanese hesitation markers. Text containing
// any of them benefits from LLM cleanup even when short; text without them
// is usually fine as recognised.
var DefaultFillers = []string{
	"えーと", "えっと", "えー", "あのー", "あの、", "まあ", "そのー", "なんか", "うーん",
}

// containsAnyFiller reports whether text contains at least one of the
// given filler words.
func containsAnyFiller(text string, fillers []string) bool {
	for _, f := range fillers {
		if f != "" && strings.Contains(text, f) {
			return true
		}
	}
	return false
}

// stripFillers removes every occurrence of the given filler words from text.
func stripFillers(text string, fillers []string) string {
	for _, f := range fillers {
		if f != "" {
			text = strings.ReplaceAll(text, f, "")
		}
	}
	return text
}

// FlattenLines converts a multi-line string into a single line: newlines
// become spaces and runs of whitespace collapse to one space. Used when the
// output format is configured as single-line, since edit controls treat a
// newline as "submit" in many chat applications.
func FlattenLines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
