package transcript

import "log/slog"

// Verdict is the validator's decision about a formatted transcript.
type Verdict struct {
	// Valid reports whether the output is a plausible reformatting of the
	// input. When false the caller must fall back to the raw transcript.
	Valid bool

	// Reason labels the failing (or barely-passing) rule for logs and
	// metrics: "echo_answer", "novel_content", "low_similarity_accepted".
	Reason string

	// Ratio is the similarity score the decision was based on.
	Ratio float64
}

// Validator decides whether a cleanup model reformatted the input or
// answered it. An LLM given a question-shaped transcript will sometimes
// helpfully reply instead of reformatting; inserting the reply into the
// user's document would be much worse than inserting the raw transcript.
type Validator struct {
	similarityMin  float64
	noveltyMax     float64
	growthFraction float64
	growthMinRunes int
	fillers        []string
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithSimilarityThreshold sets the minimum Ratcliff/Obershelp ratio at which
// an output counts as a reformatting of the input. Default 0.5.
func WithSimilarityThreshold(min float64) ValidatorOption {
	return func(v *Validator) {
		if min > 0 {
			v.similarityMin = min
		}
	}
}

// WithNoveltyCeiling sets the maximum fraction of output content runes that
// may be absent from the input before the output is rejected. Default 0.5.
func WithNoveltyCeiling(max float64) ValidatorOption {
	return func(v *Validator) {
		if max > 0 {
			v.noveltyMax = max
		}
	}
}

// WithFillers sets the filler-word list used for the second-chance
// similarity pass. Defaults to DefaultFillers.
func WithFillers(fillers []string) ValidatorOption {
	return func(v *Validator) { v.fillers = fillers }
}

// NewValidator creates a Validator with the default thresholds, adjusted by
// opts.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		similarityMin:  0.5,
		noveltyMax:     0.5,
		growthFraction: 0.3,
		growthMinRunes: 5,
		fillers:        DefaultFillers,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate decides whether output is a reformatting of input.
//
// The rules run in order:
//  1. An empty normalised input validates anything (nothing to compare).
//  2. High similarity passes, unless the output outgrew the input by more
//     than max(growthFraction×len(input), growthMinRunes) runes — that
//     shape is the model echoing the input and then appending an answer.
//  3. Low similarity gets a second chance with fillers stripped from the
//     input, since heavy filler removal legitimately destroys similarity.
//  4. Output whose content runes are mostly absent from the input is an
//     answer, not a reformatting.
//  5. Anything else passes with a warning log; between the thresholds the
//     cheaper mistake is keeping the model's output.
func (v *Validator) Validate(input, output string) Verdict {
	in := normalizeForComparison(input)
	if len(in) == 0 {
		return Verdict{Valid: true, Ratio: 1}
	}
	out := normalizeForComparison(output)

	ratio := similarityRatio(in, out)
	if ratio >= v.similarityMin {
		growth := len(out) - len(in)
		limit := int(v.growthFraction * float64(len(in)))
		if limit < v.growthMinRunes {
			limit = v.growthMinRunes
		}
		if growth > limit {
			slog.Info("format output rejected: echo plus answer",
				"ratio", ratio, "growth", growth, "limit", limit)
			return Verdict{Valid: false, Reason: "echo_answer", Ratio: ratio}
		}
		return Verdict{Valid: true, Ratio: ratio}
	}

	// Second chance: similarity without fillers. A transcript that is
	// mostly hesitation markers shrinks a lot under legitimate cleanup.
	stripped := normalizeForComparison(stripFillers(input, v.fillers))
	if len(stripped) > 0 {
		if r := similarityRatio(stripped, out); r >= v.similarityMin {
			return Verdict{Valid: true, Ratio: r}
		}
	}

	if novel := noveltyRatio(input, output); novel > v.noveltyMax {
		slog.Info("format output rejected: novel content",
			"ratio", ratio, "novelty", novel)
		return Verdict{Valid: false, Reason: "novel_content", Ratio: ratio}
	}

	slog.Warn("format output has low similarity but passes remaining checks",
		"ratio", ratio)
	return Verdict{Valid: true, Reason: "low_similarity_accepted", Ratio: ratio}
}

// noveltyRatio is the fraction of content runes in output that do not occur
// anywhere in input. 0 means every output rune exists in the input; 1 means
// the output shares nothing with it.
func noveltyRatio(input, output string) float64 {
	outRunes := contentRunes(output)
	if len(outRunes) == 0 {
		return 0
	}
	seen := make(map[rune]bool)
	for _, r := range contentRunes(input) {
		seen[r] = true
	}
	novel := 0
	for _, r := range outRunes {
		if !seen[r] {
			novel++
		}
	}
	return float64(novel) / float64(len(outRunes))
}
