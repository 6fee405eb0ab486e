// Package transcript screens, repairs, formats, and validates speech-to-text
// output for the dictation pipeline.
//
// The flow per utterance is: [Replacer] fixes known recognition errors,
// [Filter] drops hallucinated transcripts entirely, [Formatter] asks an LLM
// to clean up fillers and punctuation, and [Validator] decides whether the
// model actually reformatted the text or answered it as a question. Each
// stage is independent and separately testable; the pipeline coordinator
// wires them together.
package transcript

import (
	"log/slog"
	"time"

	"github.com/antzucaro/matchr"
)

// RejectReason classifies why the filter discarded a transcript. The empty
// string means the transcript passed.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectBoilerplate    RejectReason = "boilerplate"
	RejectRepetition     RejectReason = "repetition"
	RejectScriptMismatch RejectReason = "script_mismatch"
	RejectDensity        RejectReason = "density"
)

// DefaultBoilerplate lists phrases whisper models hallucinate on silence or
// noise-only audio. They are overwhelmingly YouTube outro lines because of
// the training data. Matching is containment on normalised text plus a
// near-match pass for garbled variants.
var DefaultBoilerplate = []string{
	"ご視聴ありがとうございました",
	"ご視聴いただきありがとうございます",
	"チャンネル登録お願いします",
	"チャンネル登録よろしくお願いします",
	"高評価お願いします",
	"コメント欄で教えてください",
	"次の動画でお会いしましょう",
	"最後までご視聴頂きありがとうございました",
	"おやすみなさい",
}

// simplifiedOnlyRunes are hanzi forms used in simplified Chinese but not in
// Japanese writing. A Japanese-language whisper run emitting any of these
// has drifted into the wrong script, which in practice means the audio was
// noise. Characters shared with Japanese shinjitai (学, 当, 体, ...) are
// deliberately absent.
const simplifiedOnlyRunes = "这们么对时电买东车红发让认识还进远运门问间样气张书见现观觉测试说话语读写乐爱绝终给结经绿"

// Filter screens raw speech-to-text output for hallucination artefacts.
// A zero-configured Filter (from NewFilter with no options) uses the
// defaults tuned for Japanese whisper output.
type Filter struct {
	phrases      [][]rune // normalised boilerplate phrases
	rawPhrases   []string
	nearMatchMin float64

	minRepeatLen int
	minRepeats   int

	maxCharsPerSec float64
	densityWindow  time.Duration
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithBoilerplate replaces the default hallucination phrase list.
func WithBoilerplate(phrases []string) FilterOption {
	return func(f *Filter) {
		f.rawPhrases = phrases
	}
}

// WithNearMatchThreshold sets the Jaro-Winkler score at or above which a
// whole transcript counts as a garbled boilerplate phrase. Default 0.93.
func WithNearMatchThreshold(min float64) FilterOption {
	return func(f *Filter) {
		if min > 0 {
			f.nearMatchMin = min
		}
	}
}

// WithRepetitionRule tunes the stuck-decoder check: a substring of at least
// minLen runes repeated at least minCount times consecutively rejects the
// transcript. Defaults: 2 and 3.
func WithRepetitionRule(minLen, minCount int) FilterOption {
	return func(f *Filter) {
		if minLen > 0 {
			f.minRepeatLen = minLen
		}
		if minCount > 1 {
			f.minRepeats = minCount
		}
	}
}

// WithDensityRule tunes the implausible-speed check: audio shorter than
// window with more than maxCPS recognised characters per second rejects the
// transcript. Defaults: 15 chars/sec under 3 seconds.
func WithDensityRule(maxCPS float64, window time.Duration) FilterOption {
	return func(f *Filter) {
		if maxCPS > 0 {
			f.maxCharsPerSec = maxCPS
		}
		if window > 0 {
			f.densityWindow = window
		}
	}
}

// NewFilter creates a Filter with Japanese-tuned defaults, adjusted by opts.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{
		rawPhrases:     DefaultBoilerplate,
		nearMatchMin:   0.93,
		minRepeatLen:   2,
		minRepeats:     3,
		maxCharsPerSec: 15,
		densityWindow:  3 * time.Second,
	}
	for _, o := range opts {
		o(f)
	}
	f.phrases = make([][]rune, 0, len(f.rawPhrases))
	for _, p := range f.rawPhrases {
		if n := normalizeForComparison(p); len(n) > 0 {
			f.phrases = append(f.phrases, n)
		}
	}
	return f
}

// Screen inspects text against all hallucination rules in order and returns
// the first matching rejection, or RejectNone when the transcript is
// plausible. audioDuration is the length of the captured utterance; pass
// zero to skip the density rule.
func (f *Filter) Screen(text string, audioDuration time.Duration) RejectReason {
	norm := normalizeForComparison(text)
	if len(norm) == 0 {
		return RejectNone
	}

	if f.matchesBoilerplate(norm) {
		slog.Debug("transcript rejected as boilerplate", "text", text)
		return RejectBoilerplate
	}
	if hasConsecutiveRepeats(norm, f.minRepeatLen, f.minRepeats) {
		slog.Debug("transcript rejected for repetition", "text", text)
		return RejectRepetition
	}
	if containsForeignScript(text) {
		slog.Debug("transcript rejected for script mismatch", "text", text)
		return RejectScriptMismatch
	}
	if f.isImplausiblyDense(norm, audioDuration) {
		slog.Debug("transcript rejected for density",
			"chars", len(norm), "duration", audioDuration)
		return RejectDensity
	}
	return RejectNone
}

// matchesBoilerplate reports whether the normalised transcript contains a
// known phrase, or is a whole-string near match of one.
func (f *Filter) matchesBoilerplate(norm []rune) bool {
	s := string(norm)
	for _, p := range f.phrases {
		if containsRunes(norm, p) {
			return true
		}
		// Near match only makes sense when the whole utterance is roughly
		// phrase-sized; a long dictation that mentions a similar phrase in
		// passing should survive.
		if len(norm) <= len(p)+4 {
			if matchr.JaroWinkler(s, string(p), false) >= f.nearMatchMin {
				return true
			}
		}
	}
	return false
}

// containsRunes reports whether needle occurs as a contiguous subsequence
// of haystack.
func containsRunes(haystack, needle []rune) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// hasConsecutiveRepeats reports whether any substring of at least minLen
// runes repeats at least minCount times back to back. Whisper decoders that
// get stuck emit exactly this shape ("そうですそうですそうです...").
func hasConsecutiveRepeats(runes []rune, minLen, minCount int) bool {
	n := len(runes)
	for i := 0; i < n; i++ {
		maxLen := (n - i) / minCount
		for l := minLen; l <= maxLen; l++ {
			count := 1
			for count < minCount {
				start := i + count*l
				if !runesEqual(runes[i:i+l], runes[start:start+l]) {
					break
				}
				count++
			}
			if count >= minCount {
				return true
			}
		}
	}
	return false
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// containsForeignScript reports whether text contains simplified-Chinese
// character forms that never appear in Japanese writing.
func containsForeignScript(text string) bool {
	for _, r := range text {
		for _, bad := range simplifiedOnlyRunes {
			if r == bad {
				return true
			}
		}
	}
	return false
}

// isImplausiblyDense reports whether the character rate exceeds what a
// human can speak in a short clip. Long recordings are exempt because the
// average over a long utterance is already self-limiting.
func (f *Filter) isImplausiblyDense(norm []rune, audioDuration time.Duration) bool {
	if audioDuration <= 0 || audioDuration >= f.densityWindow {
		return false
	}
	cps := float64(len(norm)) / audioDuration.Seconds()
	return cps > f.maxCharsPerSec
}
