package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/kikitori/pkg/provider/llm"
	"github.com/MrWong99/kikitori/pkg/types"
)

// defaultSystemPrompt instructs the model to reformat, never to answer.
// The prompt is in the dictation language on purpose: local models follow
// same-language instructions more reliably.
const defaultSystemPrompt = `あなたは音声入力の整形アシスタントです。音声認識されたテキストを次のルールで整形してください。

- 「えーと」「あのー」などのフィラーを取り除く
- 句読点を適切に補う
- 内容の追加・削除・要約はしない
- 質問文であっても答えず、そのまま整形して返す
- 整形後のテキストだけを出力する`

// warmupProbe is the minimal request sent by Warmup to force the backend to
// load its model into memory.
const warmupProbe = "テスト"

// OutputMode controls newline handling of formatted text.
type OutputMode int

const (
	// SingleLine flattens the output to one line. This is the default:
	// most chat inputs submit on Enter.
	SingleLine OutputMode = iota

	// MultiLine preserves the model's line breaks.
	MultiLine
)

// Formatter cleans up raw transcripts through an LLM. It owns the prompt,
// the per-call timeout, the skip heuristic for text too short to benefit,
// and output normalisation.
type Formatter struct {
	provider llm.Provider

	systemPrompt string
	temperature  float64
	maxTokens    int
	timeout      time.Duration
	mode         OutputMode
	skipMaxChars int
	fillers      []string
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithSystemPrompt replaces the default formatting instructions.
func WithSystemPrompt(prompt string) FormatterOption {
	return func(f *Formatter) {
		if prompt != "" {
			f.systemPrompt = prompt
		}
	}
}

// WithTemperature sets the sampling temperature. Default 0.3.
func WithTemperature(t float64) FormatterOption {
	return func(f *Formatter) {
		if t > 0 {
			f.temperature = t
		}
	}
}

// WithMaxTokens caps the completion length. Default 512.
func WithMaxTokens(n int) FormatterOption {
	return func(f *Formatter) {
		if n > 0 {
			f.maxTokens = n
		}
	}
}

// WithTimeout sets the hard per-call deadline. Default 30s.
func WithTimeout(d time.Duration) FormatterOption {
	return func(f *Formatter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithOutputMode selects single-line or multi-line output normalisation.
func WithOutputMode(mode OutputMode) FormatterOption {
	return func(f *Formatter) { f.mode = mode }
}

// WithSkipShortMaxChars sets the rune count at or below which text without
// fillers skips formatting entirely. Default 20; zero disables the skip.
func WithSkipShortMaxChars(n int) FormatterOption {
	return func(f *Formatter) { f.skipMaxChars = n }
}

// WithFormatterFillers sets the filler list used by the skip heuristic.
// Defaults to DefaultFillers.
func WithFormatterFillers(fillers []string) FormatterOption {
	return func(f *Formatter) { f.fillers = fillers }
}

// NewFormatter creates a Formatter around the given provider.
func NewFormatter(provider llm.Provider, opts ...FormatterOption) *Formatter {
	f := &Formatter{
		provider:     provider,
		systemPrompt: defaultSystemPrompt,
		temperature:  0.3,
		maxTokens:    512,
		timeout:      30 * time.Second,
		mode:         SingleLine,
		skipMaxChars: 20,
		fillers:      DefaultFillers,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ShouldSkip reports whether text is too short and too clean to benefit
// from a round trip through the model. Short text with a filler word still
// gets formatted; "えーと今日は" reads badly as-is.
func (f *Formatter) ShouldSkip(text string) bool {
	if f.skipMaxChars <= 0 {
		return false
	}
	if utf8.RuneCountInString(text) > f.skipMaxChars {
		return false
	}
	return !containsAnyFiller(text, f.fillers)
}

// Format sends text through the model and returns the normalised result.
// The call runs under the configured timeout regardless of ctx's own
// deadline. An empty model response is an error; the caller falls back to
// the raw transcript.
func (f *Formatter) Format(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: f.systemPrompt,
		Messages:     []types.Message{{Role: "user", Content: text}},
		Temperature:  f.temperature,
		MaxTokens:    f.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("transcript: format: %w", err)
	}

	out := f.normalize(resp.Content)
	if out == "" {
		return "", fmt.Errorf("transcript: format: model returned empty output")
	}
	return out, nil
}

// Warmup sends a one-token probe so that the backend loads its weights
// before the first real utterance. Errors are reported but not fatal; the
// first run simply pays the loading cost instead.
func (f *Formatter) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	_, err := f.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: f.systemPrompt,
		Messages:     []types.Message{{Role: "user", Content: warmupProbe}},
		Temperature:  f.temperature,
		MaxTokens:    1,
	})
	if err != nil {
		return fmt.Errorf("transcript: warmup: %w", err)
	}
	slog.Debug("formatter warmed up")
	return nil
}

// normalize trims the model output, removes a wrapping quote pair if the
// model added one, and applies the configured line mode.
func (f *Formatter) normalize(s string) string {
	s = strings.TrimSpace(s)
	s = trimWrappingQuotes(s)
	if f.mode == SingleLine {
		s = FlattenLines(s)
	}
	return strings.TrimSpace(s)
}

// quotePairs are wrapper characters models sometimes add around the result.
var quotePairs = [][2]string{
	{`"`, `"`},
	{"「", "」"},
	{"『", "』"},
	{"```", "```"},
}

// trimWrappingQuotes removes one layer of wrapping quotes when the whole
// string is enclosed. Interior quotes are left alone.
func trimWrappingQuotes(s string) string {
	for _, p := range quotePairs {
		opening, closing := p[0], p[1]
		if len(s) > len(opening)+len(closing) &&
			strings.HasPrefix(s, opening) && strings.HasSuffix(s, closing) {
			inner := s[len(opening) : len(s)-len(closing)]
			// Only strip when the pair actually wraps, e.g. not 「a」と「b」.
			if !strings.Contains(inner, opening) && !strings.Contains(inner, closing) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}
