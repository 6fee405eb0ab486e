// Package whisper provides a Transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

const defaultLanguage = "ja"

// Compile-time assertion that Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber using the whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once in
// Load and shared across all inferences; each Transcribe call creates its
// own whisper.cpp context because contexts are not thread-safe while the
// model is.
type Transcriber struct {
	modelPath   string
	language    string
	translate   bool
	initialText string

	mu     sync.Mutex
	model  whisperlib.Model
	closed bool
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the recognition language code (e.g., "ja", "en", "de").
// Defaults to "ja".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithTranslate enables whisper's translate-to-English mode.
func WithTranslate(enabled bool) Option {
	return func(t *Transcriber) { t.translate = enabled }
}

// WithInitialPrompt sets a text prompt fed to the decoder before the audio.
// A short in-domain sentence biases the model toward the expected register
// and punctuation style.
func WithInitialPrompt(text string) Option {
	return func(t *Transcriber) { t.initialText = text }
}

// New creates a Transcriber for the model file at modelPath. The model is
// not loaded until Load is called, so New is cheap and never touches disk.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	t := &Transcriber{
		modelPath: modelPath,
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Load reads the model file and initialises the native whisper context
// pool. Loading a large model can take several seconds; run it during
// startup warmup rather than on the first utterance.
func (t *Transcriber) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("whisper: load cancelled: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return stt.ErrClosed
	}
	if t.model != nil {
		return nil
	}

	model, err := whisperlib.New(t.modelPath)
	if err != nil {
		return fmt.Errorf("whisper: load model %q: %w", t.modelPath, err)
	}
	t.model = model
	slog.Info("whisper model loaded", "path", t.modelPath, "language", t.language)
	return nil
}

// Transcribe runs whisper.cpp inference over one utterance and returns the
// concatenated segment text.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	t.mu.Lock()
	model := t.model
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return "", stt.ErrClosed
	}
	if model == nil {
		return "", stt.ErrNotLoaded
	}
	if len(samples) == 0 {
		return "", nil
	}
	if sampleRate != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper: unsupported sample rate %d (model expects %d)", sampleRate, whisperlib.SampleRate)
	}

	// Each inference gets a fresh context; contexts are not thread-safe but
	// the model can be shared.
	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", t.language, "error", err)
	}
	wctx.SetTranslate(t.translate)
	if t.initialText != "" {
		wctx.SetInitialPrompt(t.initialText)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Close releases the whisper model. Safe to call more than once.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.model != nil {
		err := t.model.Close()
		t.model = nil
		return err
	}
	return nil
}
