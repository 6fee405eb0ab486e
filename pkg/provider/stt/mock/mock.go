// Package mock provides a test double for the stt.Transcriber interface.
//
// Use Transcriber to script recognition results and inspect the audio the
// pipeline delivered:
//
//	tr := &mock.Transcriber{Text: "こんにちは"}
//	coordinator := pipeline.New(..., tr, ...)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is the PCM buffer passed to Transcribe.
	Samples []float32
	// SampleRate is the sample rate passed to Transcribe.
	SampleRate int
}

// Transcriber is a scriptable stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by Transcribe when TranscribeFunc is nil.
	Text string

	// LoadErr, TranscribeErr, and CloseErr are returned by the respective
	// methods when non-nil.
	LoadErr       error
	TranscribeErr error
	CloseErr      error

	// TranscribeFunc, when set, overrides Text/TranscribeErr entirely.
	TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int) (string, error)

	// Recorded state.
	LoadCalls  int
	CloseCalls int
	Calls      []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Load implements stt.Transcriber.
func (t *Transcriber) Load(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LoadCalls++
	return t.LoadErr
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, TranscribeCall{Samples: samples, SampleRate: sampleRate})
	fn := t.TranscribeFunc
	text, err := t.Text, t.TranscribeErr
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples, sampleRate)
	}
	return text, err
}

// Close implements stt.Transcriber.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCalls++
	return t.CloseErr
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
