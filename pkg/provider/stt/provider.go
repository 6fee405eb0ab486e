// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A transcriber wraps a batch speech recogniser (e.g., a local whisper.cpp
// model) and exposes a uniform interface: load the model once at startup,
// transcribe one complete utterance at a time, and release the model on
// shutdown. Push-to-talk dictation is inherently batch-shaped — the full
// utterance is available the moment the trigger key is released — so the
// interface deliberately has no streaming surface.
//
// Implementations must be safe for concurrent use, although the pipeline
// coordinator only ever runs one transcription at a time.
package stt

import (
	"context"
	"errors"
)

// ErrNotLoaded is returned by Transcribe when Load has not been called or
// has failed. Callers should treat it as a programming error, not a
// transient condition.
var ErrNotLoaded = errors.New("stt: model not loaded")

// ErrClosed is returned by Transcribe after Close has released the model.
var ErrClosed = errors.New("stt: transcriber closed")

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Load acquires the model. It is called exactly once during startup
	// warmup and may take seconds for large local models. A Load error is
	// fatal for the application.
	Load(ctx context.Context) error

	// Transcribe converts one utterance of mono float32 PCM (normalised to
	// [-1, 1]) at the given sample rate into text. The returned string may
	// be empty when the audio contains no recognisable speech. Implementors
	// must respect ctx cancellation.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)

	// Close releases the model and any native resources. Calling Close more
	// than once is safe and returns nil.
	Close() error
}
