package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ErrNotOpen is returned by Start when the recorder has no open stream.
var ErrNotOpen = errors.New("capture: recorder not open")

// Recorder buffers samples from a continuously running Source. The stream is
// read at all times to keep the subprocess pipe drained; samples are kept
// only between Start and Stop.
type Recorder struct {
	source     Source
	sampleRate int
	maxSamples int

	mu      sync.Mutex
	armed   bool
	buf     []float32
	dropped bool
	stream  io.ReadCloser
	readErr error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithMaxDuration caps how much audio a single recording may accumulate.
// Past the cap new samples are dropped; capture keeps running. Default 120s.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.maxSamples = int(d.Seconds() * float64(r.sampleRate))
		}
	}
}

// NewRecorder creates a recorder for the given source. Call Open before
// Start.
func NewRecorder(source Source, sampleRate int, opts ...RecorderOption) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	r := &Recorder{
		source:     source,
		sampleRate: sampleRate,
		maxSamples: 120 * sampleRate,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SampleRate returns the configured capture rate in Hz.
func (r *Recorder) SampleRate() int { return r.sampleRate }

// Open starts the source stream and the background drain loop. The stream
// stays open until Close; push-to-talk latency must not include device
// startup.
func (r *Recorder) Open(ctx context.Context) error {
	stream, err := r.source.Open(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.stream = stream
	r.readErr = nil
	r.mu.Unlock()

	go r.drain(stream)
	return nil
}

// drain reads the stream until it ends, appending to the buffer only while
// armed. An odd trailing byte is carried into the next read so sample
// boundaries survive arbitrary pipe chunking.
func (r *Recorder) drain(stream io.Reader) {
	scratch := make([]byte, 4096)
	var carry []byte

	for {
		n, err := stream.Read(scratch)
		if n > 0 {
			chunk := scratch[:n]
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}
			if len(chunk)%2 != 0 {
				carry = []byte{chunk[len(chunk)-1]}
				chunk = chunk[:len(chunk)-1]
			}
			r.append(chunk)
		}
		if err != nil {
			r.mu.Lock()
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				r.readErr = err
				slog.Warn("capture stream ended", "err", err)
			}
			r.mu.Unlock()
			return
		}
	}
}

func (r *Recorder) append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return
	}
	room := r.maxSamples - len(r.buf)
	if room <= 0 {
		if !r.dropped {
			r.dropped = true
			slog.Warn("recording hit the duration cap; dropping further samples",
				"max_seconds", float64(r.maxSamples)/float64(r.sampleRate))
		}
		return
	}
	if len(chunk)/2 > room {
		chunk = chunk[:room*2]
	}
	r.buf = appendPCM16(r.buf, chunk)
}

// Start arms buffering. The buffer is cleared so a run never sees samples
// from before its own press.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream == nil {
		return ErrNotOpen
	}
	if r.readErr != nil {
		return fmt.Errorf("capture: stream broken: %w", r.readErr)
	}
	r.armed = true
	r.dropped = false
	r.buf = r.buf[:0]
	return nil
}

// Stop disarms buffering and returns the accumulated samples. The returned
// slice is owned by the caller; the recorder keeps none of it. Returns an
// empty slice when nothing was buffered.
func (r *Recorder) Stop() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = false
	out := make([]float32, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]
	return out
}

// Duration converts a sample count into wall time at the capture rate.
func (r *Recorder) Duration(samples int) time.Duration {
	return time.Duration(float64(samples) / float64(r.sampleRate) * float64(time.Second))
}

// Close stops the source stream. Safe to call with no stream open.
func (r *Recorder) Close() error {
	r.mu.Lock()
	stream := r.stream
	r.stream = nil
	r.armed = false
	r.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Close()
}
