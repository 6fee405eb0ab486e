package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

// fakeSource feeds PCM bytes through a pipe so the drain loop sees the same
// chunking behaviour as a subprocess stdout.
type fakeSource struct {
	pr *io.PipeReader
	pw *io.PipeWriter
}

func newFakeSource() *fakeSource {
	pr, pw := io.Pipe()
	return &fakeSource{pr: pr, pw: pw}
}

func (s *fakeSource) Open(context.Context) (io.ReadCloser, error) {
	return s.pr, nil
}

func (s *fakeSource) write(t *testing.T, b []byte) {
	t.Helper()
	if _, err := s.pw.Write(b); err != nil {
		t.Fatalf("pipe write: %v", err)
	}
}

type failingSource struct{ err error }

func (s failingSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, s.err
}

// pcm16 encodes int16 samples as little-endian bytes.
func pcm16(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// waitForSamples polls until the recorder has buffered at least n samples.
func waitForSamples(t *testing.T, r *Recorder, n int) []float32 {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d samples", n)
		case <-time.After(5 * time.Millisecond):
		}
		r.mu.Lock()
		got := len(r.buf)
		r.mu.Unlock()
		if got >= n {
			out := r.Stop()
			return out
		}
	}
}

func TestRecorderStartBeforeOpen(t *testing.T) {
	t.Parallel()

	r := NewRecorder(newFakeSource(), 16000)
	if err := r.Start(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Start before Open: err = %v, want ErrNotOpen", err)
	}
}

func TestRecorderOpenPropagatesSourceError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("no such device")
	r := NewRecorder(failingSource{err: wantErr}, 16000)
	if err := r.Open(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Open err = %v, want %v", err, wantErr)
	}
}

func TestRecorderBuffersOnlyWhileArmed(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	r := NewRecorder(src, 16000)
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	// Samples before Start must be drained and discarded.
	src.write(t, pcm16(100, 200, 300))
	time.Sleep(50 * time.Millisecond)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.write(t, pcm16(16384, -16384))

	got := waitForSamples(t, r, 2)
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2", len(got))
	}
	if got[0] != 0.5 || got[1] != -0.5 {
		t.Errorf("samples = %v, want [0.5 -0.5]", got)
	}
}

func TestRecorderStopWithoutAudioReturnsEmpty(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	r := NewRecorder(src, 16000)
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := r.Stop()
	if len(got) != 0 {
		t.Errorf("got %d samples, want 0", len(got))
	}
}

func TestRecorderStartClearsPreviousRun(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	r := NewRecorder(src, 16000)
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.write(t, pcm16(1000, 2000))
	_ = waitForSamples(t, r, 2)

	// Second run must not see the first run's samples.
	if err := r.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	src.write(t, pcm16(3000))
	got := waitForSamples(t, r, 1)
	if len(got) != 1 {
		t.Errorf("second run got %d samples, want 1", len(got))
	}
}

func TestRecorderMaxDurationCap(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	// 1ms at 16kHz = 16 samples.
	r := NewRecorder(src, 16000, WithMaxDuration(time.Millisecond))
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	samples := make([]int16, 100)
	src.write(t, pcm16(samples...))

	got := waitForSamples(t, r, 16)
	if len(got) != 16 {
		t.Errorf("got %d samples, want cap of 16", len(got))
	}
}

func TestRecorderOddChunkBoundaries(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	r := NewRecorder(src, 16000)
	if err := r.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Split one sample across two writes.
	full := pcm16(16384, -16384, 8192)
	src.write(t, full[:3])
	time.Sleep(20 * time.Millisecond)
	src.write(t, full[3:])

	got := waitForSamples(t, r, 3)
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	if got[0] != 0.5 || got[1] != -0.5 || got[2] != 0.25 {
		t.Errorf("samples = %v", got)
	}
}

func TestRecorderDuration(t *testing.T) {
	t.Parallel()

	r := NewRecorder(newFakeSource(), 16000)
	if got := r.Duration(8000); got != 500*time.Millisecond {
		t.Errorf("Duration(8000) = %v, want 500ms", got)
	}
	if got := r.Duration(0); got != 0 {
		t.Errorf("Duration(0) = %v, want 0", got)
	}
}

func TestRecorderCloseIsSafeWithoutOpen(t *testing.T) {
	t.Parallel()

	r := NewRecorder(newFakeSource(), 16000)
	if err := r.Close(); err != nil {
		t.Errorf("Close without Open: %v", err)
	}
}

func TestAppendPCM16(t *testing.T) {
	t.Parallel()

	got := appendPCM16(nil, pcm16(0, 32767, -32768))
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 0 {
		t.Errorf("got[0] = %v, want 0", got[0])
	}
	if got[1] <= 0.99 || got[1] >= 1 {
		t.Errorf("got[1] = %v, want just below 1", got[1])
	}
	if got[2] != -1 {
		t.Errorf("got[2] = %v, want -1", got[2])
	}
}
