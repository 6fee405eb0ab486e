// Package capture owns the microphone stream. One ffmpeg subprocess stays
// open for the process lifetime emitting raw s16le PCM; the Recorder buffers
// samples only while a push-to-talk hold is active, so starting a recording
// never pays device-open latency.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Source provides a continuous raw PCM byte stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FFmpegSource opens the microphone through an ffmpeg subprocess configured
// to emit mono s16le PCM on stdout.
type FFmpegSource struct {
	Command     string // ffmpeg binary, default "ffmpeg"
	InputFormat string // -f value, default per platform
	Device      string // -i value, default "default"
	SampleRate  int    // default 16000
}

// defaultInputFormat picks the ffmpeg capture backend for the platform.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "windows":
		return "dshow"
	case "darwin":
		return "avfoundation"
	default:
		return "pulse"
	}
}

// Open starts the subprocess and returns its stdout as a stream. Closing the
// stream interrupts ffmpeg and reaps the process.
func (s *FFmpegSource) Open(ctx context.Context) (io.ReadCloser, error) {
	command := s.Command
	if command == "" {
		command = "ffmpeg"
	}
	format := s.InputFormat
	if format == "" {
		format = defaultInputFormat()
	}
	device := s.Device
	if device == "" {
		device = "default"
	}
	rate := s.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture: start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg fails fast on a bad device; give it a moment to do so instead
	// of reporting the error on the first Read.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("capture: ffmpeg exited before capture started: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, errors.New("capture: ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegStream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

func (f *ffmpegStream) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

func (f *ffmpegStream) Close() error {
	f.closeOnce.Do(func() {
		if f.process != nil {
			_ = f.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-f.waitErr:
			if ok {
				f.closeErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if f.process != nil {
				_ = f.process.Kill()
			}
			err, ok := <-f.waitErr
			if ok {
				f.closeErr = normalizeExitErr(err)
			}
		}

		if err := f.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			if f.closeErr == nil {
				f.closeErr = err
			}
		}

		if f.closeErr != nil && f.stderr.Len() > 0 {
			f.closeErr = fmt.Errorf("%w: %s", f.closeErr, bytes.TrimSpace(f.stderr.Bytes()))
		}
	})
	return f.closeErr
}

// normalizeExitErr hides the expected non-zero exit after an interrupt.
func normalizeExitErr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
