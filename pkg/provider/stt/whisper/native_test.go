package whisper

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

func TestNewRequiresModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") should fail")
	}
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	tr, err := New("model.bin",
		WithLanguage("en"),
		WithTranslate(true),
		WithInitialPrompt("こんにちは。"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.language != "en" {
		t.Errorf("language = %q, want %q", tr.language, "en")
	}
	if !tr.translate {
		t.Error("translate should be enabled")
	}
	if tr.initialText != "こんにちは。" {
		t.Errorf("initialText = %q", tr.initialText)
	}
}

func TestDefaultLanguageIsJapanese(t *testing.T) {
	t.Parallel()

	tr, err := New("model.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.language != "ja" {
		t.Errorf("language = %q, want %q", tr.language, "ja")
	}
}

func TestTranscribeBeforeLoad(t *testing.T) {
	t.Parallel()

	tr, err := New("model.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = tr.Transcribe(context.Background(), []float32{0}, 16000)
	if !errors.Is(err, stt.ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

func TestTranscribeAfterClose(t *testing.T) {
	t.Parallel()

	tr, err := New("model.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close must be idempotent.
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err = tr.Transcribe(context.Background(), []float32{0}, 16000)
	if !errors.Is(err, stt.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
