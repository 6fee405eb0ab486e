package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/kikitori/internal/transcript"
	"github.com/MrWong99/kikitori/pkg/provider/llm"
	llmmock "github.com/MrWong99/kikitori/pkg/provider/llm/mock"
	sttmock "github.com/MrWong99/kikitori/pkg/provider/stt/mock"
)

func TestWarmupLoadsRecogniserAndPrimesFormatter(t *testing.T) {
	tr := &sttmock.Transcriber{}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "テスト"},
	}
	f := transcript.NewFormatter(provider)

	if err := Warmup(context.Background(), tr, f); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if tr.LoadCalls != 1 {
		t.Errorf("Load called %d times, want 1", tr.LoadCalls)
	}
	if provider.CallCount() != 1 {
		t.Errorf("formatter probe sent %d times, want 1", provider.CallCount())
	}
	if got := provider.CompleteCalls[0].Req.MaxTokens; got != 1 {
		t.Errorf("probe MaxTokens = %d, want 1", got)
	}
}

func TestWarmupLoadErrorIsFatal(t *testing.T) {
	tr := &sttmock.Transcriber{LoadErr: errors.New("model file missing")}

	err := Warmup(context.Background(), tr, nil)
	if err == nil {
		t.Fatal("Warmup swallowed a model load error")
	}
}

func TestWarmupFormatterErrorIsSwallowed(t *testing.T) {
	tr := &sttmock.Transcriber{}
	provider := &llmmock.Provider{CompleteErr: errors.New("backend cold")}
	f := transcript.NewFormatter(provider)

	if err := Warmup(context.Background(), tr, f); err != nil {
		t.Fatalf("Warmup treated a formatter probe failure as fatal: %v", err)
	}
	if tr.LoadCalls != 1 {
		t.Errorf("Load called %d times, want 1", tr.LoadCalls)
	}
}

func TestWarmupWithoutFormatter(t *testing.T) {
	tr := &sttmock.Transcriber{}

	if err := Warmup(context.Background(), tr, nil); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if tr.LoadCalls != 1 {
		t.Errorf("Load called %d times, want 1", tr.LoadCalls)
	}
}
