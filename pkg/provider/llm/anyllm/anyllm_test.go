package anyllm

import (
	"testing"

	"github.com/MrWong99/kikitori/pkg/provider/llm"
	"github.com/MrWong99/kikitori/pkg/types"
)

// ── New validation ──────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "some-model"); err == nil {
		t.Error("expected error for empty provider name")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("not-a-provider", "some-model"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

// ── buildParams ─────────────────────────────────────────────────────────────

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "qwen2.5:7b"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "整形してください。",
		Messages:     []types.Message{{Role: "user", Content: "えーと今日はいい天気ですね"}},
	})

	if params.Model != "qwen2.5:7b" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].ContentString() != "えーと今日はいい天気ですね" {
		t.Errorf("user content = %q", params.Messages[1].ContentString())
	}
}

func TestBuildParams_TemperatureAndMaxTokens(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: "x"}},
		Temperature: 0.3,
		MaxTokens:   512,
	})

	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature not propagated: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens not propagated: %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: "x"}},
	})

	if params.Temperature != nil {
		t.Error("zero temperature should not be set")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens should not be set")
	}
}

// ── modelCapabilities ───────────────────────────────────────────────────────

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model       string
		wantContext int
	}{
		{"gpt-4o-mini", 128_000},
		{"claude-3-5-haiku-latest", 200_000},
		{"gemini-2.0-flash", 1_048_576},
		{"qwen2.5:7b", 32_768},
		{"llama3.1:8b", 32_768},
		{"totally-unknown-model", 128_000},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantContext {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.wantContext)
			}
		})
	}
}
