package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/kikitori/internal/config"
)

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
    model: models/ggml-large-v3-turbo.bin
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Hotkey.TriggerKey != "alt_r" {
		t.Errorf("trigger_key default: got %q, want alt_r", cfg.Hotkey.TriggerKey)
	}
	if got := cfg.Hotkey.Aliases["alt_r"]; len(got) != 2 {
		t.Errorf("alt_r aliases default: got %v, want [alt_r alt_gr]", got)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate default: got %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.MinDurationSec != 0.5 {
		t.Errorf("min_duration_sec default: got %v, want 0.5", cfg.Audio.MinDurationSec)
	}
	if cfg.Pipeline.CooldownMs != 300 {
		t.Errorf("cooldown_ms default: got %d, want 300", cfg.Pipeline.CooldownMs)
	}
	if cfg.Format.SkipShortMaxChars != 20 || cfg.Format.Temperature != 0.3 ||
		cfg.Format.MaxTokens != 512 || cfg.Format.TimeoutSec != 30 {
		t.Errorf("format defaults not applied: %+v", cfg.Format)
	}
	if cfg.Format.OutputFormat != config.OutputSingleLine {
		t.Errorf("output_format default: got %q, want single_line", cfg.Format.OutputFormat)
	}
	if cfg.Filter.NearMatchThreshold != 0.93 {
		t.Errorf("near_match_threshold default: got %v, want 0.93", cfg.Filter.NearMatchThreshold)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
recroding: {}
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_STTRequired(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: info
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing STT provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt.name") {
		t.Errorf("error should mention providers.stt.name, got: %v", err)
	}
}

func TestValidate_FormatRequiresLLM(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
format:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for format.enabled without LLM provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm") {
		t.Errorf("error should mention providers.llm, got: %v", err)
	}
}

func TestValidate_FallbackRequiresPrimary(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
  llm_fallback:
    name: ollama
    model: qwen2.5:7b
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for llm_fallback without llm, got nil")
	}
	if !strings.Contains(err.Error(), "llm_fallback") {
		t.Errorf("error should mention llm_fallback, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
audio:
  min_duration_sec: 2
  max_duration_sec: 1
format:
  output_format: sideways
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "max_duration_sec", "output_format"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_ThresholdRanges(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
filter:
  near_match_threshold: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range threshold, got nil")
	}
	if !strings.Contains(err.Error(), "near_match_threshold") {
		t.Errorf("error should mention near_match_threshold, got: %v", err)
	}
}

func TestValidate_ReplacementsEmptyKey(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
replacements:
  "": "go"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for empty replacement key, got nil")
	}
}

func TestValidate_FullConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: "127.0.0.1:8090"
  log_level: debug
providers:
  stt:
    name: whisper-native
    model: models/ggml-large-v3-turbo.bin
    options:
      language: ja
  llm:
    name: ollama
    base_url: "http://localhost:11434"
    model: qwen2.5:7b
  llm_fallback:
    name: openai-compatible
    base_url: "http://localhost:8080/v1"
    model: local-gguf
hotkey:
  trigger_key: alt_r
audio:
  sample_rate: 16000
  min_duration_sec: 0.5
pipeline:
  cooldown_ms: 300
  pause_media: true
format:
  enabled: true
  skip_short_max_chars: 20
  output_format: single_line
filter:
  near_match_threshold: 0.93
replacements:
  ゴーラング: Go
history:
  enabled: true
  path: /tmp/kikitori.db
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.LLMFallback.Name != "openai-compatible" {
		t.Errorf("llm_fallback name: got %q", cfg.Providers.LLMFallback.Name)
	}
	if got := cfg.Providers.STT.StringOption("language", "en"); got != "ja" {
		t.Errorf("stt language option: got %q, want ja", got)
	}
}

func TestHistoryDefaultPath(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper-native
history:
  enabled: true
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.History.Path != "kikitori.db" {
		t.Errorf("history path default: got %q, want kikitori.db", cfg.History.Path)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	sttNames := config.ValidProviderNames["stt"]
	found := false
	for _, n := range sttNames {
		if n == "whisper-native" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"stt\"] should contain \"whisper-native\"")
	}
}
