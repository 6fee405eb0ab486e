// Package config provides the configuration schema, loader, and provider
// registry for the kikitori dictation daemon.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// OutputFormat selects newline handling for formatted text.
type OutputFormat string

const (
	// OutputSingleLine flattens formatter output to one line.
	OutputSingleLine OutputFormat = "single_line"

	// OutputMultiLine preserves the formatter's line breaks.
	OutputMultiLine OutputFormat = "multi_line"
)

// IsValid reports whether o is a recognised output format.
func (o OutputFormat) IsValid() bool {
	return o == OutputSingleLine || o == OutputMultiLine
}

// Config is the root configuration structure for kikitori.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Hotkey    HotkeyConfig    `yaml:"hotkey"`
	Audio     AudioConfig     `yaml:"audio"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Format    FormatConfig    `yaml:"format"`
	Filter    FilterConfig    `yaml:"filter"`

	// Replacements is an exact-match substitution table applied to raw
	// transcripts before filtering. Useful for names and jargon the
	// recogniser consistently mishears.
	Replacements map[string]string `yaml:"replacements"`

	History HistoryConfig `yaml:"history"`
}

// ServerConfig holds the optional local debug listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the debug HTTP server exposing
	// /healthz, /readyz and /metrics (e.g. "127.0.0.1:8090"). Empty
	// disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// STT selects the speech recogniser (e.g. "whisper-native").
	STT ProviderEntry `yaml:"stt"`

	// LLM selects the transcript cleanup backend (e.g. "ollama").
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallback optionally names a second cleanup backend tried when the
	// primary fails. Leave empty to fall back straight to the raw transcript.
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g. "whisper-native", "ollama", "openai-compatible").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g. "models/ggml-large-v3-turbo.bin", "qwen2.5:7b").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// StringOption returns the named option as a string, or def when absent or
// not a string.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// BoolOption returns the named option as a bool, or def when absent or not
// a bool.
func (e ProviderEntry) BoolOption(key string, def bool) bool {
	if v, ok := e.Options[key].(bool); ok {
		return v
	}
	return def
}

// HotkeyConfig configures the push-to-talk trigger.
type HotkeyConfig struct {
	// TriggerKey is the logical key held while dictating (default "alt_r").
	TriggerKey string `yaml:"trigger_key"`

	// Aliases maps a logical key to the raw key names the OS may report for
	// it. Some Windows keyboard layouts deliver right Alt as AltGr, so the
	// default maps alt_r to both.
	Aliases map[string][]string `yaml:"aliases"`
}

// AudioConfig configures the microphone capture stream.
type AudioConfig struct {
	// SampleRate in Hz. whisper.cpp expects 16000.
	SampleRate int `yaml:"sample_rate"`

	// MinDurationSec discards recordings shorter than this (default 0.5).
	// Accidental taps of the trigger key produce useless clips.
	MinDurationSec float64 `yaml:"min_duration_sec"`

	// MaxDurationSec caps a single recording (default 120). The buffer stops
	// growing past the cap; capture itself keeps running.
	MaxDurationSec float64 `yaml:"max_duration_sec"`

	// Device is the capture device passed to ffmpeg. Empty picks the
	// platform default.
	Device string `yaml:"device"`

	// FFmpegPath overrides the ffmpeg binary location (default "ffmpeg",
	// resolved via PATH).
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// PipelineConfig tunes run scheduling.
type PipelineConfig struct {
	// CooldownMs is the minimum gap between the end of one run and the next
	// press (default 300). Absorbs key-bounce double triggers.
	CooldownMs int `yaml:"cooldown_ms"`

	// ShutdownTimeoutSec bounds how long Stop waits for an in-flight run
	// (default 10).
	ShutdownTimeoutSec float64 `yaml:"shutdown_timeout_sec"`

	// PauseMedia toggles the media play/pause guard around recordings.
	PauseMedia bool `yaml:"pause_media"`
}

// FormatConfig tunes the LLM cleanup stage.
type FormatConfig struct {
	// Enabled turns LLM formatting on. When false the filtered transcript
	// is inserted as-is.
	Enabled bool `yaml:"enabled"`

	// SkipShortMaxChars skips formatting for text at or under this many
	// runes when it contains no filler word (default 20, 0 disables the
	// skip heuristic).
	SkipShortMaxChars int `yaml:"skip_short_max_chars"`

	// Temperature is the sampling temperature (default 0.3).
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length (default 512).
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutSec is the hard per-call deadline (default 30).
	TimeoutSec float64 `yaml:"timeout_sec"`

	// OutputFormat is "single_line" (default) or "multi_line".
	OutputFormat OutputFormat `yaml:"output_format"`

	// SystemPrompt replaces the built-in formatting instructions.
	SystemPrompt string `yaml:"system_prompt"`

	// Fillers replaces the built-in hesitation-word list used by the skip
	// heuristic and the validator's second-chance retry.
	Fillers []string `yaml:"fillers"`

	Validation ValidationConfig `yaml:"validation"`
}

// ValidationConfig tunes the answer-detection check on formatter output.
type ValidationConfig struct {
	// SimilarityMin is the matching-blocks ratio below which the output is
	// suspect (default 0.5).
	SimilarityMin float64 `yaml:"similarity_min"`

	// NoveltyMax is the fraction of output content runes absent from the
	// input above which the output is rejected (default 0.5).
	NoveltyMax float64 `yaml:"novelty_max"`
}

// FilterConfig tunes the hallucination screen on raw transcripts.
type FilterConfig struct {
	// Boilerplate replaces the built-in outro-phrase list.
	Boilerplate []string `yaml:"boilerplate"`

	// NearMatchThreshold is the Jaro-Winkler score at which a phrase-sized
	// utterance counts as a garbled boilerplate variant (default 0.93).
	NearMatchThreshold float64 `yaml:"near_match_threshold"`

	// RepetitionMinLength and RepetitionMinCount define the stuck-decoder
	// rule: a substring of at least MinLength runes repeated at least
	// MinCount times consecutively (defaults 2 and 3).
	RepetitionMinLength int `yaml:"repetition_min_length"`
	RepetitionMinCount  int `yaml:"repetition_min_count"`

	// DensityMaxCharsPerSec rejects clips shorter than DensityWindowSec
	// whose transcript exceeds this rate (defaults 15 and 3).
	DensityMaxCharsPerSec float64 `yaml:"density_max_chars_per_sec"`
	DensityWindowSec      float64 `yaml:"density_window_sec"`
}

// HistoryConfig configures the local run-history store.
type HistoryConfig struct {
	// Enabled turns history recording on.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file (default "kikitori.db" next to the
	// working directory).
	Path string `yaml:"path"`
}
