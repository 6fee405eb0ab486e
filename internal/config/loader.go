package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-native", "mock"},
	"llm": {"ollama", "openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-compatible", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
// Called by [LoadFromReader] after decoding; exported for tests that build
// a [Config] by hand.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Hotkey.TriggerKey == "" {
		cfg.Hotkey.TriggerKey = "alt_r"
	}
	if cfg.Hotkey.Aliases == nil {
		// Right Alt shows up as AltGr on some Windows layouts.
		cfg.Hotkey.Aliases = map[string][]string{
			"alt_r": {"alt_r", "alt_gr"},
		}
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.MinDurationSec == 0 {
		cfg.Audio.MinDurationSec = 0.5
	}
	if cfg.Audio.MaxDurationSec == 0 {
		cfg.Audio.MaxDurationSec = 120
	}
	if cfg.Audio.FFmpegPath == "" {
		cfg.Audio.FFmpegPath = "ffmpeg"
	}

	if cfg.Pipeline.CooldownMs == 0 {
		cfg.Pipeline.CooldownMs = 300
	}
	if cfg.Pipeline.ShutdownTimeoutSec == 0 {
		cfg.Pipeline.ShutdownTimeoutSec = 10
	}

	if cfg.Format.SkipShortMaxChars == 0 {
		cfg.Format.SkipShortMaxChars = 20
	}
	if cfg.Format.Temperature == 0 {
		cfg.Format.Temperature = 0.3
	}
	if cfg.Format.MaxTokens == 0 {
		cfg.Format.MaxTokens = 512
	}
	if cfg.Format.TimeoutSec == 0 {
		cfg.Format.TimeoutSec = 30
	}
	if cfg.Format.OutputFormat == "" {
		cfg.Format.OutputFormat = OutputSingleLine
	}
	if cfg.Format.Validation.SimilarityMin == 0 {
		cfg.Format.Validation.SimilarityMin = 0.5
	}
	if cfg.Format.Validation.NoveltyMax == 0 {
		cfg.Format.Validation.NoveltyMax = 0.5
	}

	if cfg.Filter.NearMatchThreshold == 0 {
		cfg.Filter.NearMatchThreshold = 0.93
	}
	if cfg.Filter.RepetitionMinLength == 0 {
		cfg.Filter.RepetitionMinLength = 2
	}
	if cfg.Filter.RepetitionMinCount == 0 {
		cfg.Filter.RepetitionMinCount = 3
	}
	if cfg.Filter.DensityMaxCharsPerSec == 0 {
		cfg.Filter.DensityMaxCharsPerSec = 15
	}
	if cfg.Filter.DensityWindowSec == 0 {
		cfg.Filter.DensityWindowSec = 3
	}

	if cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = "kikitori.db"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Suspicious but workable settings produce warn-level logs instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Format.Enabled && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("format.enabled requires providers.llm to be configured"))
	}
	if !cfg.Format.Enabled && cfg.Providers.LLM.Name != "" {
		slog.Warn("providers.llm is configured but format.enabled is false; transcripts will be inserted raw")
	}
	if cfg.Providers.LLMFallback.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback is set but providers.llm is not"))
	}

	if _, ok := cfg.Hotkey.Aliases[cfg.Hotkey.TriggerKey]; cfg.Hotkey.TriggerKey != "" && !ok {
		// A key with no alias entry still matches itself.
		slog.Debug("hotkey.trigger_key has no alias entry; matching the raw name only", "key", cfg.Hotkey.TriggerKey)
	}

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SampleRate != 0 && cfg.Audio.SampleRate != 16000 {
		slog.Warn("audio.sample_rate differs from the 16000 Hz whisper.cpp expects", "sample_rate", cfg.Audio.SampleRate)
	}
	if cfg.Audio.MinDurationSec < 0 {
		errs = append(errs, fmt.Errorf("audio.min_duration_sec %.2f must not be negative", cfg.Audio.MinDurationSec))
	}
	if cfg.Audio.MaxDurationSec > 0 && cfg.Audio.MaxDurationSec < cfg.Audio.MinDurationSec {
		errs = append(errs, fmt.Errorf("audio.max_duration_sec %.2f is below audio.min_duration_sec %.2f", cfg.Audio.MaxDurationSec, cfg.Audio.MinDurationSec))
	}

	if cfg.Pipeline.CooldownMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.cooldown_ms %d must not be negative", cfg.Pipeline.CooldownMs))
	}

	if cfg.Format.OutputFormat != "" && !cfg.Format.OutputFormat.IsValid() {
		errs = append(errs, fmt.Errorf("format.output_format %q is invalid; valid values: single_line, multi_line", cfg.Format.OutputFormat))
	}
	if cfg.Format.Temperature < 0 || cfg.Format.Temperature > 2 {
		errs = append(errs, fmt.Errorf("format.temperature %.2f is out of range [0, 2]", cfg.Format.Temperature))
	}
	if v := cfg.Format.Validation.SimilarityMin; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("format.validation.similarity_min %.2f is out of range [0, 1]", v))
	}
	if v := cfg.Format.Validation.NoveltyMax; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("format.validation.novelty_max %.2f is out of range [0, 1]", v))
	}

	if v := cfg.Filter.NearMatchThreshold; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("filter.near_match_threshold %.2f is out of range [0, 1]", v))
	}

	for from, to := range cfg.Replacements {
		if from == "" {
			errs = append(errs, errors.New("replacements contains an empty key"))
		}
		if from == to {
			slog.Warn("replacement maps a word to itself", "word", from)
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
