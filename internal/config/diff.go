package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider, audio,
// and hotkey changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ReplacementsChanged is true when the substitution table differs.
	ReplacementsChanged bool

	// FilterChanged is true when any hallucination-screen knob differs.
	FilterChanged bool

	// FormatTuningChanged is true when prompt, fillers, skip limit, output
	// format, validation thresholds, or sampling settings differ. Backend
	// selection changes are not reloadable and are ignored here.
	FormatTuningChanged bool
}

// Any reports whether the diff contains at least one reloadable change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ReplacementsChanged || d.FilterChanged || d.FormatTuningChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !mapsEqual(old.Replacements, new.Replacements) {
		d.ReplacementsChanged = true
	}

	if !filtersEqual(old.Filter, new.Filter) {
		d.FilterChanged = true
	}

	if !formatTuningEqual(old.Format, new.Format) {
		d.FormatTuningChanged = true
	}

	return d
}

func filtersEqual(a, b FilterConfig) bool {
	return slices.Equal(a.Boilerplate, b.Boilerplate) &&
		a.NearMatchThreshold == b.NearMatchThreshold &&
		a.RepetitionMinLength == b.RepetitionMinLength &&
		a.RepetitionMinCount == b.RepetitionMinCount &&
		a.DensityMaxCharsPerSec == b.DensityMaxCharsPerSec &&
		a.DensityWindowSec == b.DensityWindowSec
}

func formatTuningEqual(a, b FormatConfig) bool {
	return a.Enabled == b.Enabled &&
		a.SkipShortMaxChars == b.SkipShortMaxChars &&
		a.Temperature == b.Temperature &&
		a.MaxTokens == b.MaxTokens &&
		a.TimeoutSec == b.TimeoutSec &&
		a.OutputFormat == b.OutputFormat &&
		a.SystemPrompt == b.SystemPrompt &&
		slices.Equal(a.Fillers, b.Fillers) &&
		a.Validation == b.Validation
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
