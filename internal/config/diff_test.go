package config_test

import (
	"testing"

	"github.com/MrWong99/kikitori/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Providers.STT.Name = "whisper-native"
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("identical configs should produce an empty diff: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_Replacements(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Replacements = map[string]string{"ゴーラング": "Go"}

	d := config.Diff(old, new)
	if !d.ReplacementsChanged {
		t.Error("ReplacementsChanged should be true")
	}

	// Same content in a distinct map is not a change.
	old.Replacements = map[string]string{"ゴーラング": "Go"}
	if d := config.Diff(old, new); d.ReplacementsChanged {
		t.Error("equal maps should not register as changed")
	}
}

func TestDiff_Filter(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Filter.Boilerplate = []string{"テスト終了"}

	d := config.Diff(old, new)
	if !d.FilterChanged {
		t.Error("FilterChanged should be true")
	}

	new2 := baseConfig()
	new2.Filter.NearMatchThreshold = 0.9
	if d := config.Diff(old, new2); !d.FilterChanged {
		t.Error("threshold change should register")
	}
}

func TestDiff_FormatTuning(t *testing.T) {
	t.Parallel()
	old := baseConfig()

	new := baseConfig()
	new.Format.SkipShortMaxChars = 10
	if d := config.Diff(old, new); !d.FormatTuningChanged {
		t.Error("skip limit change should register")
	}

	new = baseConfig()
	new.Format.SystemPrompt = "custom"
	if d := config.Diff(old, new); !d.FormatTuningChanged {
		t.Error("system prompt change should register")
	}

	new = baseConfig()
	new.Format.Validation.NoveltyMax = 0.7
	if d := config.Diff(old, new); !d.FormatTuningChanged {
		t.Error("validation threshold change should register")
	}
}

func TestDiff_ProviderChangeIgnored(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.LLM.Name = "ollama"
	new.Providers.LLM.Model = "qwen2.5:7b"

	// Backend selection needs a restart; the diff must not claim it is
	// hot-reloadable.
	if d := config.Diff(old, new); d.Any() {
		t.Errorf("provider change should not appear in the diff: %+v", d)
	}
}
