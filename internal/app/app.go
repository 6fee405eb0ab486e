// Package app wires all kikitori subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithCaptureSource,
// WithInserter, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kikitori/internal/capture"
	"github.com/MrWong99/kikitori/internal/config"
	"github.com/MrWong99/kikitori/internal/health"
	"github.com/MrWong99/kikitori/internal/history"
	"github.com/MrWong99/kikitori/internal/hotkey"
	"github.com/MrWong99/kikitori/internal/insert"
	"github.com/MrWong99/kikitori/internal/media"
	"github.com/MrWong99/kikitori/internal/observe"
	"github.com/MrWong99/kikitori/internal/pipeline"
	"github.com/MrWong99/kikitori/internal/resilience"
	"github.com/MrWong99/kikitori/internal/transcript"
	"github.com/MrWong99/kikitori/pkg/provider/llm"
	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry. Transcriber is required; the LLM slots are nil when
// formatting is disabled.
type Providers struct {
	Transcriber stt.Transcriber
	LLM         llm.Provider
	LLMFallback llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	recorder    *capture.Recorder
	gate        *hotkey.Gate
	listener    hotkey.Listener
	coordinator *pipeline.Coordinator
	formatter   *transcript.Formatter
	llmProvider llm.Provider
	hist        *history.Store
	watcher     *config.Watcher
	metrics     *observe.Metrics

	// Injectable for tests.
	source    capture.Source
	inserter  insert.Inserter
	mediaCtrl media.Controller

	logLevel   *slog.LevelVar
	configPath string

	ready atomic.Bool

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCaptureSource injects an audio source instead of spawning ffmpeg.
func WithCaptureSource(s capture.Source) Option {
	return func(a *App) { a.source = s }
}

// WithInserter injects a text inserter instead of the platform one.
func WithInserter(i insert.Inserter) Option {
	return func(a *App) { a.inserter = i }
}

// WithMediaController injects a media controller instead of the platform one.
func WithMediaController(c media.Controller) Option {
	return func(a *App) { a.mediaCtrl = c }
}

// WithMetrics injects a metrics instance instead of the process-global one.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigFile enables hot reload by watching path for changes.
func WithConfigFile(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithLogLevelVar hands the App the level var behind the process logger so
// config reloads can adjust verbosity.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Transcriber == nil {
		return nil, errors.New("app: a speech recogniser is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.closers = append(a.closers, providers.Transcriber.Close)

	// ── 1. Run history ───────────────────────────────────────────────────
	if cfg.History.Enabled {
		st, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("app: open history store: %w", err)
		}
		a.hist = st
		a.closers = append(a.closers, st.Close)
	}

	// ── 2. Audio capture ─────────────────────────────────────────────────
	if a.source == nil {
		a.source = &capture.FFmpegSource{
			Command:    cfg.Audio.FFmpegPath,
			Device:     cfg.Audio.Device,
			SampleRate: cfg.Audio.SampleRate,
		}
	}
	a.recorder = capture.NewRecorder(a.source, cfg.Audio.SampleRate,
		capture.WithMaxDuration(secs(cfg.Audio.MaxDurationSec)))
	a.closers = append(a.closers, a.recorder.Close)

	// ── 3. Insertion and media guard ─────────────────────────────────────
	if a.inserter == nil {
		a.inserter = insert.NewInserter()
	}
	if a.mediaCtrl == nil && cfg.Pipeline.PauseMedia {
		a.mediaCtrl = media.NewController()
	}

	// ── 4. Formatter ─────────────────────────────────────────────────────
	a.llmProvider = wrapLLM(cfg, providers.LLM, providers.LLMFallback)
	a.formatter = newFormatter(cfg, a.llmProvider)

	// ── 5. Hotkey gate + pipeline ────────────────────────────────────────
	triggers := hotkey.ExpandAliases(cfg.Hotkey.TriggerKey, cfg.Hotkey.Aliases)
	a.gate = hotkey.NewGate(triggers,
		func() { a.coordinator.OnPress() },
		func() { a.coordinator.OnRelease() },
	)
	a.listener = hotkey.NewListener(a.gate)

	pipeCfg := pipeline.Config{
		Recorder:        a.recorder,
		Transcriber:     providers.Transcriber,
		Inserter:        a.inserter,
		Media:           media.NewGuard(a.mediaCtrl),
		Gate:            a.gate,
		Replacer:        transcript.NewReplacer(cfg.Replacements),
		Filter:          newFilter(cfg.Filter),
		Validator:       newValidator(cfg.Format),
		Formatter:       a.formatter,
		Metrics:         a.metrics,
		Cooldown:        time.Duration(cfg.Pipeline.CooldownMs) * time.Millisecond,
		MinDuration:     secs(cfg.Audio.MinDurationSec),
		ShutdownTimeout: secs(cfg.Pipeline.ShutdownTimeoutSec),
	}
	if a.hist != nil {
		pipeCfg.History = a.hist
	}

	coord, err := pipeline.NewCoordinator(pipeCfg)
	if err != nil {
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.coordinator = coord

	return a, nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run warms up the providers, starts the capture stream, the keyboard hook,
// and the optional debug HTTP server, and blocks until ctx is cancelled or a
// subsystem fails.
func (a *App) Run(ctx context.Context) error {
	if err := pipeline.Warmup(ctx, a.providers.Transcriber, a.formatter); err != nil {
		return fmt.Errorf("app: warmup: %w", err)
	}
	if err := a.recorder.Open(ctx); err != nil {
		return fmt.Errorf("app: open capture stream: %w", err)
	}

	a.coordinator.Start(ctx)
	a.ready.Store(true)

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.handleConfigChange)
		if err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			a.watcher = w
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.listener.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.debugHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("debug server listening", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	slog.Info("kikitori running",
		"trigger_key", a.cfg.Hotkey.TriggerKey,
		"formatting", a.formatter != nil,
		"history", a.hist != nil,
	)
	return g.Wait()
}

// ─── Config hot reload ───────────────────────────────────────────────────────

// handleConfigChange applies the reloadable subset of a config edit to the
// running pipeline. Provider, audio, and hotkey changes need a restart.
func (a *App) handleConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(slogLevel(d.NewLogLevel))
		}
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ReplacementsChanged {
		a.coordinator.SetReplacer(transcript.NewReplacer(new.Replacements))
		slog.Info("word replacements reloaded", "count", len(new.Replacements))
	}
	if d.FilterChanged {
		a.coordinator.SetFilter(newFilter(new.Filter))
		slog.Info("transcript filter reloaded")
	}
	if d.FormatTuningChanged {
		a.formatter = newFormatter(new, a.llmProvider)
		a.coordinator.SetFormatStages(a.formatter, newValidator(new.Format))
		slog.Info("formatter tuning reloaded")
	}
}

// ─── Debug HTTP surface ──────────────────────────────────────────────────────

// debugHandler builds the mux behind Server.ListenAddr: health probes, the
// Prometheus scrape endpoint, and the run history (when enabled).
func (a *App) debugHandler() http.Handler {
	mux := http.NewServeMux()

	h := health.New(
		health.Checker{
			Name: "pipeline",
			Check: func(context.Context) error {
				if !a.ready.Load() {
					return errors.New("warmup not complete")
				}
				return nil
			},
		},
	)
	h.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	if a.hist != nil {
		mux.HandleFunc("GET /history", a.handleHistory)
	}

	return observe.Middleware(a.metrics)(mux)
}

// historyRow is the JSON shape served by GET /history.
type historyRow struct {
	ID             int64     `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	AudioMs        int64     `json:"audio_ms"`
	RawText        string    `json:"raw_text"`
	FinalText      string    `json:"final_text"`
	Outcome        string    `json:"outcome"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := a.hist.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}

	rows := make([]historyRow, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, historyRow{
			ID:             run.ID,
			StartedAt:      run.StartedAt,
			AudioMs:        run.AudioDuration.Milliseconds(),
			RawText:        run.RawText,
			FinalText:      run.FinalText,
			Outcome:        run.Outcome,
			FallbackReason: run.FallbackReason,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		slog.Warn("history encode failed", "error", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		a.ready.Store(false)

		if a.watcher != nil {
			a.watcher.Stop()
		}

		// Waits for an in-flight run up to the configured timeout.
		a.coordinator.Stop()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Stage construction helpers ──────────────────────────────────────────────

// wrapLLM returns the provider the formatter should use: the primary alone,
// or the primary behind a circuit-breaking failover group when a fallback
// backend is configured.
func wrapLLM(cfg *config.Config, primary, fallback llm.Provider) llm.Provider {
	if primary == nil {
		return nil
	}
	if fallback == nil {
		return primary
	}
	fb := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	fb.AddFallback(cfg.Providers.LLMFallback.Name, fallback)
	return fb
}

// newFormatter builds the cleanup stage from config, or nil when formatting
// is disabled or no LLM is available.
func newFormatter(cfg *config.Config, provider llm.Provider) *transcript.Formatter {
	if !cfg.Format.Enabled || provider == nil {
		return nil
	}
	opts := []transcript.FormatterOption{
		transcript.WithTemperature(cfg.Format.Temperature),
		transcript.WithMaxTokens(cfg.Format.MaxTokens),
		transcript.WithTimeout(secs(cfg.Format.TimeoutSec)),
		transcript.WithSkipShortMaxChars(cfg.Format.SkipShortMaxChars),
	}
	if cfg.Format.SystemPrompt != "" {
		opts = append(opts, transcript.WithSystemPrompt(cfg.Format.SystemPrompt))
	}
	if len(cfg.Format.Fillers) > 0 {
		opts = append(opts, transcript.WithFormatterFillers(cfg.Format.Fillers))
	}
	if cfg.Format.OutputFormat == config.OutputMultiLine {
		opts = append(opts, transcript.WithOutputMode(transcript.MultiLine))
	}
	return transcript.NewFormatter(provider, opts...)
}

func newFilter(fc config.FilterConfig) *transcript.Filter {
	opts := []transcript.FilterOption{
		transcript.WithNearMatchThreshold(fc.NearMatchThreshold),
		transcript.WithRepetitionRule(fc.RepetitionMinLength, fc.RepetitionMinCount),
		transcript.WithDensityRule(fc.DensityMaxCharsPerSec, secs(fc.DensityWindowSec)),
	}
	if len(fc.Boilerplate) > 0 {
		opts = append(opts, transcript.WithBoilerplate(fc.Boilerplate))
	}
	return transcript.NewFilter(opts...)
}

func newValidator(fc config.FormatConfig) *transcript.Validator {
	opts := []transcript.ValidatorOption{
		transcript.WithSimilarityThreshold(fc.Validation.SimilarityMin),
		transcript.WithNoveltyCeiling(fc.Validation.NoveltyMax),
	}
	if len(fc.Fillers) > 0 {
		opts = append(opts, transcript.WithFillers(fc.Fillers))
	}
	return transcript.NewValidator(opts...)
}

// slogLevel maps a config log level to its slog equivalent.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// secs converts a fractional-seconds config value to a Duration.
func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
