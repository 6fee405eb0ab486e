// Package pipeline coordinates one dictation run from key release to text
// insertion.
//
// The [Coordinator] owns the run lifecycle: the hotkey gate reports press and
// release, the coordinator arms and disarms the audio recorder, and a single
// long-lived worker goroutine executes runs one at a time. Overlap is
// impossible by construction — a run is claimed under a mutex before it is
// enqueued, and the gate is disabled for the duration of the run so a held
// trigger key cannot start capture while the previous utterance is still in
// flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/kikitori/internal/history"
	"github.com/MrWong99/kikitori/internal/insert"
	"github.com/MrWong99/kikitori/internal/media"
	"github.com/MrWong99/kikitori/internal/observe"
	"github.com/MrWong99/kikitori/internal/transcript"
	"github.com/MrWong99/kikitori/pkg/provider/stt"
)

// Run outcomes, recorded to metrics and history.
const (
	OutcomeInserted = "inserted"
	OutcomeEmpty    = "empty"
	OutcomeTooShort = "too_short"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder is the slice of [capture.Recorder] the coordinator needs.
type Recorder interface {
	// Start arms the recorder so incoming audio is buffered.
	Start() error

	// Stop disarms the recorder and returns the buffered samples.
	Stop() []float32

	// Duration converts a sample count into wall-clock audio duration.
	Duration(samples int) time.Duration
}

// GateControl is the slice of [hotkey.Gate] the coordinator needs.
type GateControl interface {
	SetEnabled(enabled bool)
}

// HistoryRecorder persists completed runs. Implemented by [history.Store].
type HistoryRecorder interface {
	Record(ctx context.Context, r history.Run) (int64, error)
}

// Config wires the coordinator's collaborators and tuning knobs. Recorder,
// Transcriber, Inserter, Gate, Filter, and Validator are required; Formatter
// and History are optional.
type Config struct {
	Recorder    Recorder
	Transcriber stt.Transcriber
	Inserter    insert.Inserter
	Media       *media.Guard
	Gate        GateControl
	Replacer    *transcript.Replacer
	Filter      *transcript.Filter
	Validator   *transcript.Validator

	// Formatter is the optional LLM cleanup stage. Nil means raw transcripts
	// are inserted as-is.
	Formatter *transcript.Formatter

	// History is the optional run log. Writes are best-effort.
	History HistoryRecorder

	Metrics *observe.Metrics

	// Cooldown is the minimum gap between the end of one run and the start
	// of the next capture. Default 300ms.
	Cooldown time.Duration

	// MinDuration is the shortest utterance worth transcribing. Default 500ms.
	MinDuration time.Duration

	// ShutdownTimeout bounds how long Stop waits for an in-flight run.
	// Default 10s.
	ShutdownTimeout time.Duration
}

// Coordinator drives the capture → transcribe → filter → format → validate →
// insert sequence. It is safe for concurrent use; press and release arrive
// from the hotkey listener thread while runs execute on the worker goroutine.
type Coordinator struct {
	recorder    Recorder
	transcriber stt.Transcriber
	inserter    insert.Inserter
	media       *media.Guard
	gate        GateControl
	replacer    *transcript.Replacer
	filter      *transcript.Filter
	formatter   *transcript.Formatter
	validator   *transcript.Validator
	hist        HistoryRecorder
	metrics     *observe.Metrics

	cooldown        time.Duration
	minDuration     time.Duration
	shutdownTimeout time.Duration

	mu         sync.Mutex
	capturing  bool
	runActive  bool
	lastRunEnd time.Time

	runCh      chan time.Time // capture start times, single slot
	runWG      sync.WaitGroup
	cancel     context.CancelFunc
	workerDone chan struct{}
	stopOnce   sync.Once
}

// NewCoordinator validates cfg and returns a Coordinator. Call [Coordinator.Start]
// before wiring the gate callbacks.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Recorder == nil:
		return nil, errors.New("pipeline: Recorder is required")
	case cfg.Transcriber == nil:
		return nil, errors.New("pipeline: Transcriber is required")
	case cfg.Inserter == nil:
		return nil, errors.New("pipeline: Inserter is required")
	case cfg.Gate == nil:
		return nil, errors.New("pipeline: Gate is required")
	case cfg.Filter == nil:
		return nil, errors.New("pipeline: Filter is required")
	case cfg.Validator == nil:
		return nil, errors.New("pipeline: Validator is required")
	}
	if cfg.Media == nil {
		cfg.Media = media.NewGuard(nil)
	}
	if cfg.Replacer == nil {
		cfg.Replacer = transcript.NewReplacer(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 300 * time.Millisecond
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 500 * time.Millisecond
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return &Coordinator{
		recorder:        cfg.Recorder,
		transcriber:     cfg.Transcriber,
		inserter:        cfg.Inserter,
		media:           cfg.Media,
		gate:            cfg.Gate,
		replacer:        cfg.Replacer,
		filter:          cfg.Filter,
		formatter:       cfg.Formatter,
		validator:       cfg.Validator,
		hist:            cfg.History,
		metrics:         cfg.Metrics,
		cooldown:        cfg.Cooldown,
		minDuration:     cfg.MinDuration,
		shutdownTimeout: cfg.ShutdownTimeout,
		runCh:           make(chan time.Time, 1),
		workerDone:      make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. Runs enqueued by OnRelease execute
// under a context derived from ctx.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.worker(ctx)
}

func (c *Coordinator) worker(ctx context.Context) {
	defer close(c.workerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case startedAt := <-c.runCh:
			c.executeRun(ctx, startedAt)
		}
	}
}

// OnPress starts audio capture. Presses are ignored while a run is in flight
// or within the cooldown window after the previous run.
func (c *Coordinator) OnPress() {
	c.mu.Lock()
	if c.capturing || c.runActive {
		c.mu.Unlock()
		return
	}
	if since := time.Since(c.lastRunEnd); since < c.cooldown {
		c.mu.Unlock()
		slog.Debug("press ignored, within cooldown", "since_last_run", since)
		return
	}
	c.capturing = true
	c.mu.Unlock()

	c.media.Pause()
	if err := c.recorder.Start(); err != nil {
		slog.Error("failed to start capture", "error", err)
		c.mu.Lock()
		c.capturing = false
		c.mu.Unlock()
		c.media.Resume()
	}
}

// OnRelease ends capture and claims a run. The gate is disabled until the run
// finishes so a re-press cannot overlap it.
func (c *Coordinator) OnRelease() {
	c.mu.Lock()
	if !c.capturing || c.runActive {
		c.mu.Unlock()
		return
	}
	c.capturing = false
	c.runActive = true
	c.runWG.Add(1)
	c.mu.Unlock()

	c.gate.SetEnabled(false)

	// The channel has one slot and runActive guarantees a single producer,
	// so this send never blocks.
	c.runCh <- time.Now()
}

// executeRun performs one full run. Cleanup runs exactly once regardless of
// which stage the run ends at: the run flag is cleared, the cooldown clock is
// stamped, media playback resumes, and the gate re-enables.
func (c *Coordinator) executeRun(ctx context.Context, startedAt time.Time) {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	c.metrics.ActiveRuns.Add(ctx, 1)

	defer func() {
		c.mu.Lock()
		c.runActive = false
		c.lastRunEnd = time.Now()
		c.mu.Unlock()
		c.media.Resume()
		c.gate.SetEnabled(true)
		c.metrics.ActiveRuns.Add(ctx, -1)
		c.runWG.Done()
		span.End()
	}()

	log := observe.Logger(ctx)

	samples := c.recorder.Stop()
	audioDur := c.recorder.Duration(len(samples))

	outcome, reason, raw, final := c.runStages(ctx, samples, audioDur)

	c.metrics.RecordRun(ctx, outcome, reason)
	c.metrics.RunDuration.Record(ctx, time.Since(startedAt).Seconds())

	log.Info("run finished",
		"outcome", outcome,
		"reason", reason,
		"audio_duration", audioDur,
		"run_duration", time.Since(startedAt),
		"chars", utf8.RuneCountInString(final),
	)

	if c.hist != nil {
		_, err := c.hist.Record(ctx, history.Run{
			StartedAt:      startedAt,
			AudioDuration:  audioDur,
			RawText:        raw,
			FinalText:      final,
			Outcome:        outcome,
			FallbackReason: reason,
		})
		if err != nil {
			log.Warn("failed to record run history", "error", err)
		}
	}
}

// runStages executes the transcription and text stages and returns the
// outcome, the fallback/rejection reason, the raw transcript, and the text
// that was inserted (empty when nothing was).
func (c *Coordinator) runStages(ctx context.Context, samples []float32, audioDur time.Duration) (outcome, reason, raw, final string) {
	log := observe.Logger(ctx)
	replacer, filter, formatter, validator := c.textStages()

	if len(samples) == 0 {
		return OutcomeEmpty, "no_audio", "", ""
	}
	if audioDur < c.minDuration {
		log.Debug("utterance too short", "duration", audioDur, "min", c.minDuration)
		return OutcomeTooShort, "", "", ""
	}

	text, err := c.transcribe(ctx, samples)
	if err != nil {
		log.Error("transcription failed", "error", err)
		return OutcomeError, "stt_error", "", ""
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return OutcomeEmpty, "no_speech", "", ""
	}
	raw = text

	text = replacer.Apply(text)

	if rejectReason := filter.Screen(text, audioDur); rejectReason != transcript.RejectNone {
		log.Info("transcript rejected", "reason", rejectReason, "text", text)
		c.metrics.RecordFilterRejection(ctx, string(rejectReason))
		return OutcomeRejected, string(rejectReason), raw, ""
	}

	text, reason = c.format(ctx, text, formatter, validator)

	if err := c.insertText(ctx, text); err != nil {
		log.Error("text insertion failed", "error", err)
		return OutcomeError, "insert_error", raw, ""
	}

	return OutcomeInserted, reason, raw, text
}

func (c *Coordinator) transcribe(ctx context.Context, samples []float32) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	sampleRate := 16000
	if sr, ok := c.recorder.(interface{ SampleRate() int }); ok {
		sampleRate = sr.SampleRate()
	}
	text, err := c.transcriber.Transcribe(ctx, samples, sampleRate)
	c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

// format runs the LLM cleanup stage and returns the text to insert plus the
// fallback reason (empty when the formatted output was accepted or the stage
// was skipped).
func (c *Coordinator) format(ctx context.Context, text string, formatter *transcript.Formatter, validator *transcript.Validator) (string, string) {
	if formatter == nil || formatter.ShouldSkip(text) {
		return text, ""
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.format")
	defer span.End()
	log := observe.Logger(ctx)

	start := time.Now()
	formatted, err := formatter.Format(ctx, text)
	c.metrics.FormatDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		log.Warn("formatting failed, inserting raw transcript", "error", err)
		c.metrics.RecordFormatFallback(ctx, "format_error")
		return text, "format_error"
	}

	verdict := validator.Validate(text, formatted)
	if !verdict.Valid {
		log.Warn("formatted output rejected, inserting raw transcript",
			"reason", verdict.Reason, "ratio", verdict.Ratio)
		c.metrics.RecordFormatFallback(ctx, verdict.Reason)
		return text, verdict.Reason
	}

	// Hard ceiling on growth. The validator is similarity-based and can be
	// fooled by an output that embeds the whole input; an output this much
	// longer than the input is never a reformatting.
	inRunes := utf8.RuneCountInString(text)
	outRunes := utf8.RuneCountInString(formatted)
	if float64(outRunes) > 1.5*float64(inRunes)+10 {
		log.Warn("formatted output too long, inserting raw transcript",
			"input_runes", inRunes, "output_runes", outRunes)
		c.metrics.RecordFormatFallback(ctx, "length_guard")
		return text, "length_guard"
	}

	return formatted, ""
}

func (c *Coordinator) insertText(ctx context.Context, text string) error {
	_, span := observe.StartSpan(ctx, "pipeline.insert")
	defer span.End()

	start := time.Now()
	err := c.inserter.Insert(text)
	c.metrics.InsertDuration.Record(ctx, time.Since(start).Seconds())
	return err
}

// textStages snapshots the text-processing stages under the mutex so a config
// reload mid-run cannot hand one run a mix of old and new stages.
func (c *Coordinator) textStages() (*transcript.Replacer, *transcript.Filter, *transcript.Formatter, *transcript.Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replacer, c.filter, c.formatter, c.validator
}

// SetReplacer swaps the word replacement table. The next run uses it.
func (c *Coordinator) SetReplacer(r *transcript.Replacer) {
	if r == nil {
		r = transcript.NewReplacer(nil)
	}
	c.mu.Lock()
	c.replacer = r
	c.mu.Unlock()
}

// SetFilter swaps the hallucination screen. The next run uses it.
func (c *Coordinator) SetFilter(f *transcript.Filter) {
	if f == nil {
		return
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// SetFormatStages swaps the formatter and validator together. A nil formatter
// disables the cleanup stage.
func (c *Coordinator) SetFormatStages(f *transcript.Formatter, v *transcript.Validator) {
	c.mu.Lock()
	c.formatter = f
	if v != nil {
		c.validator = v
	}
	c.mu.Unlock()
}

// Stop disables the gate, discards any in-progress capture, and waits up to
// ShutdownTimeout for an in-flight run to finish before stopping the worker.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.gate.SetEnabled(false)

		c.mu.Lock()
		if c.capturing {
			c.capturing = false
			c.mu.Unlock()
			c.recorder.Stop()
			c.media.Resume()
		} else {
			c.mu.Unlock()
		}

		done := make(chan struct{})
		go func() {
			c.runWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(c.shutdownTimeout):
			slog.Warn("shutdown timeout elapsed with a run still in flight",
				"timeout", c.shutdownTimeout)
		}

		if c.cancel != nil {
			c.cancel()
			<-c.workerDone
		}
	})
}
