// Package observe provides application-wide observability primitives for
// kikitori: OpenTelemetry metrics, tracing, and HTTP middleware for the
// debug listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kikitori metrics.
const meterName = "github.com/MrWong99/kikitori"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per run stage ---

	// RunDuration tracks end-to-end run latency from release to insert.
	RunDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// FormatDuration tracks LLM cleanup latency.
	FormatDuration metric.Float64Histogram

	// InsertDuration tracks text insertion latency.
	InsertDuration metric.Float64Histogram

	// --- Counters ---

	// Runs counts completed runs. Use with attributes:
	//   attribute.String("outcome", ...), attribute.String("reason", ...)
	Runs metric.Int64Counter

	// FilterRejections counts transcripts dropped by the hallucination
	// screen. Use with attribute: attribute.String("reason", ...)
	FilterRejections metric.Int64Counter

	// FormatFallbacks counts runs that fell back to the raw transcript.
	// Use with attribute: attribute.String("reason", ...)
	FormatFallbacks metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks in-flight runs (0 or 1 by construction; the gauge
	// makes a stuck run visible on a dashboard).
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for dictation latencies: sub-second stages up to slow local LLM calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RunDuration, err = m.Float64Histogram("kikitori.run.duration",
		metric.WithDescription("End-to-end run latency from key release to insertion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("kikitori.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FormatDuration, err = m.Float64Histogram("kikitori.format.duration",
		metric.WithDescription("Latency of LLM transcript cleanup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InsertDuration, err = m.Float64Histogram("kikitori.insert.duration",
		metric.WithDescription("Latency of text insertion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Runs, err = m.Int64Counter("kikitori.runs",
		metric.WithDescription("Total runs by outcome and reason."),
	); err != nil {
		return nil, err
	}
	if met.FilterRejections, err = m.Int64Counter("kikitori.filter.rejections",
		metric.WithDescription("Transcripts dropped by the hallucination screen, by reason."),
	); err != nil {
		return nil, err
	}
	if met.FormatFallbacks, err = m.Int64Counter("kikitori.format.fallbacks",
		metric.WithDescription("Runs that fell back to the raw transcript, by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("kikitori.active_runs",
		metric.WithDescription("Number of in-flight runs."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kikitori.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRun records a completed run with the standard attribute set.
// reason is empty for successful runs.
func (m *Metrics) RecordRun(ctx context.Context, outcome, reason string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("reason", reason),
		),
	)
}

// RecordFilterRejection records a transcript dropped by the screen.
func (m *Metrics) RecordFilterRejection(ctx context.Context, reason string) {
	m.FilterRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordFormatFallback records a run that used the raw transcript because
// formatting failed or was rejected.
func (m *Metrics) RecordFormatFallback(ctx context.Context, reason string) {
	m.FormatFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
