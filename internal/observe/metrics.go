// Package observe provides application-wide observability primitives for
// voxscribe: OpenTelemetry metrics, tracing, and trace-aware structured
// logging.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxscribe metrics.
const meterName = "github.com/voxscribe/voxscribe"

// Drop reasons recorded on the SegmentsDropped counter.
const (
	DropTooShort  = "too_short"
	DropQueueFull = "queue_full"
	DropPaused    = "paused"
)

// Metrics holds all OpenTelemetry metric instruments for the daemon.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ASRDuration tracks transcription latency per utterance.
	ASRDuration metric.Float64Histogram

	// SegmentDuration tracks the audio duration of emitted segments.
	SegmentDuration metric.Float64Histogram

	// SegmentsEmitted counts utterances enqueued for transcription.
	SegmentsEmitted metric.Int64Counter

	// SegmentsDropped counts segments discarded before transcription. Use
	// with attribute.String("reason", DropTooShort|DropQueueFull|DropPaused).
	SegmentsDropped metric.Int64Counter

	// ASRErrors counts failed transcription attempts. Use with
	// attribute.String("engine", ...).
	ASRErrors metric.Int64Counter

	// Deliveries counts successfully delivered transcripts.
	Deliveries metric.Int64Counter

	// CaptureOverruns counts frames dropped by the capture hand-off channel.
	CaptureOverruns metric.Int64Counter

	// VADErrors counts classifier failures on the capture path.
	VADErrors metric.Int64Counter

	// QueueDepth tracks the number of segments waiting in the queue.
	QueueDepth metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency on the HTTP endpoint.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// utterance transcription latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ASRDuration, err = m.Float64Histogram("voxscribe.asr.duration",
		metric.WithDescription("Latency of utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("voxscribe.segment.duration",
		metric.WithDescription("Audio duration of emitted speech segments."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("voxscribe.segments.emitted",
		metric.WithDescription("Total speech segments enqueued for transcription."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDropped, err = m.Int64Counter("voxscribe.segments.dropped",
		metric.WithDescription("Total segments discarded before transcription, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ASRErrors, err = m.Int64Counter("voxscribe.asr.errors",
		metric.WithDescription("Total failed transcription attempts by engine."),
	); err != nil {
		return nil, err
	}
	if met.Deliveries, err = m.Int64Counter("voxscribe.deliveries",
		metric.WithDescription("Total transcripts delivered to the output sink."),
	); err != nil {
		return nil, err
	}
	if met.CaptureOverruns, err = m.Int64Counter("voxscribe.capture.overruns",
		metric.WithDescription("Total frames dropped by the capture hand-off channel."),
	); err != nil {
		return nil, err
	}
	if met.VADErrors, err = m.Int64Counter("voxscribe.vad.errors",
		metric.WithDescription("Total classifier failures on the capture path."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("voxscribe.queue.depth",
		metric.WithDescription("Number of segments waiting in the transcription queue."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxscribe.http.request.duration",
		metric.WithDescription("Latency of HTTP requests."),
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

// RecordDrop increments the dropped-segment counter with the given reason.
func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.SegmentsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordASR records one transcription attempt: its latency and, on failure,
// an error increment attributed to the engine name.
func (m *Metrics) RecordASR(ctx context.Context, engine string, elapsed time.Duration, err error) {
	m.ASRDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("engine", engine)))
	if err != nil {
		m.ASRErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
	}
}
