package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/asr"
)

// Sink receives transcribed text from the worker, one call per successfully
// transcribed non-empty segment. Implementations are responsible for their
// own thread-safety; the worker invokes Deliver from its single goroutine.
type Sink interface {
	Deliver(ctx context.Context, text string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, text string) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, text string) error { return f(ctx, text) }

// defaultPopTimeout is how long a single Pop blocks before the worker
// re-checks for shutdown.
const defaultPopTimeout = 250 * time.Millisecond

// WorkerConfig holds the transcription worker parameters.
type WorkerConfig struct {
	// EngineName labels the engine in metrics and logs.
	EngineName string

	// PopTimeout is the queue poll interval. Zero means a 250 ms default.
	PopTimeout time.Duration
}

// Worker is the single consumer of the segment queue. It is the only
// goroutine allowed to block for arbitrary durations: transcription calls may
// take seconds. It reads the activation state on every dequeued item and
// silently drops segments while the pipeline is paused.
//
// A failed transcription is reported and the loop continues — one bad segment
// never halts the worker.
type Worker struct {
	cfg     WorkerConfig
	queue   *Queue
	engine  asr.Engine
	sink    Sink
	state   func() State
	metrics *observe.Metrics

	// OnError, when non-nil, is invoked for per-segment transcription
	// failures (for desktop notifications). Must not block for long.
	OnError func(ctx context.Context, err error)

	// OnResult, when non-nil, is invoked after each successful delivery
	// with the source segment and its transcript (for archiving).
	OnResult func(ctx context.Context, seg audio.Segment, text string)

	drain    chan time.Time
	stopOnce sync.Once
	started  atomic.Bool
	exited   chan struct{}
}

// NewWorker creates a worker. state is consulted once per dequeued item and
// must be cheap (a mutex-guarded read).
func NewWorker(cfg WorkerConfig, queue *Queue, engine asr.Engine, sink Sink, state func() State, metrics *observe.Metrics) *Worker {
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.EngineName == "" {
		cfg.EngineName = "asr"
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		engine:  engine,
		sink:    sink,
		state:   state,
		metrics: metrics,
		drain:   make(chan time.Time, 1),
		exited:  make(chan struct{}),
	}
}

// Run consumes the queue until ctx is cancelled or Stop is called. On Stop it
// keeps draining queued segments until the queue empties or the drain
// deadline passes. Call it from a dedicated goroutine.
func (w *Worker) Run(ctx context.Context) {
	w.started.Store(true)
	defer close(w.exited)
	var deadline time.Time
	for {
		seg, ok := w.queue.Pop(w.cfg.PopTimeout)
		if ok {
			w.handle(ctx, seg)
		}
		select {
		case deadline = <-w.drain:
		case <-ctx.Done():
			return
		default:
		}
		if !deadline.IsZero() {
			if w.queue.Len() == 0 || time.Now().After(deadline) {
				return
			}
		}
	}
}

// Stop signals the worker to drain remaining queued items and exit, waiting
// up to grace for queued work plus one in-flight transcription to finish.
// Returns an error when the worker failed to exit in time; the caller is
// expected to log it and proceed with termination anyway. Stopping a worker
// that was never started returns immediately.
func (w *Worker) Stop(grace time.Duration) error {
	w.stopOnce.Do(func() {
		w.drain <- time.Now().Add(grace)
	})
	if !w.started.Load() {
		return nil
	}

	select {
	case <-w.exited:
		return nil
	case <-time.After(grace + w.cfg.PopTimeout + time.Second):
		return errors.New("pipeline: worker did not exit within the shutdown grace period")
	}
}

// handle processes one dequeued segment: consult the activation state,
// transcribe, and deliver. Only Paused discards: Stopped is observed here
// solely during the shutdown drain, and segments that completed while
// dictation was active must still be transcribed then.
func (w *Worker) handle(ctx context.Context, seg audio.Segment) {
	if st := w.state(); st == Paused {
		slog.Debug("discarding segment while paused", "seq", seg.Seq)
		w.metrics.RecordDrop(ctx, observe.DropPaused)
		return
	}

	ctx, span := observe.StartSpan(ctx, "asr.transcribe",
		trace.WithAttributes(
			attribute.Int64("segment.seq", int64(seg.Seq)),
			attribute.Float64("segment.duration_s", seg.Duration().Seconds()),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := w.engine.Transcribe(ctx, seg.PCM, seg.SampleRate)
	elapsed := time.Since(start)
	w.metrics.RecordASR(ctx, w.cfg.EngineName, elapsed, err)

	if err != nil {
		wrapped := fmt.Errorf("transcribe segment %d: %w", seg.Seq, err)
		observe.Logger(ctx).Error("transcription failed",
			"seq", seg.Seq, "elapsed", elapsed, "err", err)
		span.RecordError(err)
		if w.OnError != nil {
			w.OnError(ctx, wrapped)
		}
		return
	}

	observe.Logger(ctx).Info("segment transcribed",
		"seq", seg.Seq, "elapsed", elapsed, "chars", len(text))
	if text == "" {
		return
	}

	if err := w.sink.Deliver(ctx, text); err != nil {
		observe.Logger(ctx).Error("output delivery failed", "seq", seg.Seq, "err", err)
		if w.OnError != nil {
			w.OnError(ctx, fmt.Errorf("deliver segment %d: %w", seg.Seq, err))
		}
		return
	}
	w.metrics.Deliveries.Add(ctx, 1)
	if w.OnResult != nil {
		w.OnResult(ctx, seg, text)
	}
}
