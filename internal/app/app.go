// Package app wires all voxscribe subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes them until the context is cancelled, and Shutdown
// tears everything down in order: capture stop first, then a bounded worker
// drain, then subsystem teardown.
//
// For testing, inject mock implementations via functional options
// (WithEngine, WithDevice, WithVAD, etc.). When an option is not provided,
// New creates real implementations through the config registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/control"
	"github.com/voxscribe/voxscribe/internal/health"
	"github.com/voxscribe/voxscribe/internal/history"
	"github.com/voxscribe/voxscribe/internal/notify"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/output"
	"github.com/voxscribe/voxscribe/internal/pipeline"
	"github.com/voxscribe/voxscribe/internal/resilience"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/audio/capture"
	"github.com/voxscribe/voxscribe/pkg/provider/asr"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// App owns all subsystem lifetimes and orchestrates the dictation pipeline.
type App struct {
	cfg     *config.Config
	reg     *config.Registry
	metrics *observe.Metrics

	// Injected or built in New.
	engine   asr.Engine
	vadEng   vad.Engine
	device   capture.Device
	sink     pipeline.Sink
	notifier notify.Notifier

	queue      *pipeline.Queue
	segmenter  *pipeline.Segmenter
	controller *pipeline.Controller
	worker     *pipeline.Worker
	store      history.Store
	memStore   *history.MemStore
	healthy    *health.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// workerCancel releases the worker's detached context once the
	// shutdown drain has finished (or timed out).
	workerCancel context.CancelFunc

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithEngine injects a transcription engine instead of building one from config.
func WithEngine(e asr.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithVAD injects a voice-activity engine instead of building one from config.
func WithVAD(e vad.Engine) Option {
	return func(a *App) { a.vadEng = e }
}

// WithDevice injects a capture device instead of building one from config.
func WithDevice(d capture.Device) Option {
	return func(a *App) { a.device = d }
}

// WithSink injects an output sink instead of building one from config.
func WithSink(s pipeline.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithNotifier injects a desktop notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// New creates an App by wiring all subsystems together. The registry supplies
// engine and device factories (populated by main); Option functions inject
// test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		reg:     reg,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.notifier == nil {
		if cfg.Notify.Enabled {
			a.notifier = notify.New()
		} else {
			a.notifier = notify.Nop{}
		}
	}
	a.closers = append(a.closers, a.notifier.Close)

	if err := a.initEngine(ctx); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}
	if err := a.initOutput(); err != nil {
		return nil, fmt.Errorf("app: init output: %w", err)
	}
	a.initWorker()
	a.initHealth()

	return a, nil
}

// initEngine builds the primary transcription engine and, when configured,
// wraps it in a circuit-breaker fallback chain.
func (a *App) initEngine(_ context.Context) error {
	if a.engine != nil {
		return nil
	}

	primary, err := a.reg.CreateASR(a.cfg.ASR.Engine, a.cfg)
	if err != nil {
		return err
	}
	if a.cfg.ASR.Fallback == "" {
		a.engine = primary
		return nil
	}

	secondary, err := a.reg.CreateASR(a.cfg.ASR.Fallback, a.cfg)
	if err != nil {
		primary.Close()
		return err
	}
	chain := resilience.NewASRFallback(primary, a.cfg.ASR.Engine, resilience.FallbackConfig{})
	chain.AddFallback(a.cfg.ASR.Fallback, secondary)
	a.engine = chain
	slog.Info("transcription fallback enabled",
		"primary", a.cfg.ASR.Engine, "fallback", a.cfg.ASR.Fallback)
	return nil
}

// initPipeline builds the queue, segmenter and controller.
func (a *App) initPipeline() error {
	a.queue = pipeline.NewQueue(a.cfg.Queue.MaxSegments, pipeline.OverflowPolicy(a.cfg.Queue.Overflow), a.metrics)

	if a.vadEng == nil {
		eng, err := a.reg.CreateVAD(string(a.cfg.VAD.Backend), a.cfg)
		if err != nil {
			return err
		}
		a.vadEng = eng
	}
	session, err := a.vadEng.NewSession(vad.Config{
		SampleRate:       a.cfg.Audio.SampleRate,
		FrameSize:        a.cfg.Audio.FrameSize,
		SpeechThreshold:  a.cfg.VAD.SpeechThreshold,
		SilenceThreshold: a.cfg.VAD.SilenceThreshold,
		MinSpeechFrames:  a.cfg.VAD.MinSpeechFrames,
		MinSilenceFrames: a.cfg.VAD.MinSilenceFrames,
	})
	if err != nil {
		return fmt.Errorf("create classifier session: %w", err)
	}

	a.segmenter = pipeline.NewSegmenter(pipeline.SegmenterConfig{
		SampleRate:        a.cfg.Audio.SampleRate,
		FrameSize:         a.cfg.Audio.FrameSize,
		LeadingPadding:    a.cfg.Segments.LeadingPadding,
		MinSpeechDuration: a.cfg.Segments.MinSpeechDuration,
	}, session, a.queue, a.metrics)

	if a.device == nil {
		dev, err := a.reg.CreateCapture("portaudio", a.cfg)
		if err != nil {
			return err
		}
		a.device = dev
	}

	a.controller = pipeline.NewController(a.device, capture.Config{
		DeviceName:   a.cfg.Audio.Device,
		SampleRate:   a.cfg.Audio.SampleRate,
		Channels:     a.cfg.Audio.Channels,
		FrameSize:    a.cfg.Audio.FrameSize,
		ChannelDepth: a.cfg.Audio.BufferDepth,
	}, a.segmenter, a.metrics)
	return nil
}

// initHistory builds the in-memory transcript ring and the optional Postgres
// archive behind it.
func (a *App) initHistory(ctx context.Context) error {
	a.memStore = history.NewMemStore(a.cfg.History.MemorySize)
	a.store = a.memStore

	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		pg, err := history.NewPostgresStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		a.store = multiStore{a.memStore, pg}
		slog.Info("postgres transcript archive enabled")
	}
	return nil
}

// initOutput builds the sink chain: base sink by kind, wrapped in the command
// dispatcher when rules are configured.
func (a *App) initOutput() error {
	if a.sink == nil {
		base, err := a.buildBaseSink()
		if err != nil {
			return err
		}
		a.sink = base
	}
	if len(a.cfg.Commands) == 0 {
		return nil
	}
	d, err := output.NewDispatcher(a.cfg.Commands, a.sink)
	if err != nil {
		return err
	}
	a.sink = d
	slog.Info("command dispatcher enabled", "rules", len(a.cfg.Commands))
	return nil
}

func (a *App) buildBaseSink() (pipeline.Sink, error) {
	switch a.cfg.Output.Kind {
	case config.OutputFile:
		f, err := output.NewFileSink(a.cfg.Output.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f.Close)
		return f, nil
	case config.OutputClipboard:
		return output.NewClipboardSink()
	case config.OutputCommand:
		return output.NewCommandSink(a.cfg.Output.Command)
	default:
		return output.NewWriterSink(os.Stdout), nil
	}
}

// multiStore fans archive writes out to several stores. Reads are always
// served by the in-memory ring, so only Append and Close fan out.
type multiStore []history.Store

func (m multiStore) Append(ctx context.Context, e history.Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiStore) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return m[0].Recent(ctx, limit)
}

func (m multiStore) Close() error {
	// Individual stores are closed via the App closers list.
	return nil
}

var _ history.Store = (multiStore)(nil)

// initWorker builds the transcription worker with its archive and
// notification hooks.
func (a *App) initWorker() {
	a.worker = pipeline.NewWorker(pipeline.WorkerConfig{
		EngineName: a.cfg.ASR.Engine,
	}, a.queue, a.engine, a.sink, a.controller.State, a.metrics)

	a.worker.OnError = func(ctx context.Context, err error) {
		if nerr := a.notifier.Notify(ctx, "Transcription failed", err.Error(), notify.UrgencyCritical); nerr != nil {
			slog.Debug("notification failed", "err", nerr)
		}
	}
	a.worker.OnResult = func(ctx context.Context, seg audio.Segment, text string) {
		entry := history.Entry{
			Seq:           seg.Seq,
			Text:          text,
			AudioDuration: seg.Duration(),
			Engine:        a.cfg.ASR.Engine,
			CreatedAt:     time.Now(),
		}
		if err := a.store.Append(ctx, entry); err != nil {
			slog.Warn("transcript archive failed", "seq", seg.Seq, "err", err)
		}
		if a.cfg.Notify.Enabled && a.cfg.Notify.OnDelivery {
			if err := a.notifier.Notify(ctx, "Transcribed", text, notify.UrgencyLow); err != nil {
				slog.Debug("notification failed", "err", err)
			}
		}
	}
}

func (a *App) initHealth() {
	a.healthy = health.New(
		health.QueueChecker(a.queue.Len, 32),
		health.EngineChecker(a.cfg.ASR.Engine, nil),
	)
}

// Controller exposes the activation state machine, for the control surfaces.
func (a *App) Controller() *pipeline.Controller { return a.controller }

// Recent returns the newest archived transcripts from the in-memory ring.
func (a *App) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return a.memStore.Recent(ctx, limit)
}

// Run starts all long-running subsystems and blocks until ctx is cancelled
// or one of them fails. The pipeline starts in the stopped state; a start
// signal over the control surface opens the microphone.
//
// The worker deliberately outlives ctx: cancelling ctx ends Run, but queued
// segments are only abandoned once Shutdown's bounded drain has finished.
func (a *App) Run(ctx context.Context) error {
	wctx, wcancel := context.WithCancel(context.WithoutCancel(ctx))
	a.workerCancel = wcancel
	go a.worker.Run(wctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if addr := a.cfg.Control.ListenAddr; addr != "" {
		srv := control.NewServer(a.controller)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, addr)
		})
	}

	if dir := a.cfg.Control.MarkerDir; dir != "" {
		watcher := control.NewMarkerWatcher(dir, a.cfg.Control.MarkerPollInterval, a.controller)
		g.Go(func() error {
			if err := watcher.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		g.Go(func() error {
			return a.serveHTTP(ctx, addr)
		})
	}

	slog.Info("voxscribe running", "state", a.controller.State())
	return g.Wait()
}

// serveHTTP serves /metrics, /healthz and /readyz.
func (a *App) serveHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.healthy.Register(mux)

	srv := &http.Server{Addr: addr, Handler: observe.Middleware(a.metrics)(mux)}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http serve: %w", err)
	}
}

// Shutdown tears the daemon down: capture stops first so no new segments are
// produced, then the worker drains queued segments for up to the configured
// grace period, then subsystems close. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error

		if err := a.controller.StopCapture(); err != nil {
			errs = append(errs, err)
		}

		grace := a.cfg.ASR.ShutdownGrace
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < grace {
				grace = remaining
			}
		}
		if err := a.worker.Stop(grace); err != nil {
			slog.Error("worker drain incomplete, proceeding with teardown", "err", err)
			errs = append(errs, err)
		}
		if a.workerCancel != nil {
			a.workerCancel()
		}

		if err := a.controller.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		if err := a.engine.Close(); err != nil {
			errs = append(errs, err)
		}
		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}
