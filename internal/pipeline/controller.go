package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio/capture"
)

// State is the pipeline activation state.
type State int

const (
	// Stopped means no capture stream is open and no audio is processed.
	Stopped State = iota
	// Active means audio is captured, segmented and transcribed.
	Active
	// Paused means the capture stream stays open and segmentation keeps
	// running, but finished segments are discarded by the worker.
	Paused
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Signal is an external control request.
type Signal int

const (
	// SignalStart starts or resumes dictation, opening the capture stream
	// first when the pipeline is Stopped. A start while already Active is
	// a no-op, so duplicate or retried signals are harmless.
	SignalStart Signal = iota
	// SignalPause suspends transcription while keeping the capture stream
	// warm. A pause while Stopped or already Paused is a no-op.
	SignalPause
)

// String implements fmt.Stringer.
func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalPause:
		return "pause"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Controller owns the activation state machine and the capture goroutine. It
// is the bridge between external control surfaces (socket commands, marker
// files) and the realtime half of the pipeline.
//
// State transitions and stream lifecycle are serialized under a single mutex;
// the capture goroutine itself never touches the state.
type Controller struct {
	device    capture.Device
	captureCf capture.Config
	segmenter *Segmenter
	metrics   *observe.Metrics

	mu      sync.Mutex
	state   State
	stream  capture.Stream
	pumpWG  sync.WaitGroup
	closed  bool
	overrun uint64
}

// NewController creates a controller in the Stopped state. The capture
// stream is opened lazily on the first start or pause signal.
func NewController(device capture.Device, cfg capture.Config, seg *Segmenter, metrics *observe.Metrics) *Controller {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Controller{
		device:    device,
		captureCf: cfg,
		segmenter: seg,
		metrics:   metrics,
	}
}

// State returns the current activation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Signal applies a control signal and returns the resulting state.
//
// Start: Stopped -> Active (opening the stream), Paused -> Active (the
// stream never stopped), Active -> no-op. Pause: Active -> Paused with the
// stream kept warm; Stopped or Paused -> no-op. Duplicate signals are
// therefore idempotent. A stream open failure leaves the state at Stopped
// and is returned to the caller.
func (c *Controller) Signal(ctx context.Context, sig Signal) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.state, fmt.Errorf("pipeline: controller is shut down")
	}

	prev := c.state
	switch sig {
	case SignalStart:
		switch c.state {
		case Stopped:
			if err := c.openStreamLocked(ctx); err != nil {
				return Stopped, err
			}
			c.state = Active
		case Paused:
			c.state = Active
		}
	case SignalPause:
		if c.state == Active {
			c.state = Paused
		}
	default:
		return c.state, fmt.Errorf("pipeline: unknown signal %v", sig)
	}

	if c.state != prev {
		slog.Info("pipeline state changed", "from", prev, "to", c.state, "signal", sig)
	}
	return c.state, nil
}

// openStreamLocked opens the capture stream and starts the pump goroutine.
// Caller holds c.mu.
func (c *Controller) openStreamLocked(ctx context.Context) error {
	stream, err := c.device.Open(c.captureCf)
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}
	c.stream = stream
	c.pumpWG.Add(1)
	go c.pump(ctx, stream)
	slog.Info("capture stream opened",
		"device", c.captureCf.DeviceName,
		"sample_rate", c.captureCf.SampleRate,
		"frame_size", c.captureCf.FrameSize)
	return nil
}

// pump forwards captured frames into the segmenter. It exits when the stream
// channel closes, which happens on stream Close.
func (c *Controller) pump(ctx context.Context, stream capture.Stream) {
	defer c.pumpWG.Done()
	for frame := range stream.Frames() {
		c.segmenter.ProcessFrame(ctx, frame)
	}
	if n := stream.Overruns(); n > 0 {
		c.metrics.CaptureOverruns.Add(ctx, int64(n))
		slog.Warn("capture stream closed with overruns", "dropped_frames", n)
	}
}

// StopCapture closes the capture stream, waits for the pump goroutine to
// finish any in-flight frame and resets the segmenter so a later start begins
// with clean classifier state. The state becomes Stopped. Safe to call when
// already stopped.
func (c *Controller) StopCapture() error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.state = Stopped
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	err := stream.Close()
	c.pumpWG.Wait()
	c.segmenter.Reset()
	if err != nil {
		return fmt.Errorf("close capture stream: %w", err)
	}
	return nil
}

// Shutdown stops capture and closes the segmenter's classifier session. The
// controller rejects further signals afterwards.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.StopCapture()
	if cerr := c.segmenter.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
