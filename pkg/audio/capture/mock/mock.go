// Package mock provides test doubles for the capture package interfaces.
//
// Device hands out pre-constructed Streams (or errors) so pipeline tests can
// exercise open failures and scripted audio without real hardware.
package mock

import (
	"sync"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/audio/capture"
)

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// Stream is returned by Open. If nil, a new empty Stream is returned.
	Stream capture.Stream

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// OpenCalls records the Config of every Open call in order.
	OpenCalls []capture.Config
}

// Open records the call and returns Stream, OpenErr.
func (d *Device) Open(cfg capture.Config) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, cfg)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Stream != nil {
		return d.Stream, nil
	}
	return NewStream(0), nil
}

var _ capture.Device = (*Device)(nil)

// Stream is a scripted capture.Stream fed by the test via Send.
type Stream struct {
	frames chan audio.Frame

	mu             sync.Mutex
	closed         bool
	CloseCallCount int
}

// NewStream creates a Stream whose frame channel has the given capacity.
func NewStream(depth int) *Stream {
	if depth <= 0 {
		depth = 64
	}
	return &Stream{frames: make(chan audio.Frame, depth)}
}

// Send delivers a frame to the consumer. It must not be called after Close.
func (s *Stream) Send(f audio.Frame) {
	s.frames <- f
}

// Frames returns the frame channel.
func (s *Stream) Frames() <-chan audio.Frame { return s.frames }

// Overruns always reports zero.
func (s *Stream) Overruns() uint64 { return 0 }

// Close closes the frame channel. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

var _ capture.Stream = (*Stream)(nil)
