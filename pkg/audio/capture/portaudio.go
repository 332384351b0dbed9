package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxscribe/voxscribe/pkg/audio"
)

// defaultChannelDepth buffers about a second of 30 ms frames so transient
// consumer stalls do not drop audio.
const defaultChannelDepth = 32

// PortAudioDevice implements Device on top of PortAudio. Initialize must be
// called once before the first Open and Terminate once after the last stream
// is closed.
type PortAudioDevice struct{}

var _ Device = (*PortAudioDevice)(nil)

// Initialize initialises the PortAudio library. Call once at process start.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("capture: initialise portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio library. Call once at process exit.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("capture: terminate portaudio: %w", err)
	}
	return nil
}

// Open opens an input stream for the configured device. The stream delivers
// FrameSize-sample mono frames; multi-channel input is downmixed.
func (d *PortAudioDevice) Open(cfg Config) (Stream, error) {
	if cfg.SampleRate <= 0 || cfg.FrameSize <= 0 {
		return nil, errors.New("capture: sample rate and frame size must be positive")
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	depth := cfg.ChannelDepth
	if depth <= 0 {
		depth = defaultChannelDepth
	}

	s := &portAudioStream{
		frames:     make(chan audio.Frame, depth),
		sampleRate: cfg.SampleRate,
		channels:   channels,
		frameSize:  cfg.FrameSize,
	}

	cb := s.callback
	var (
		stream *portaudio.Stream
		err    error
	)
	if cfg.DeviceName == "" {
		stream, err = portaudio.OpenDefaultStream(channels, 0, float64(cfg.SampleRate), cfg.FrameSize, cb)
	} else {
		var dev *portaudio.DeviceInfo
		dev, err = findInputDevice(cfg.DeviceName)
		if err != nil {
			return nil, err
		}
		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = channels
		params.SampleRate = float64(cfg.SampleRate)
		params.FramesPerBuffer = cfg.FrameSize
		stream, err = portaudio.OpenStream(params, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("capture: open stream (device %q): %w", cfg.DeviceName, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// findInputDevice locates an input device by case-insensitive substring match
// on its name.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	needle := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), needle) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("capture: no input device matching %q", name)
}

// portAudioStream is a live PortAudio input stream.
type portAudioStream struct {
	stream     *portaudio.Stream
	frames     chan audio.Frame
	sampleRate int
	channels   int
	frameSize  int

	elapsed  atomic.Int64 // nanoseconds of audio captured so far
	overruns atomic.Uint64
	closeMu  sync.Mutex
	closed   bool
}

var _ Stream = (*portAudioStream)(nil)

// callback runs on the PortAudio realtime thread. It copies the input buffer,
// downmixes, and hands the frame off without blocking; a full channel drops
// the frame.
func (s *portAudioStream) callback(in []float32) {
	mono := audio.DownmixMono(in, s.channels)
	samples := make([]float32, len(mono))
	copy(samples, mono)

	frameDur := time.Duration(len(samples)) * time.Second / time.Duration(s.sampleRate)
	ts := time.Duration(s.elapsed.Add(int64(frameDur))) - frameDur

	frame := audio.Frame{Samples: samples, SampleRate: s.sampleRate, Timestamp: ts}
	select {
	case s.frames <- frame:
	default:
		if s.overruns.Add(1)%100 == 1 {
			slog.Warn("capture: consumer falling behind, dropping frames",
				"overruns", s.overruns.Load(),
			)
		}
	}
}

// Frames returns the frame hand-off channel.
func (s *portAudioStream) Frames() <-chan audio.Frame { return s.frames }

// Overruns reports the number of dropped frames.
func (s *portAudioStream) Overruns() uint64 { return s.overruns.Load() }

// Close stops and closes the PortAudio stream, then closes the frame channel.
func (s *portAudioStream) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("capture: stop stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: close stream: %w", err))
	}
	close(s.frames)
	return errors.Join(errs...)
}
