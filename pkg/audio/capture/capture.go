// Package capture abstracts microphone input. A Device opens a Stream that
// delivers fixed-size mono frames over a bounded channel: the realtime driver
// callback only writes to the channel and never blocks on consumer speed —
// when the consumer falls behind, frames are dropped and counted as overruns.
package capture

import "github.com/voxscribe/voxscribe/pkg/audio"

// Config describes the stream a Device should open.
type Config struct {
	// DeviceName selects the input device. Empty means the system default.
	DeviceName string

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count delivered by the hardware. Streams
	// downmix to mono before framing.
	Channels int

	// FrameSize is the number of mono samples per delivered frame. It must
	// match the VAD classifier's expected input size.
	FrameSize int

	// ChannelDepth is the capacity of the frame hand-off channel. Zero means
	// a reasonable default. The capture callback drops frames when the
	// channel is full.
	ChannelDepth int
}

// Stream is an open capture stream.
type Stream interface {
	// Frames returns the channel on which captured frames are delivered.
	// The channel is closed when the stream is closed.
	Frames() <-chan audio.Frame

	// Overruns reports the number of frames dropped because the consumer
	// could not keep up.
	Overruns() uint64

	// Close stops the stream and releases driver resources. No frames are
	// delivered after Close returns. Calling Close more than once is safe.
	Close() error
}

// Device opens capture streams. Implementations must be safe for concurrent
// use; a failure to open is reported once and must not leave driver state
// behind.
type Device interface {
	Open(cfg Config) (Stream, error)
}
