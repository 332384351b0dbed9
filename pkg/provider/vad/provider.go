// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector (e.g., an energy detector
// or the WebRTC VAD) and surfaces it as a stateful, per-stream session. Each
// session maintains its own internal state (hysteresis counters, smoothing
// history) so that independent audio streams can be processed separately.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// boundary event, making it suitable for the realtime capture path that gates
// utterance assembly.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle must only be used from one goroutine.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSize is the expected number of samples per frame. ProcessFrame
	// returns an error if the supplied frame does not match this size.
	FrameSize int

	// SpeechThreshold is the level above which a frame counts as speech
	// evidence. Scale is backend-specific; for the energy backend it is RMS
	// amplitude in [0.0, 1.0].
	SpeechThreshold float64

	// SilenceThreshold is the level below which a frame counts as silence
	// evidence. Must be ≤ SpeechThreshold.
	SilenceThreshold float64

	// MinSpeechFrames is the sustained-speech duration (in frames) required before
	// a Start event fires. Guards against brief noise triggering an utterance.
	MinSpeechFrames int

	// MinSilenceFrames is the sustained-silence duration (in frames) required
	// before an End event fires. Implements the trailing hysteresis that
	// keeps short intra-utterance pauses inside one segment.
	MinSilenceFrames int
}

// SessionHandle represents an active VAD session for a single audio stream.
// It is an interface so that test code can supply scripted implementations.
// Reset clears detection state without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses one frame of mono float32 PCM and returns the
	// boundary event for it. The frame length must equal Config.FrameSize.
	// Returns an error for a wrong-size frame or an internal detector failure.
	//
	// ProcessFrame is called synchronously on the capture path; it must not
	// block.
	ProcessFrame(frame []float32) (Event, error)

	// Reset clears all accumulated detection state (hysteresis counters,
	// in-speech flag) without closing the session. Called after every
	// completed utterance and on every stream restart so that state never
	// leaks across disjoint recording sessions.
	Reset()

	// Close releases the session's resources. After Close, ProcessFrame must
	// return an error and Reset must be a no-op. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a VAD session with the given configuration, ready to
	// accept frames immediately. Returns an error if the configuration is
	// invalid for the backend (unsupported sample rate, frame size, or
	// threshold out of range).
	NewSession(cfg Config) (SessionHandle, error)
}
