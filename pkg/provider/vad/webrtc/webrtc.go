// Package webrtc implements a VAD engine backed by libfvad, the WebRTC voice
// activity detector. It is more robust against non-speech noise than the
// energy backend at the cost of a CGO dependency.
package webrtc

import (
	"errors"
	"fmt"

	"github.com/josharian/fvad"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Engine implements vad.Engine using libfvad.
type Engine struct {
	// Mode is the libfvad aggressiveness mode, 0 (least aggressive) to 3
	// (most aggressive filtering of non-speech).
	Mode int
}

// Compile-time interface assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)

// New creates a WebRTC VAD engine with the given aggressiveness mode (0–3).
func New(mode int) (*Engine, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("webrtc: mode %d out of range [0, 3]", mode)
	}
	return &Engine{Mode: mode}, nil
}

// NewSession creates a libfvad-backed session. The sample rate must be one
// libfvad supports (8000, 16000, 32000, or 48000 Hz) and the frame size must
// be a whole multiple of 10 ms so frames can be fed to the detector in legal
// sub-frame chunks.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 || cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("webrtc: sample rate and frame size must be positive")
	}
	sub := cfg.SampleRate / 100 // samples per 10 ms
	if sub == 0 || cfg.FrameSize%sub != 0 {
		return nil, fmt.Errorf("webrtc: frame size %d is not a multiple of 10ms (%d samples) at %d Hz",
			cfg.FrameSize, sub, cfg.SampleRate)
	}

	det := fvad.NewDetector()
	if err := det.SetSampleRate(cfg.SampleRate); err != nil {
		det.Close()
		return nil, fmt.Errorf("webrtc: unsupported sample rate %d: %w", cfg.SampleRate, err)
	}
	if err := det.SetMode(e.Mode); err != nil {
		det.Close()
		return nil, fmt.Errorf("webrtc: set mode %d: %w", e.Mode, err)
	}

	speechFrames := cfg.MinSpeechFrames
	if speechFrames <= 0 {
		speechFrames = 1
	}
	silenceFrames := cfg.MinSilenceFrames
	if silenceFrames <= 0 {
		silenceFrames = 1
	}
	return &session{
		detector:      det,
		frameSize:     cfg.FrameSize,
		subFrameSize:  sub,
		speechFrames:  speechFrames,
		silenceFrames: silenceFrames,
	}, nil
}

// session adapts libfvad's 10 ms binary decisions to frame-level boundary
// events with the same hysteresis counting as the energy backend. Used from a
// single goroutine.
type session struct {
	detector      *fvad.Detector
	frameSize     int
	subFrameSize  int
	speechFrames  int
	silenceFrames int

	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

// ProcessFrame runs libfvad over the frame in 10 ms chunks. The frame counts
// as speech when the majority of its chunks are voiced.
func (s *session) ProcessFrame(frame []float32) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errors.New("webrtc: session is closed")
	}
	if len(frame) != s.frameSize {
		return vad.Event{}, fmt.Errorf("webrtc: frame size %d, expected %d", len(frame), s.frameSize)
	}

	pcm := audio.Float32ToS16LE(frame)
	voiced := 0
	chunks := s.frameSize / s.subFrameSize
	for i := range chunks {
		chunk := samplesToInt16(pcm[i*s.subFrameSize*2 : (i+1)*s.subFrameSize*2])
		ok, err := s.detector.Process(chunk)
		if err != nil {
			return vad.Event{}, fmt.Errorf("webrtc: process chunk: %w", err)
		}
		if ok {
			voiced++
		}
	}

	isSpeech := voiced*2 > chunks
	ev := vad.Event{Type: vad.None, Level: float64(voiced) / float64(chunks)}

	if s.inSpeech {
		if !isSpeech {
			s.silenceCount++
			if s.silenceCount >= s.silenceFrames {
				s.inSpeech = false
				s.silenceCount = 0
				s.speechCount = 0
				ev.Type = vad.End
			}
		} else {
			s.silenceCount = 0
		}
		return ev, nil
	}

	if isSpeech {
		s.speechCount++
		if s.speechCount >= s.speechFrames {
			s.inSpeech = true
			s.speechCount = 0
			s.silenceCount = 0
			ev.Type = vad.Start
		}
	} else {
		s.speechCount = 0
	}
	return ev, nil
}

// Reset clears the hysteresis state. The libfvad detector itself is
// stateless across frames beyond its internal noise model, which we keep.
func (s *session) Reset() {
	if s.closed {
		return
	}
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

// Close releases the underlying detector. Safe to call more than once.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.detector.Close()
	return nil
}

// samplesToInt16 reinterprets little-endian PCM bytes as int16 samples.
func samplesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	return out
}
