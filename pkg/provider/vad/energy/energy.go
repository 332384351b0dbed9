// Package energy implements a pure-Go VAD engine based on RMS energy with
// hysteresis. It needs no model files or CGO, which makes it the default
// backend and the one used throughout the pipeline tests.
package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Engine implements vad.Engine using frame RMS energy.
type Engine struct{}

// Compile-time interface assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)

// New creates an energy VAD engine.
func New() *Engine {
	return &Engine{}
}

// NewSession creates an energy VAD session. SpeechThreshold and
// SilenceThreshold are RMS amplitudes in [0.0, 1.0].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("energy: frame size must be positive, got %d", cfg.FrameSize)
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %v out of range (0, 1]", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold <= 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %v must be in (0, %v]", cfg.SilenceThreshold, cfg.SpeechThreshold)
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
		frameSize:        cfg.FrameSize,
		speechThreshold:  cfg.SpeechThreshold,
		silenceThreshold: cfg.SilenceThreshold,
		speechFrames:     speechFrames,
		silenceFrames:    silenceFrames,
	}, nil
}

// session holds per-stream hysteresis state. Used from a single goroutine.
type session struct {
	frameSize        int
	speechThreshold  float64
	silenceThreshold float64
	speechFrames     int
	silenceFrames    int

	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

// ProcessFrame classifies one frame. A Start event fires after speechFrames
// consecutive frames above the speech threshold; an End event fires after
// silenceFrames consecutive frames below the silence threshold. Frames in the
// band between the two thresholds count as continuation of the current state.
func (s *session) ProcessFrame(frame []float32) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errors.New("energy: session is closed")
	}
	if len(frame) != s.frameSize {
		return vad.Event{}, fmt.Errorf("energy: frame size %d, expected %d", len(frame), s.frameSize)
	}

	level := rms(frame)
	ev := vad.Event{Type: vad.None, Level: level}

	if s.inSpeech {
		if level < s.silenceThreshold {
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

	if level >= s.speechThreshold {
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

// Reset clears the hysteresis state.
func (s *session) Reset() {
	if s.closed {
		return
	}
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

// Close marks the session closed. Safe to call more than once.
func (s *session) Close() error {
	s.closed = true
	return nil
}

// rms computes the root-mean-square amplitude of a frame.
func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
