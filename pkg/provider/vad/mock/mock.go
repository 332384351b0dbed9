// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script a fixed sequence of boundary events and inspect the
// frames that were submitted for processing.
//
// Example:
//
//	sess := &mock.Session{
//	    Script: []vad.Event{{Type: vad.Start}, {}, {Type: vad.End}},
//	}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"sync"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the Config of every NewSession call in order.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a scripted implementation of vad.SessionHandle. Each
// ProcessFrame call consumes the next event from Script; once the script is
// exhausted, ProcessFrame returns a zero (None) event.
type Session struct {
	mu sync.Mutex

	// Script is the sequence of events returned by successive ProcessFrame
	// calls.
	Script []vad.Event

	// Errs maps a zero-based frame index to an error returned for exactly
	// that call (the scripted event is discarded for it).
	Errs map[int]error

	// --- Call records ---

	// Frames records a copy of every frame passed to ProcessFrame, in order.
	Frames [][]float32

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// ProcessFrame records the frame and returns the next scripted event.
func (s *Session) ProcessFrame(frame []float32) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]float32, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)

	i := s.next
	s.next++
	if err, ok := s.Errs[i]; ok {
		return vad.Event{}, err
	}
	if i < len(s.Script) {
		return s.Script[i], nil
	}
	return vad.Event{}, nil
}

// Reset records the call by incrementing ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
