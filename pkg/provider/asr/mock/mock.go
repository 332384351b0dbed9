// Package mock provides a test double for the asr.Engine interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio passed to Transcribe.
	PCM []float32

	// SampleRate is the sample rate passed to Transcribe.
	SampleRate int
}

// Engine is a mock implementation of asr.Engine.
type Engine struct {
	mu sync.Mutex

	// Results holds the text returned by successive Transcribe calls. Once
	// exhausted, the last entry repeats. Empty means "".
	Results []string

	// Errs maps a zero-based call index to an error returned for exactly
	// that call.
	Errs map[int]error

	// Delay, if set, is how long Transcribe blocks before returning
	// (cancellable via ctx). Used to simulate slow engines.
	Delay func(ctx context.Context) error

	// TranscribeCalls records every Transcribe call in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call and returns the scripted result.
func (e *Engine) Transcribe(ctx context.Context, pcm []float32, sampleRate int) (string, error) {
	if e.Delay != nil {
		if err := e.Delay(ctx); err != nil {
			return "", err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]float32, len(pcm))
	copy(cp, pcm)
	i := len(e.TranscribeCalls)
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{PCM: cp, SampleRate: sampleRate})

	if err, ok := e.Errs[i]; ok {
		return "", err
	}
	if len(e.Results) == 0 {
		return "", nil
	}
	if i >= len(e.Results) {
		return e.Results[len(e.Results)-1], nil
	}
	return e.Results[i], nil
}

// Calls returns a snapshot of the recorded Transcribe calls.
func (e *Engine) Calls() []TranscribeCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TranscribeCall, len(e.TranscribeCalls))
	copy(out, e.TranscribeCalls)
	return out
}

// Close records the call.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCallCount++
	return nil
}

// Ensure Engine implements asr.Engine at compile time.
var _ asr.Engine = (*Engine)(nil)
