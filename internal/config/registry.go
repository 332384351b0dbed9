package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxscribe/voxscribe/pkg/audio/capture"
	"github.com/voxscribe/voxscribe/pkg/provider/asr"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: not registered")

// Registry maps engine and device names to their constructor functions.
// It decouples the wiring code from the concrete backends so builds can omit
// cgo-dependent ones. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	asr     map[string]func(*Config) (asr.Engine, error)
	vad     map[string]func(*Config) (vad.Engine, error)
	capture map[string]func(*Config) (capture.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:     make(map[string]func(*Config) (asr.Engine, error)),
		vad:     make(map[string]func(*Config) (vad.Engine, error)),
		capture: make(map[string]func(*Config) (capture.Device, error)),
	}
}

// RegisterASR registers a transcription engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(*Config) (asr.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterVAD registers a voice-activity engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(*Config) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterCapture registers a capture device factory under name.
func (r *Registry) RegisterCapture(name string, factory func(*Config) (capture.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// CreateASR instantiates the transcription engine registered under name.
// Returns [ErrNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateASR(name string, cfg *Config) (asr.Engine, error) {
	r.mu.RLock()
	factory, ok := r.asr[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr engine %q", ErrNotRegistered, name)
	}
	return factory(cfg)
}

// CreateVAD instantiates the voice-activity engine registered under name.
func (r *Registry) CreateVAD(name string, cfg *Config) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad backend %q", ErrNotRegistered, name)
	}
	return factory(cfg)
}

// CreateCapture instantiates the capture device registered under name.
func (r *Registry) CreateCapture(name string, cfg *Config) (capture.Device, error) {
	r.mu.RLock()
	factory, ok := r.capture[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture device %q", ErrNotRegistered, name)
	}
	return factory(cfg)
}
