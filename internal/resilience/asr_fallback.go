package resilience

import (
	"context"
	"errors"

	"github.com/voxscribe/voxscribe/pkg/provider/asr"
)

// ASRFallback implements [asr.Engine] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker, so a
// repeatedly failing local model is bypassed in favour of a healthy cloud
// engine until its reset timeout elapses.
type ASRFallback struct {
	group *FallbackGroup[asr.Engine]
}

// Compile-time interface assertion.
var _ asr.Engine = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Engine, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional engine tried after the primary.
func (f *ASRFallback) AddFallback(name string, engine asr.Engine) {
	f.group.AddFallback(name, engine)
}

// Transcribe runs the segment against the first healthy engine.
func (f *ASRFallback) Transcribe(ctx context.Context, pcm []float32, sampleRate int) (string, error) {
	return ExecuteWithResult(f.group, func(e asr.Engine) (string, error) {
		return e.Transcribe(ctx, pcm, sampleRate)
	})
}

// Close closes every registered engine, returning the joined errors.
func (f *ASRFallback) Close() error {
	var errs []error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
