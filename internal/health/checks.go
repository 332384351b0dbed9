package health

import (
	"context"
	"fmt"
)

// QueueChecker reports unready when the segment queue backs up past limit,
// which usually means the transcription engine has stalled while capture
// keeps producing.
func QueueChecker(depth func() int, limit int) Checker {
	if limit <= 0 {
		limit = 32
	}
	return Checker{
		Name: "queue",
		Check: func(context.Context) error {
			if d := depth(); d > limit {
				return fmt.Errorf("segment queue depth %d exceeds %d", d, limit)
			}
			return nil
		},
	}
}

// EngineChecker probes the transcription engine. probe is typically a cheap
// call verifying the model handle or API client is usable.
func EngineChecker(name string, probe func(ctx context.Context) error) Checker {
	return Checker{
		Name: "engine:" + name,
		Check: func(ctx context.Context) error {
			if probe == nil {
				return nil
			}
			return probe(ctx)
		},
	}
}
