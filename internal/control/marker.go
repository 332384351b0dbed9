package control

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/voxscribe/voxscribe/internal/pipeline"
)

// markerNames maps marker file names to the signals they trigger.
var markerNames = map[string]pipeline.Signal{
	"start": pipeline.SignalStart,
	"pause": pipeline.SignalPause,
}

// MarkerWatcher polls a directory for "start" and "pause" marker files
// dropped by outside processes. Each marker is removed before its signal is
// dispatched, so a marker recreated concurrently is a fresh request observed
// on the next scan, never a double-count of the first one. A marker whose
// removal fails is skipped and retried on the next scan rather than
// dispatched twice.
type MarkerWatcher struct {
	dir      string
	interval time.Duration
	target   Target
}

// NewMarkerWatcher creates a watcher over dir. interval ≤ 0 selects a 250 ms
// default.
func NewMarkerWatcher(dir string, interval time.Duration, target Target) *MarkerWatcher {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &MarkerWatcher{dir: dir, interval: interval, target: target}
}

// Run polls until ctx is cancelled.
func (w *MarkerWatcher) Run(ctx context.Context) error {
	slog.Info("marker watcher started", "dir", w.dir, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan consumes every recognised marker present in the directory.
func (w *MarkerWatcher) scan(ctx context.Context) {
	for name, sig := range markerNames {
		path := filepath.Join(w.dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Remove first. If the file vanished in between, someone else
		// consumed it and the signal must not fire here.
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("cannot consume marker, will retry", "path", path, "err", err)
			}
			continue
		}
		st, err := w.target.Signal(ctx, sig)
		if err != nil {
			slog.Error("marker signal failed", "marker", name, "err", err)
			continue
		}
		slog.Info("marker consumed", "marker", name, "state", st)
	}
}
