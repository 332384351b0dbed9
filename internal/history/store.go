// Package history archives transcribed segments. An in-memory ring store is
// always available; a PostgreSQL store can be layered on top for durable
// archives queried by external tooling.
package history

import (
	"context"
	"time"
)

// Entry is one archived transcript.
type Entry struct {
	// Seq is the segment sequence number within the daemon run.
	Seq uint64

	// Text is the transcribed text.
	Text string

	// AudioDuration is the length of the source audio.
	AudioDuration time.Duration

	// Engine names the transcription engine that produced the text.
	Engine string

	// CreatedAt is when the transcript was archived.
	CreatedAt time.Time
}

// Store archives transcripts and serves recent ones.
type Store interface {
	// Append archives one entry.
	Append(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases underlying resources.
	Close() error
}
