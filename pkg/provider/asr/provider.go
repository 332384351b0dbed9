// Package asr defines the Engine interface for speech-to-text backends.
//
// Unlike a streaming recogniser, an ASR engine here is an opaque function
// over a complete utterance: the segmentation pipeline hands it one finalised
// PCM buffer at a time and receives the transcribed text back. Calls may take
// seconds; they run only on the transcription worker goroutine, never on the
// capture path.
//
// Implementations must be safe for concurrent use — a fallback chain may
// probe a secondary engine while the primary is still finishing a call.
package asr

import (
	"context"
	"io"
)

// Engine transcribes one utterance at a time.
type Engine interface {
	io.Closer

	// Transcribe converts a mono float32 PCM buffer at the given sample rate
	// into text. An empty string with a nil error means the engine found no
	// speech worth reporting; the pipeline treats both failures and empty
	// results uniformly as "attempt finished".
	//
	// Implementations must respect ctx cancellation and deadlines.
	Transcribe(ctx context.Context, pcm []float32, sampleRate int) (string, error)
}
