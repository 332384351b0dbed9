// Package pipeline implements the capture→segmentation→queue→transcription
// core of the voxscribe daemon: a frame history buffer for leading padding,
// the VAD-driven segmenter that assembles utterances, the FIFO segment queue,
// the activation controller, and the transcription worker.
package pipeline

import "github.com/voxscribe/voxscribe/pkg/audio"

// History is a bounded FIFO of the most recent capture frames, used to
// prepend leading padding when an utterance starts. It is owned by the
// capture goroutine exclusively and therefore needs no locking.
type History struct {
	frames   []audio.Frame
	capacity int
}

// NewHistory creates a history buffer retaining at most capacity frames.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{
		frames:   make([]audio.Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame unconditionally and evicts from the front until the
// buffer holds at most its configured capacity.
func (h *History) Push(f audio.Frame) {
	h.frames = append(h.frames, f)
	if n := len(h.frames) - h.capacity; n > 0 {
		// Copy the survivors to a fresh backing array so evicted frames do
		// not pin memory through the shared slice.
		fresh := make([]audio.Frame, len(h.frames)-n, h.capacity)
		copy(fresh, h.frames[n:])
		h.frames = fresh
	}
}

// Snapshot returns the last n frames in arrival order without mutating the
// buffer. When fewer than n frames are available it returns what there is —
// never an error. The returned slice is a copy.
func (h *History) Snapshot(n int) []audio.Frame {
	if n <= 0 {
		return nil
	}
	if n > len(h.frames) {
		n = len(h.frames)
	}
	out := make([]audio.Frame, n)
	copy(out, h.frames[len(h.frames)-n:])
	return out
}

// Len reports the number of retained frames.
func (h *History) Len() int { return len(h.frames) }

// Clear discards all retained frames. Called on stream restart so padding
// never crosses disjoint recording sessions.
func (h *History) Clear() {
	h.frames = h.frames[:0]
}
