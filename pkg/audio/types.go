// Package audio defines the frame types and PCM conversion helpers shared by
// the capture, segmentation, and transcription stages.
package audio

import "time"

// Frame represents a single fixed-length frame of mono audio flowing through
// the pipeline. Frames are the atomic unit of transport — produced by the
// capture device, inspected by VAD, and accumulated into utterances.
type Frame struct {
	// Samples holds normalised float32 PCM in [-1.0, 1.0]. The length is fixed
	// by the pipeline configuration (sample rate × frame duration).
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for speech recognition).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Segment is a finalised utterance: the flat PCM of all frames collected
// between a speech-start and speech-end boundary, including leading padding.
type Segment struct {
	// PCM is the concatenated mono float32 audio of the utterance.
	PCM []float32

	// SampleRate in Hz.
	SampleRate int

	// Seq is the completion order of the segment. Strictly increasing; the
	// queue delivers segments to the worker in Seq order.
	Seq uint64

	// CompletedAt records when the speech-end boundary fired.
	CompletedAt time.Time
}

// Duration returns the playback duration of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.SampleRate)
}
