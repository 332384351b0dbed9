package vad

// Event represents the boundary decision for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Level is the backend's raw activity measure for the frame (RMS energy
	// or speech probability, depending on the engine). Diagnostic only.
	Level float64
}

// EventType enumerates VAD boundary decisions.
//
// Start and End fire exactly once per utterance, at the hysteresis-confirmed
// boundaries. Every other frame — silence outside an utterance, or continued
// speech inside one — reports None; the segmenter decides what to do with the
// frame based on whether an utterance is in progress.
type EventType int

const (
	// None indicates no boundary: either silence outside speech or
	// continuation inside speech.
	None EventType = iota

	// Start indicates speech has just begun on this frame.
	Start

	// End indicates speech has just ended on this frame.
	End
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return "none"
	}
}
