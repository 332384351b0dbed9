// Package control exposes the activation surface of the pipeline to outside
// processes: a WebSocket endpoint speaking a small JSON protocol, and a
// legacy marker-file watcher. Both translate external requests into the same
// Start/Pause signals, so duplicate requests are harmless per the state
// machine.
package control

import (
	"context"

	"github.com/voxscribe/voxscribe/internal/pipeline"
)

// Op is a control operation name on the wire.
type Op string

const (
	// OpStart starts or resumes dictation, opening capture when stopped.
	// A no-op while already active.
	OpStart Op = "start"

	// OpPause suspends transcription, keeping capture warm. A no-op while
	// stopped or already paused.
	OpPause Op = "pause"

	// OpStatus reports the current state without changing it.
	OpStatus Op = "status"
)

// Command is a single JSON request sent by a client.
type Command struct {
	Op Op `json:"op"`
}

// Response is the JSON reply to a [Command].
type Response struct {
	// State is the pipeline state after the command was applied.
	State string `json:"state"`

	// Error is set when the command failed; State then reports the
	// unchanged state.
	Error string `json:"error,omitempty"`
}

// Target is the part of the pipeline controller the control surfaces drive.
type Target interface {
	Signal(ctx context.Context, sig pipeline.Signal) (pipeline.State, error)
	State() pipeline.State
}

// apply executes op against t and renders the wire response.
func apply(ctx context.Context, t Target, op Op) Response {
	switch op {
	case OpStart:
		st, err := t.Signal(ctx, pipeline.SignalStart)
		return toResponse(st, err)
	case OpPause:
		st, err := t.Signal(ctx, pipeline.SignalPause)
		return toResponse(st, err)
	case OpStatus:
		return Response{State: t.State().String()}
	default:
		return Response{State: t.State().String(), Error: "unknown op: " + string(op)}
	}
}

func toResponse(st pipeline.State, err error) Response {
	resp := Response{State: st.String()}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
