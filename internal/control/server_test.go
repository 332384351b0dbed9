package control

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxscribe/voxscribe/internal/pipeline"
)

// stubTarget is a scripted Target tracking the pipeline state machine
// transitions relevant to the control surface.
type stubTarget struct {
	mu        sync.Mutex
	state     pipeline.State
	signalErr error
	signals   []pipeline.Signal
}

func (s *stubTarget) Signal(_ context.Context, sig pipeline.Signal) (pipeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	if s.signalErr != nil {
		return s.state, s.signalErr
	}
	switch sig {
	case pipeline.SignalStart:
		s.state = pipeline.Active
	case pipeline.SignalPause:
		if s.state == pipeline.Active {
			s.state = pipeline.Paused
		}
	}
	return s.state, nil
}

func (s *stubTarget) State() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubTarget) recorded() []pipeline.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

func startControlServer(t *testing.T, target Target) string {
	t.Helper()
	srv := httptest.NewServer(NewServer(target).Handler())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestServerStartPauseStatus(t *testing.T) {
	t.Parallel()
	target := &stubTarget{}
	addr := startControlServer(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := Send(ctx, addr, OpStart)
	if err != nil {
		t.Fatalf("Send(start) error = %v", err)
	}
	if resp.State != "active" || resp.Error != "" {
		t.Errorf("start response = %+v, want active without error", resp)
	}

	resp, err = Send(ctx, addr, OpPause)
	if err != nil {
		t.Fatalf("Send(pause) error = %v", err)
	}
	if resp.State != "paused" {
		t.Errorf("pause response state = %q, want paused", resp.State)
	}

	resp, err = Send(ctx, addr, OpStatus)
	if err != nil {
		t.Fatalf("Send(status) error = %v", err)
	}
	if resp.State != "paused" {
		t.Errorf("status response state = %q, want paused", resp.State)
	}
	// Status must not generate a signal.
	if got := target.recorded(); len(got) != 2 {
		t.Errorf("signals = %v, want exactly the start and pause", got)
	}
}

func TestServerMultipleCommandsPerConnection(t *testing.T) {
	t.Parallel()
	target := &stubTarget{}
	addr := startControlServer(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/control", nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send := func(payload string) string {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
			t.Fatalf("Write error = %v", err)
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read error = %v", err)
		}
		return string(data)
	}

	if got := send(`{"op":"start"}`); !strings.Contains(got, `"active"`) {
		t.Errorf("start reply = %s, want active", got)
	}
	if got := send(`{"op":"start"}`); !strings.Contains(got, `"active"`) {
		t.Errorf("duplicate start reply = %s, want active (no-op)", got)
	}
	if got := send(`{"op":"pause"}`); !strings.Contains(got, `"paused"`) {
		t.Errorf("pause reply = %s, want paused", got)
	}
	if got := send(`{"op":"status"}`); !strings.Contains(got, `"paused"`) {
		t.Errorf("status reply = %s, want paused", got)
	}
}

func TestServerReportsSignalError(t *testing.T) {
	t.Parallel()
	target := &stubTarget{signalErr: errors.New("no such device")}
	addr := startControlServer(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := Send(ctx, addr, OpStart)
	if err != nil {
		t.Fatalf("Send(start) error = %v", err)
	}
	if resp.Error == "" || !strings.Contains(resp.Error, "no such device") {
		t.Errorf("response error = %q, want the device failure", resp.Error)
	}
	if resp.State != "stopped" {
		t.Errorf("response state = %q, want stopped", resp.State)
	}
}

func TestServerRejectsUnknownOpGracefully(t *testing.T) {
	t.Parallel()
	target := &stubTarget{}
	addr := startControlServer(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := Send(ctx, addr, Op("restart"))
	if err != nil {
		t.Fatalf("Send(restart) error = %v", err)
	}
	if !strings.Contains(resp.Error, "unknown op") {
		t.Errorf("response error = %q, want unknown op", resp.Error)
	}
	if len(target.recorded()) != 0 {
		t.Error("unknown op must not reach the state machine")
	}
}

func TestServerMalformedJSON(t *testing.T) {
	t.Parallel()
	target := &stubTarget{}
	addr := startControlServer(t, target)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/control", nil)
	if err != nil {
		t.Fatalf("Dial error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"op":`)); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if !strings.Contains(string(data), "malformed") {
		t.Errorf("reply = %s, want a malformed-command error", data)
	}
}
