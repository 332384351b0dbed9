package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Server serves the WebSocket control endpoint. Each connection may issue any
// number of commands; every command gets exactly one response. Connections
// are expected to come from local tooling, so no origin checks are applied
// beyond binding to a loopback address in the default configuration.
type Server struct {
	target Target
	http   *http.Server
}

// NewServer creates a control server driving target.
func NewServer(target Target) *Server {
	s := &Server{target: target}
	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handle)
	s.http = &http.Server{
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived and idle between commands
	}
	return s
}

// Handler returns the underlying HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen %q: %w", addr, err)
	}
	slog.Info("control endpoint listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control: serve: %w", err)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("control connection rejected", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	slog.Debug("control client connected", "remote", r.RemoteAddr)
	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			slog.Debug("control client disconnected", "remote", r.RemoteAddr, "err", err)
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		var cmd Command
		resp := Response{}
		if err := json.Unmarshal(data, &cmd); err != nil {
			resp = Response{State: s.target.State().String(), Error: "malformed command: " + err.Error()}
		} else {
			resp = apply(ctx, s.target, cmd.Op)
			slog.Info("control command", "op", cmd.Op, "state", resp.State, "remote", r.RemoteAddr)
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "encode response")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return
		}
	}
}
