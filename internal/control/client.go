package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
)

// Send dials the control endpoint at addr (host:port), issues a single
// command and returns the daemon's response. Used by the CLI client.
func Send(ctx context.Context, addr string, op Op) (Response, error) {
	url := "ws://" + addr + "/control"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("control: dial %q: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	payload, err := json.Marshal(Command{Op: op})
	if err != nil {
		return Response{}, fmt.Errorf("control: encode command: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return Response{}, fmt.Errorf("control: send command: %w", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("control: read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("control: decode response: %w", err)
	}
	return resp, nil
}
