// Command voxscribectl sends control commands to a running voxscribed over
// its websocket control endpoint.
//
// Usage:
//
//	voxscribectl [-addr host:port] start|pause|status
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/voxscribe/voxscribe/internal/control"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "127.0.0.1:7459", "control address of the running daemon")
	timeout := flag.Duration("timeout", 3*time.Second, "command timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: voxscribectl [-addr host:port] start|pause|status")
		return 2
	}

	op := control.Op(flag.Arg(0))
	switch op {
	case control.OpStart, control.OpPause, control.OpStatus:
	default:
		fmt.Fprintf(os.Stderr, "voxscribectl: unknown command %q\n", flag.Arg(0))
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := control.Send(ctx, *addr, op)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxscribectl: %v\n", err)
		return 1
	}
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "voxscribectl: daemon reported: %s\n", resp.Error)
		return 1
	}
	fmt.Println(resp.State)
	return 0
}
