// Package output delivers transcribed text to its configured destination:
// standard output, a file, the system clipboard, or a subprocess. All sinks
// implement [pipeline.Sink] and are invoked from the single worker goroutine,
// so they only need to guard against concurrent use with sinks shared across
// subsystems.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/voxscribe/voxscribe/internal/pipeline"
)

// WriterSink appends each transcript as one line to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver writes text followed by a newline.
func (s *WriterSink) Deliver(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, text+"\n"); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	return nil
}

var _ pipeline.Sink = (*WriterSink)(nil)

// FileSink appends transcripts to a file, one line each.
type FileSink struct {
	*WriterSink
	f *os.File
}

// NewFileSink opens (or creates) path for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("output: open %q: %w", path, err)
	}
	return &FileSink{WriterSink: NewWriterSink(f), f: f}, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}

// ClipboardSink places each transcript on the system clipboard by piping it
// to the platform's clipboard tool.
type ClipboardSink struct {
	argv []string
}

// NewClipboardSink probes for a usable clipboard tool: wl-copy on Wayland
// sessions, xclip on X11, pbcopy on macOS.
func NewClipboardSink() (*ClipboardSink, error) {
	for _, cand := range clipboardCandidates() {
		if _, err := exec.LookPath(cand[0]); err == nil {
			return &ClipboardSink{argv: cand}, nil
		}
	}
	return nil, fmt.Errorf("output: no clipboard tool found (wl-copy, xclip or pbcopy)")
}

func clipboardCandidates() [][]string {
	if runtime.GOOS == "darwin" {
		return [][]string{{"pbcopy"}}
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return [][]string{{"wl-copy"}, {"xclip", "-selection", "clipboard"}}
	}
	return [][]string{{"xclip", "-selection", "clipboard"}, {"wl-copy"}}
}

// Deliver pipes text to the clipboard tool's stdin.
func (s *ClipboardSink) Deliver(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("output: %s: %w (%s)", s.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

var _ pipeline.Sink = (*ClipboardSink)(nil)

// CommandSink pipes each transcript to a configured program on stdin, one
// process invocation per delivery.
type CommandSink struct {
	argv []string
}

// NewCommandSink creates a sink running argv for every delivery.
func NewCommandSink(argv []string) (*CommandSink, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("output: command sink needs a program")
	}
	return &CommandSink{argv: argv}, nil
}

// Deliver runs the program with text on stdin and waits for it to exit.
func (s *CommandSink) Deliver(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("output: %s: %w (%s)", s.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

var _ pipeline.Sink = (*CommandSink)(nil)

// Multi fans a delivery out to several sinks in order. The first error is
// returned after all sinks were attempted.
type Multi []pipeline.Sink

// Deliver invokes every sink.
func (m Multi) Deliver(ctx context.Context, text string) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ pipeline.Sink = (Multi)(nil)
