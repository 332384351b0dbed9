package energy_test

import (
	"testing"

	"github.com/voxscribe/voxscribe/pkg/provider/vad"
	"github.com/voxscribe/voxscribe/pkg/provider/vad/energy"
)

const frameSize = 512

func newSession(t *testing.T, speechFrames, silenceFrames int) vad.SessionHandle {
	t.Helper()
	s, err := energy.New().NewSession(vad.Config{
		SampleRate:       16000,
		FrameSize:        frameSize,
		SpeechThreshold:  0.05,
		SilenceThreshold: 0.02,
		MinSpeechFrames:  speechFrames,
		MinSilenceFrames: silenceFrames,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

// loudFrame and quietFrame are flat-amplitude frames well above and below the
// thresholds used in these tests.
func loudFrame() []float32 {
	f := make([]float32, frameSize)
	for i := range f {
		f[i] = 0.3
	}
	return f
}

func quietFrame() []float32 {
	return make([]float32, frameSize)
}

func process(t *testing.T, s vad.SessionHandle, frame []float32) vad.Event {
	t.Helper()
	ev, err := s.ProcessFrame(frame)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	return ev
}

func TestStartRequiresSustainedSpeech(t *testing.T) {
	t.Parallel()
	s := newSession(t, 3, 2)

	if ev := process(t, s, loudFrame()); ev.Type != vad.None {
		t.Fatalf("frame 1: got %v, want none", ev.Type)
	}
	if ev := process(t, s, loudFrame()); ev.Type != vad.None {
		t.Fatalf("frame 2: got %v, want none", ev.Type)
	}
	if ev := process(t, s, loudFrame()); ev.Type != vad.Start {
		t.Fatalf("frame 3: got %v, want start", ev.Type)
	}
	// In-speech frames report none, not repeated starts.
	if ev := process(t, s, loudFrame()); ev.Type != vad.None {
		t.Fatalf("frame 4: got %v, want none", ev.Type)
	}
}

func TestBriefNoiseDoesNotTrigger(t *testing.T) {
	t.Parallel()
	s := newSession(t, 3, 2)

	process(t, s, loudFrame())
	process(t, s, loudFrame())
	process(t, s, quietFrame()) // resets the speech counter
	process(t, s, loudFrame())
	if ev := process(t, s, loudFrame()); ev.Type != vad.None {
		t.Fatalf("got %v after interrupted run, want none", ev.Type)
	}
}

func TestEndRequiresSustainedSilence(t *testing.T) {
	t.Parallel()
	s := newSession(t, 1, 3)

	if ev := process(t, s, loudFrame()); ev.Type != vad.Start {
		t.Fatalf("got %v, want start", ev.Type)
	}
	process(t, s, quietFrame())
	process(t, s, quietFrame())
	// A speech frame in the middle resets the silence counter.
	process(t, s, loudFrame())
	process(t, s, quietFrame())
	process(t, s, quietFrame())
	if ev := process(t, s, quietFrame()); ev.Type != vad.End {
		t.Fatalf("got %v, want end", ev.Type)
	}
	// Back outside speech; silence keeps reporting none.
	if ev := process(t, s, quietFrame()); ev.Type != vad.None {
		t.Fatalf("got %v after end, want none", ev.Type)
	}
}

func TestResetClearsState(t *testing.T) {
	t.Parallel()
	s := newSession(t, 1, 1)

	process(t, s, loudFrame()) // start
	s.Reset()
	// After reset we are outside speech again: silence produces no end event.
	if ev := process(t, s, quietFrame()); ev.Type != vad.None {
		t.Fatalf("got %v after reset, want none", ev.Type)
	}
	if ev := process(t, s, loudFrame()); ev.Type != vad.Start {
		t.Fatalf("got %v, want start after reset", ev.Type)
	}
}

func TestWrongFrameSize(t *testing.T) {
	t.Parallel()
	s := newSession(t, 1, 1)

	if _, err := s.ProcessFrame(make([]float32, frameSize/2)); err == nil {
		t.Fatal("expected error for wrong frame size")
	}
}

func TestClosedSession(t *testing.T) {
	t.Parallel()
	s := newSession(t, 1, 1)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.ProcessFrame(loudFrame()); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  vad.Config
	}{
		{"zero frame size", vad.Config{SpeechThreshold: 0.1, SilenceThreshold: 0.05}},
		{"speech threshold too high", vad.Config{FrameSize: 256, SpeechThreshold: 1.5, SilenceThreshold: 0.05}},
		{"silence above speech", vad.Config{FrameSize: 256, SpeechThreshold: 0.05, SilenceThreshold: 0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := energy.New().NewSession(tc.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
