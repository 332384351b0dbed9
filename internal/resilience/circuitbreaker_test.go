package resilience

import (
	"errors"
	"testing"
	"time"
)

var errModelCrashed = errors.New("whisper: model crashed")

// flakyBackend stands in for a transcription engine that fails its first
// failures calls and recovers afterwards.
type flakyBackend struct {
	failures int
	calls    int
}

func (b *flakyBackend) transcribe() error {
	b.calls++
	if b.calls <= b.failures {
		return errModelCrashed
	}
	return nil
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper-native"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 3 {
		t.Errorf("halfOpenMax = %d, want 3", cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ClosedForwardsTranscriptions(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper-native", MaxFailures: 3})
	backend := &flakyBackend{}
	if err := cb.Execute(backend.transcribe); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if backend.calls != 1 {
		t.Fatalf("backend called %d times, want 1", backend.calls)
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveCrashes(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "whisper-native",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})
	backend := &flakyBackend{failures: 10}

	for i := 0; i < 3; i++ {
		if err := cb.Execute(backend.transcribe); !errors.Is(err, errModelCrashed) {
			t.Fatalf("call %d: error = %v, want model crash", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 crashes", cb.State())
	}

	// An open breaker must not touch the backend at all.
	before := backend.calls
	if err := cb.Execute(backend.transcribe); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if backend.calls != before {
		t.Errorf("backend reached %d times while open, want %d", backend.calls, before)
	}
}

func TestCircuitBreaker_SuccessClearsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 3})

	// Two crashes, then a clean transcription.
	_ = cb.Execute(func() error { return errModelCrashed })
	_ = cb.Execute(func() error { return errModelCrashed })
	_ = cb.Execute(func() error { return nil })

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after a success", cb.State())
	}

	// The streak starts over: two more crashes are not enough to open.
	_ = cb.Execute(func() error { return errModelCrashed })
	_ = cb.Execute(func() error { return errModelCrashed })
	if cb.State() != StateClosed {
		t.Fatal("breaker opened on an interrupted failure streak")
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "whisper-native",
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})
	backend := &flakyBackend{failures: 2}

	// The backend crashes twice, tripping the breaker.
	_ = cb.Execute(backend.transcribe)
	_ = cb.Execute(backend.transcribe)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", cb.State())
	}

	// The backend has recovered, so the probe calls close the breaker.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(backend.transcribe); err != nil {
			t.Fatalf("probe %d: error = %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenCrashReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "whisper-native",
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  3,
	})
	backend := &flakyBackend{failures: 10}

	_ = cb.Execute(backend.transcribe)
	_ = cb.Execute(backend.transcribe)

	time.Sleep(15 * time.Millisecond)

	// A crash during the probe window re-opens immediately.
	if err := cb.Execute(backend.transcribe); !errors.Is(err, errModelCrashed) {
		t.Fatalf("error = %v, want model crash", err)
	}

	cb.mu.Lock()
	s := cb.state
	cb.mu.Unlock()
	if s != StateOpen {
		t.Fatalf("state = %v, want open after half-open crash", s)
	}
}

func TestCircuitBreaker_ManualReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "openai",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	_ = cb.Execute(func() error { return errModelCrashed })
	_ = cb.Execute(func() error { return errModelCrashed })
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() after reset error = %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
