package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	asrmock "github.com/voxscribe/voxscribe/pkg/provider/asr/mock"
)

func TestASRFallbackPrimarySucceeds(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Engine{Results: []string{"from primary"}}
	secondary := &asrmock.Engine{Results: []string{"from secondary"}}
	f := NewASRFallback(primary, "whisper-native", FallbackConfig{})
	f.AddFallback("openai", secondary)

	text, err := f.Transcribe(context.Background(), make([]float32, 16000), 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "from primary" {
		t.Errorf("text = %q, want %q", text, "from primary")
	}
	if len(secondary.Calls()) != 0 {
		t.Error("secondary engine invoked although the primary succeeded")
	}
}

func TestASRFallbackFailsOver(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Engine{Errs: map[int]error{0: errors.New("model crashed")}}
	secondary := &asrmock.Engine{Results: []string{"rescued"}}
	f := NewASRFallback(primary, "whisper-native", FallbackConfig{})
	f.AddFallback("openai", secondary)

	text, err := f.Transcribe(context.Background(), make([]float32, 16000), 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "rescued" {
		t.Errorf("text = %q, want %q", text, "rescued")
	}
}

func TestASRFallbackAllFail(t *testing.T) {
	t.Parallel()
	failing := func() *asrmock.Engine {
		return &asrmock.Engine{Errs: map[int]error{0: errors.New("down"), 1: errors.New("down")}}
	}
	f := NewASRFallback(failing(), "whisper-native", FallbackConfig{})
	f.AddFallback("openai", failing())

	_, err := f.Transcribe(context.Background(), make([]float32, 16000), 16000)
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("Transcribe() error = %v, want ErrAllFailed", err)
	}
}

func TestASRFallbackSkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Engine{
		Errs: map[int]error{0: errors.New("down"), 1: errors.New("down")},
	}
	secondary := &asrmock.Engine{Results: []string{"ok"}}
	f := NewASRFallback(primary, "whisper-native", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("openai", secondary)

	ctx := context.Background()
	pcm := make([]float32, 16000)
	// Two failures trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := f.Transcribe(ctx, pcm, 16000); err != nil {
			t.Fatalf("Transcribe() error = %v, fallback should have rescued", err)
		}
	}

	before := len(primary.Calls())
	if _, err := f.Transcribe(ctx, pcm, 16000); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got := len(primary.Calls()); got != before {
		t.Errorf("primary invoked %d times after breaker opened, want %d (skipped)", got, before)
	}
}

func TestASRFallbackCloseClosesAll(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Engine{}
	secondary := &asrmock.Engine{}
	f := NewASRFallback(primary, "whisper-native", FallbackConfig{})
	f.AddFallback("openai", secondary)

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if primary.CloseCallCount != 1 || secondary.CloseCallCount != 1 {
		t.Errorf("close counts = %d/%d, want 1/1", primary.CloseCallCount, secondary.CloseCallCount)
	}
}
