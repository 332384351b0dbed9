package openai

import (
	"testing"
	"time"
)

func TestNewDefaultsModel(t *testing.T) {
	t.Parallel()

	e, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.model != DefaultModel {
		t.Errorf("model = %q, want %q", e.model, DefaultModel)
	}
}

func TestNewEmptyKeyUsesEnvironment(t *testing.T) {
	t.Parallel()

	// The key may instead come from OPENAI_API_KEY, which the client reads
	// itself. Construction must not fail on an empty key.
	e, err := New("", "whisper-1", WithLanguage("en"), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.language != "en" {
		t.Errorf("language = %q, want %q", e.language, "en")
	}
}
