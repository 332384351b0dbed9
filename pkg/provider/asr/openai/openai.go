// Package openai implements the asr.Engine interface using the OpenAI audio
// transcriptions API. It is the cloud counterpart of the whisper.cpp engine
// and the usual fallback target when the local model is unavailable.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/provider/asr"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = "whisper-1"

// Ensure Engine implements the asr.Engine interface.
var _ asr.Engine = (*Engine)(nil)

// Engine implements asr.Engine against the OpenAI API.
type Engine struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the engine.
type config struct {
	baseURL  string
	language string
	timeout  time.Duration
}

// Option is a functional option for Engine.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Primarily used in
// tests to point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithLanguage sets the ISO-639-1 language hint (e.g., "en").
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI transcription engine. If model is empty,
// DefaultModel (whisper-1) is used. An empty apiKey defers to the client's
// own OPENAI_API_KEY environment lookup.
func New(apiKey string, model string, opts ...Option) (*Engine, error) {
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Engine{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.language,
	}, nil
}

// Transcribe uploads the utterance as a WAV file and returns the transcribed
// text.
func (e *Engine) Transcribe(ctx context.Context, pcm []float32, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wav := encodeWAV(audio.Float32ToS16LE(pcm), sampleRate)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(e.model),
	}
	if e.language != "" {
		params.Language = oai.String(e.language)
	}

	resp, err := e.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai asr: transcription request: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Close is a no-op; the engine holds no persistent connections.
func (e *Engine) Close() error { return nil }
