package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the daemon's defaults applied: 16 kHz mono
// capture with 32 ms frames, the energy classifier, an unbounded queue and
// stdout output.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			FrameSize:  512,
		},
		VAD: VADConfig{
			Backend:          VADEnergy,
			SpeechThreshold:  0.02,
			SilenceThreshold: 0.01,
			MinSpeechFrames:  3,
			MinSilenceFrames: 15,
		},
		Segments: SegmentsConfig{
			LeadingPadding:    200 * time.Millisecond,
			MinSpeechDuration: 100 * time.Millisecond,
		},
		Queue: QueueConfig{
			Overflow: QueueDropOldest,
		},
		ASR: ASRConfig{
			Engine:        "whisper-native",
			ShutdownGrace: 10 * time.Second,
		},
		Control: ControlConfig{
			MarkerPollInterval: 250 * time.Millisecond,
		},
		Output: OutputConfig{
			Kind: OutputStdout,
		},
		History: HistoryConfig{
			MemorySize: 100,
		},
	}
}

// Validate checks that cfg contains a coherent set of values: struct-tag
// constraints first, then the cross-field rules tags cannot express. It
// returns a joined error listing all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				errs = append(errs, fmt.Errorf("config: %s fails %q constraint", ve.Namespace(), ve.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.VAD.Backend != "" && !cfg.VAD.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("vad.backend %q is invalid; valid values: energy, webrtc", cfg.VAD.Backend))
	}
	if cfg.VAD.SilenceThreshold > cfg.VAD.SpeechThreshold {
		errs = append(errs, fmt.Errorf("vad.silence_threshold %.3f exceeds vad.speech_threshold %.3f", cfg.VAD.SilenceThreshold, cfg.VAD.SpeechThreshold))
	}
	if cfg.VAD.Backend == VADWebRTC {
		switch cfg.Audio.SampleRate {
		case 8000, 16000, 32000, 48000:
		default:
			errs = append(errs, fmt.Errorf("audio.sample_rate %d is not supported by the webrtc backend; valid rates: 8000, 16000, 32000, 48000", cfg.Audio.SampleRate))
		}
		if cfg.Audio.SampleRate > 0 {
			chunk := cfg.Audio.SampleRate / 100 // 10 ms
			if chunk > 0 && cfg.Audio.FrameSize%chunk != 0 {
				errs = append(errs, fmt.Errorf("audio.frame_size %d is not a multiple of 10 ms (%d samples) as the webrtc backend requires", cfg.Audio.FrameSize, chunk))
			}
		}
	}

	if cfg.Queue.Overflow != "" && !cfg.Queue.Overflow.IsValid() {
		errs = append(errs, fmt.Errorf("queue.overflow %q is invalid; valid values: drop_oldest, drop_newest", cfg.Queue.Overflow))
	}

	if cfg.ASR.Engine == "whisper-native" && cfg.ASR.Whisper.ModelPath == "" {
		errs = append(errs, fmt.Errorf("asr.whisper.model_path is required when asr.engine is whisper-native"))
	}
	if cfg.ASR.Fallback != "" && cfg.ASR.Fallback == cfg.ASR.Engine {
		errs = append(errs, fmt.Errorf("asr.fallback %q must differ from asr.engine", cfg.ASR.Fallback))
	}

	switch cfg.Output.Kind {
	case OutputFile:
		if cfg.Output.Path == "" {
			errs = append(errs, fmt.Errorf("output.path is required when output.kind is file"))
		}
	case OutputCommand:
		if len(cfg.Output.Command) == 0 {
			errs = append(errs, fmt.Errorf("output.command is required when output.kind is command"))
		}
	case "", OutputStdout, OutputClipboard:
	default:
		errs = append(errs, fmt.Errorf("output.kind %q is invalid; valid values: stdout, file, clipboard, command", cfg.Output.Kind))
	}

	for i, rule := range cfg.Commands {
		if rule.Pattern == "" {
			continue // caught by the required tag above
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("commands[%d].pattern: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
