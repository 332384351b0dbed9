// Command voxscribed is the voxscribe dictation daemon. It captures
// microphone audio, segments speech and types out transcripts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxscribe/voxscribe/internal/app"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/pkg/audio/capture"
	"github.com/voxscribe/voxscribe/pkg/provider/asr"
	asropenai "github.com/voxscribe/voxscribe/pkg/provider/asr/openai"
	"github.com/voxscribe/voxscribe/pkg/provider/asr/whisper"
	"github.com/voxscribe/voxscribe/pkg/provider/vad"
	"github.com/voxscribe/voxscribe/pkg/provider/vad/energy"
	vadwebrtc "github.com/voxscribe/voxscribe/pkg/provider/vad/webrtc"
)

// version is set via -ldflags at release builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "voxscribe.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voxscribed", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxscribed: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxscribed: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxscribed starting",
		"version", version,
		"config", *configPath,
		"engine", cfg.ASR.Engine,
		"vad_backend", cfg.VAD.Backend,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if err := capture.Initialize(); err != nil {
		slog.Error("failed to initialise audio backend", "err", err)
		return 1
	}
	defer func() {
		if err := capture.Terminate(); err != nil {
			slog.Warn("audio backend terminate error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltins(reg)

	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltins wires the engine and device factories that ship with
// voxscribe into reg. Each factory reads its section of the config.
func registerBuiltins(reg *config.Registry) {
	reg.RegisterASR("whisper-native", func(cfg *config.Config) (asr.Engine, error) {
		var opts []whisper.Option
		if cfg.ASR.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.ASR.Language))
		}
		return whisper.New(cfg.ASR.Whisper.ModelPath, opts...)
	})

	reg.RegisterASR("openai", func(cfg *config.Config) (asr.Engine, error) {
		var opts []asropenai.Option
		if cfg.ASR.OpenAI.BaseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(cfg.ASR.OpenAI.BaseURL))
		}
		if cfg.ASR.Language != "" {
			opts = append(opts, asropenai.WithLanguage(cfg.ASR.Language))
		}
		if cfg.ASR.OpenAI.RequestTimeout > 0 {
			opts = append(opts, asropenai.WithTimeout(cfg.ASR.OpenAI.RequestTimeout))
		}
		return asropenai.New(cfg.ASR.OpenAI.APIKey, cfg.ASR.OpenAI.Model, opts...)
	})

	reg.RegisterVAD("energy", func(_ *config.Config) (vad.Engine, error) {
		return energy.New(), nil
	})

	reg.RegisterVAD("webrtc", func(cfg *config.Config) (vad.Engine, error) {
		return vadwebrtc.New(cfg.VAD.Aggressiveness)
	})

	reg.RegisterCapture("portaudio", func(_ *config.Config) (capture.Device, error) {
		return &capture.PortAudioDevice{}, nil
	})
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
