package bootstrap

import (
	"fmt"

	"pushtalk/internal/assistant"
	"pushtalk/internal/audio"
	"pushtalk/internal/config"
	"pushtalk/internal/ports"
	"pushtalk/internal/sound"
	"pushtalk/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Orchestrator *usecase.Orchestrator
	Tracker      *usecase.GestureTracker
	Config       config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(sink ports.StatusSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	device, err := deviceAccess(cfg.Audio)
	if err != nil {
		return Services{}, err
	}

	orchestrator := usecase.NewOrchestrator(
		device,
		audio.Negotiate(cfg.Capture.Encodings),
		assistant.NewClient(assistant.Config{
			URL:     cfg.Assistant.URL,
			Token:   cfg.Assistant.Token,
			Timeout: cfg.Assistant.Timeout,
		}),
		sound.NewSpeakerPlayer(),
		sink,
		usecase.OrchestratorConfig{
			Capture: usecase.CaptureConfig{
				Audio: ports.AudioConfig{
					SampleRate:       cfg.Audio.SampleRate,
					Channels:         cfg.Audio.Channels,
					InputFormat:      cfg.Audio.InputFormat,
					InputDevice:      cfg.Audio.InputDevice,
					NoiseSuppression: cfg.Audio.NoiseSuppression,
				},
				MaxDuration: cfg.Capture.MaxDuration,
				Timeslice:   cfg.Capture.Timeslice,
			},
			ErrorClearDelay: cfg.Status.ErrorClearDelay,
		},
	)

	return Services{
		Orchestrator: orchestrator,
		Tracker:      usecase.NewGestureTracker(orchestrator),
		Config:       cfg,
	}, nil
}

func deviceAccess(cfg config.AudioConfig) (ports.DeviceAccess, error) {
	switch cfg.Backend {
	case "", "portaudio":
		return audio.NewPortAudioAccess(), nil
	case "ffmpeg":
		return audio.NewFFmpegAccess(cfg.FFmpegCommand), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}
