package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pushtalk/internal/domain"
)

// Config stores runtime configuration for the push-to-talk client.
type Config struct {
	Assistant AssistantConfig
	Audio     AudioConfig
	Capture   CaptureConfig
	Status    StatusConfig
	Bridge    BridgeConfig
	Log       LogConfig
}

type AssistantConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type AudioConfig struct {
	Backend          string
	FFmpegCommand    string
	InputFormat      string
	InputDevice      string
	SampleRate       int
	Channels         int
	NoiseSuppression bool
}

type CaptureConfig struct {
	MaxDuration time.Duration
	Timeslice   time.Duration
	Encodings   []domain.Encoding
}

type StatusConfig struct {
	ErrorClearDelay time.Duration
}

type BridgeConfig struct {
	ListenAddr string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Load resolves configuration from a .env file (when present), environment
// variables and sensible defaults.
func Load() (Config, error) {
	// A missing .env file is not an error; environment variables win.
	_ = godotenv.Load()

	cfg := Config{
		Assistant: AssistantConfig{
			URL:     envOrDefault("PUSHTALK_ASSISTANT_URL", "http://127.0.0.1:8085/api/converse"),
			Token:   strings.TrimSpace(os.Getenv("PUSHTALK_ASSISTANT_TOKEN")),
			Timeout: time.Duration(envOrDefaultInt("PUSHTALK_ASSISTANT_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			Backend:       envOrDefault("PUSHTALK_AUDIO_BACKEND", "portaudio"),
			FFmpegCommand: envOrDefault("PUSHTALK_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:   envOrDefault("PUSHTALK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("PUSHTALK_AUDIO_INPUT_DEVICE"),
				"default",
			),
			SampleRate:       envOrDefaultInt("PUSHTALK_SAMPLE_RATE", 16000),
			Channels:         envOrDefaultInt("PUSHTALK_CHANNELS", 1),
			NoiseSuppression: envOrDefaultBool("PUSHTALK_NOISE_SUPPRESSION", true),
		},
		Capture: CaptureConfig{
			MaxDuration: time.Duration(envOrDefaultInt("PUSHTALK_MAX_RECORDING_MS", 20000)) * time.Millisecond,
			Timeslice:   time.Duration(envOrDefaultInt("PUSHTALK_TIMESLICE_MS", 100)) * time.Millisecond,
			Encodings:   parseEncodings(os.Getenv("PUSHTALK_ENCODINGS")),
		},
		Status: StatusConfig{
			ErrorClearDelay: time.Duration(envOrDefaultInt("PUSHTALK_ERROR_CLEAR_MS", 3000)) * time.Millisecond,
		},
		Bridge: BridgeConfig{
			ListenAddr: envOrDefault("PUSHTALK_LISTEN_ADDR", "127.0.0.1:8723"),
		},
		Log: LogConfig{
			Level:      envOrDefault("PUSHTALK_LOG_LEVEL", "info"),
			File:       strings.TrimSpace(os.Getenv("PUSHTALK_LOG_FILE")),
			MaxSizeMB:  envOrDefaultInt("PUSHTALK_LOG_MAX_SIZE_MB", 20),
			MaxBackups: envOrDefaultInt("PUSHTALK_LOG_MAX_BACKUPS", 3),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Capture.MaxDuration <= 0 {
		cfg.Capture.MaxDuration = 20 * time.Second
	}
	if cfg.Capture.Timeslice <= 0 {
		cfg.Capture.Timeslice = 100 * time.Millisecond
	}
	if cfg.Status.ErrorClearDelay <= 0 {
		cfg.Status.ErrorClearDelay = 3 * time.Second
	}
	if cfg.Assistant.Timeout <= 0 {
		cfg.Assistant.Timeout = 30 * time.Second
	}

	return cfg, nil
}

// parseEncodings reads a comma-separated encoding preference list, keeping
// the documented default order when unset or empty.
func parseEncodings(raw string) []domain.Encoding {
	defaults := []domain.Encoding{domain.EncodingWebM, domain.EncodingMP4, domain.EncodingWAV}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaults
	}

	var out []domain.Encoding
	for _, part := range strings.Split(trimmed, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch domain.Encoding(name) {
		case domain.EncodingWebM, domain.EncodingMP4, domain.EncodingWAV:
			out = append(out, domain.Encoding(name))
		}
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
