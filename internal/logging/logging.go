package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the process logs.
type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process logger. Logs always go to stderr; when a file is
// configured they are additionally written there with rotation.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	if strings.TrimSpace(cfg.File) != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotated), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	mu.Lock()
	base = logger
	mu.Unlock()
	return nil
}

// L returns a named component logger.
func L(component string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(component)
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func parseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
