package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pushtalk/internal/bootstrap"
	"pushtalk/internal/bridge"
	"pushtalk/internal/config"
	"pushtalk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	log := logging.L("main")

	hub := bridge.NewHub()
	services, err := bootstrap.Build(hub)
	if err != nil {
		log.Fatal("failed to assemble services", zap.Error(err))
	}

	app := NewApp(services.Tracker, services.Orchestrator, services.Config)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler(app))

	server := &http.Server{Addr: cfg.Bridge.ListenAddr, Handler: mux}

	go func() {
		log.Info("bridge listening", zap.String("addr", cfg.Bridge.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("bridge server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")

	app.Shutdown()
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
