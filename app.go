package main

import (
	"strconv"

	"pushtalk/internal/config"
	"pushtalk/internal/domain"
	"pushtalk/internal/usecase"
)

// App routes frontend input events into the gesture tracker and answers
// status queries. It is the bridge's InputHandler.
type App struct {
	tracker      *usecase.GestureTracker
	orchestrator *usecase.Orchestrator
	cfg          config.Config
}

func NewApp(tracker *usecase.GestureTracker, orchestrator *usecase.Orchestrator, cfg config.Config) *App {
	return &App{
		tracker:      tracker,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Press forwards a pointer/touch press with its contact token.
func (a *App) Press(token string) {
	a.tracker.Press(token)
}

// Release forwards a pointer/touch release with its contact token.
func (a *App) Release(token string) {
	a.tracker.Release(token)
}

// Cancel forwards a pointer-cancel signal.
func (a *App) Cancel(token string) {
	a.tracker.Cancel(token)
}

// Blur forwards window/focus loss.
func (a *App) Blur() {
	a.tracker.Blur()
}

// Status returns the current observable status.
func (a *App) Status() domain.Status {
	return a.orchestrator.Status()
}

// RuntimeInfo returns non-sensitive config for the frontend.
func (a *App) RuntimeInfo() map[string]string {
	return map[string]string{
		"audioBackend":   a.cfg.Audio.Backend,
		"sampleRate":     strconv.Itoa(a.cfg.Audio.SampleRate),
		"channels":       strconv.Itoa(a.cfg.Audio.Channels),
		"maxRecordingMs": strconv.Itoa(int(a.cfg.Capture.MaxDuration.Milliseconds())),
	}
}

// Shutdown tears down the session state machine.
func (a *App) Shutdown() {
	a.tracker.Blur()
	a.orchestrator.Shutdown()
}
