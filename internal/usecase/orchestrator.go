package usecase

import (
	"context"
	"sync"
	"time"

	"pushtalk/internal/domain"
	"pushtalk/internal/ports"
)

// OrchestratorConfig controls the status progression.
type OrchestratorConfig struct {
	Capture         CaptureConfig
	ErrorClearDelay time.Duration
}

// Orchestrator drives the idle → recording → processing → playing → idle
// progression for one press at a time. It reacts to gesture callbacks,
// owns the capture manager, sends finished artifacts across the assistant
// boundary and plays the reply. Every observable transition flows through
// the status sink in order.
type Orchestrator struct {
	capture   *CaptureManager
	assistant ports.Assistant
	player    ports.Player
	sink      ports.StatusSink
	cfg       OrchestratorConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	phase   domain.Phase
	message string
	// errGen invalidates pending auto-clear timers once a newer transition
	// has superseded the error they belong to.
	errGen int
}

func NewOrchestrator(
	device ports.DeviceAccess,
	encoder ports.Encoder,
	assistant ports.Assistant,
	player ports.Player,
	sink ports.StatusSink,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.ErrorClearDelay <= 0 {
		cfg.ErrorClearDelay = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		assistant: assistant,
		player:    player,
		sink:      sink,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		phase:     domain.PhaseIdle,
	}
	o.capture = NewCaptureManager(device, encoder, o, cfg.Capture)
	return o
}

// Status returns the current observable status.
func (o *Orchestrator) Status() domain.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.Status{Phase: o.phase, Message: o.message}
}

// CaptureState exposes the underlying session state.
func (o *Orchestrator) CaptureState() domain.CaptureState {
	return o.capture.State()
}

// PressStarted begins a new capture unless a previous press is still being
// processed or played back.
func (o *Orchestrator) PressStarted() {
	o.mu.Lock()
	switch o.phase {
	case domain.PhaseProcessing, domain.PhasePlaying:
		o.mu.Unlock()
		return
	case domain.PhaseError:
		// A fresh press is the retry path; supersede the sticky message
		// and any pending auto-clear.
		o.errGen++
		o.phase = domain.PhaseIdle
		o.message = ""
	}
	o.mu.Unlock()

	o.capture.Start(o.ctx)
}

// PressEnded stops the active capture. Safe regardless of session state.
func (o *Orchestrator) PressEnded(reason domain.ReleaseReason) {
	o.capture.Stop()
}

// CaptureStarted marks the recording phase.
func (o *Orchestrator) CaptureStarted() {
	o.transition(domain.PhaseRecording, "")
}

// CaptureFinished routes a finished artifact across the boundary. An empty
// recording quietly returns to idle without a boundary call.
func (o *Orchestrator) CaptureFinished(artifact *domain.Artifact) {
	if artifact == nil {
		o.mu.Lock()
		backToIdle := o.phase == domain.PhaseRecording
		o.mu.Unlock()
		if backToIdle {
			o.transition(domain.PhaseIdle, "")
		}
		return
	}

	o.transition(domain.PhaseProcessing, "")
	go o.converse(*artifact)
}

// CaptureFailed surfaces device and encoder failures.
func (o *Orchestrator) CaptureFailed(code domain.ErrorCode, detail string) {
	o.fail(code, detail)
}

func (o *Orchestrator) converse(artifact domain.Artifact) {
	reply, err := o.assistant.Converse(o.ctx, artifact)
	if err != nil {
		o.fail(domain.ErrorCodeBoundary, err.Error())
		return
	}

	o.transition(domain.PhasePlaying, "")
	if err := o.player.Play(o.ctx, reply.Audio, reply.Format); err != nil {
		o.fail(domain.ErrorCodePlayback, "")
		return
	}

	o.transition(domain.PhaseIdle, "")
}

// Shutdown aborts any active capture and cancels in-flight boundary calls
// and playback.
func (o *Orchestrator) Shutdown() {
	o.cancel()
	o.capture.Abort()
}

func (o *Orchestrator) transition(phase domain.Phase, message string) {
	o.mu.Lock()
	o.errGen++
	o.phase = phase
	o.message = message
	status := domain.Status{Phase: phase, Message: message}
	o.mu.Unlock()

	o.sink.StatusChanged(status)
}

func (o *Orchestrator) fail(code domain.ErrorCode, detail string) {
	message := errorMessage(code, detail)

	o.mu.Lock()
	o.errGen++
	gen := o.errGen
	o.phase = domain.PhaseError
	o.message = message
	o.mu.Unlock()

	o.sink.StatusChanged(domain.Status{Phase: domain.PhaseError, Message: message})

	// Permission errors stay up until the user acts; everything else
	// clears back to idle after a fixed delay.
	if code == domain.ErrorCodePermission {
		return
	}

	time.AfterFunc(o.cfg.ErrorClearDelay, func() {
		o.mu.Lock()
		if o.phase != domain.PhaseError || o.errGen != gen {
			o.mu.Unlock()
			return
		}
		o.phase = domain.PhaseIdle
		o.message = ""
		o.mu.Unlock()

		o.sink.StatusChanged(domain.Status{Phase: domain.PhaseIdle})
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodePermission:
		return "Microphone access denied. Allow microphone access and press again."
	case domain.ErrorCodeCapture:
		if detail != "" {
			return "Could not record audio: " + detail
		}
		return "Could not record audio."
	case domain.ErrorCodeBoundary:
		if detail != "" {
			return detail
		}
		return "The assistant could not process your request."
	case domain.ErrorCodePlayback:
		return "Could not play the reply. Press to try again."
	default:
		if detail != "" {
			return detail
		}
		return "Unknown error"
	}
}
