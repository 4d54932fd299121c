package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"pushtalk/internal/domain"
	"pushtalk/internal/ports"
)

// CaptureActions receives capture lifecycle callbacks.
type CaptureActions interface {
	// CaptureStarted fires once the device stream is live.
	CaptureStarted()
	// CaptureFinished fires when a session ends cleanly. A nil artifact
	// means the recording was empty and was dropped.
	CaptureFinished(artifact *domain.Artifact)
	// CaptureFailed fires when the device could not be acquired or the
	// recording could not be finalized.
	CaptureFailed(code domain.ErrorCode, detail string)
}

// CaptureConfig controls recording behavior.
type CaptureConfig struct {
	Audio       ports.AudioConfig
	MaxDuration time.Duration
	Timeslice   time.Duration
}

// CaptureManager owns the microphone session lifecycle. At most one session
// exists at a time; Start while one is requesting or active is a no-op, and
// Stop is idempotent. The device stream is released on every exit path.
type CaptureManager struct {
	device  ports.DeviceAccess
	encoder ports.Encoder
	actions CaptureActions
	cfg     CaptureConfig

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time

	mu      sync.Mutex
	state   domain.CaptureState
	current *captureSession
}

func NewCaptureManager(device ports.DeviceAccess, encoder ports.Encoder, actions CaptureActions, cfg CaptureConfig) *CaptureManager {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 20 * time.Second
	}
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = 100 * time.Millisecond
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	return &CaptureManager{
		device:  device,
		encoder: encoder,
		actions: actions,
		cfg:     cfg,
		clock:   time.Now,
		state:   domain.CaptureIdle,
	}
}

// State returns the current session state.
func (m *CaptureManager) State() domain.CaptureState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start requests device access and begins recording once granted. The
// grant may suspend on a user or system permission prompt; if the press is
// released during that suspension the just-granted stream is closed
// immediately and the session never reaches Active.
func (m *CaptureManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.state != domain.CaptureIdle {
		m.mu.Unlock()
		return
	}
	session := &captureSession{pumpDone: make(chan struct{})}
	m.state = domain.CaptureRequesting
	m.current = session
	m.mu.Unlock()

	go m.acquire(ctx, session)
}

func (m *CaptureManager) acquire(ctx context.Context, session *captureSession) {
	stream, err := m.device.Acquire(ctx, m.cfg.Audio)

	m.mu.Lock()
	if m.current != session {
		// Released while the grant was pending: hand the stream straight
		// back without ever going Active.
		m.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}

	if err != nil {
		m.state = domain.CaptureIdle
		m.current = nil
		m.mu.Unlock()
		if errors.Is(err, domain.ErrDeviceDenied) {
			m.actions.CaptureFailed(domain.ErrorCodePermission, err.Error())
		} else {
			m.actions.CaptureFailed(domain.ErrorCodeCapture, err.Error())
		}
		return
	}

	session.stream = stream
	session.guard = startDurationGuard(m.clock, m.cfg.MaxDuration, m.cfg.Timeslice, m.Stop)
	m.state = domain.CaptureActive
	m.mu.Unlock()

	go m.pump(session)
	m.actions.CaptureStarted()
}

// pump buffers audio in timeslice-sized chunks until the stream is closed.
func (m *CaptureManager) pump(session *captureSession) {
	defer close(session.pumpDone)

	size := chunkBytes(m.cfg)
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(session.stream, buf)
		if n > 0 {
			session.append(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Stop finalizes an active session into one artifact, or aborts a pending
// acquisition. Calling it on an idle or already-finalizing manager is a
// no-op.
func (m *CaptureManager) Stop() {
	m.mu.Lock()
	switch m.state {
	case domain.CaptureRequesting:
		m.state = domain.CaptureIdle
		m.current = nil
		m.mu.Unlock()
	case domain.CaptureActive:
		session := m.current
		m.state = domain.CaptureFinalizing
		m.mu.Unlock()
		m.finalize(session)
	default:
		m.mu.Unlock()
	}
}

func (m *CaptureManager) finalize(session *captureSession) {
	session.guard.cancel()
	_ = session.stream.Close()
	<-session.pumpDone

	chunks := session.take()

	m.mu.Lock()
	m.state = domain.CaptureIdle
	m.current = nil
	m.mu.Unlock()

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		m.actions.CaptureFinished(nil)
		return
	}

	data, err := m.encoder.Finalize(chunks, m.cfg.Audio)
	if err != nil {
		m.actions.CaptureFailed(domain.ErrorCodeCapture, err.Error())
		return
	}
	if len(data) == 0 {
		m.actions.CaptureFinished(nil)
		return
	}

	m.actions.CaptureFinished(&domain.Artifact{Data: data, Encoding: m.encoder.Encoding()})
}

// Abort releases any held resources without emitting an artifact or any
// lifecycle callbacks. Used on teardown.
func (m *CaptureManager) Abort() {
	m.mu.Lock()
	session := m.current
	state := m.state
	m.state = domain.CaptureIdle
	m.current = nil
	m.mu.Unlock()

	if session == nil || state != domain.CaptureActive {
		return
	}
	session.guard.cancel()
	_ = session.stream.Close()
	<-session.pumpDone
}

func chunkBytes(cfg CaptureConfig) int {
	bytesPerSecond := cfg.Audio.SampleRate * cfg.Audio.Channels * 2
	size := int(float64(bytesPerSecond) * cfg.Timeslice.Seconds())
	if size < 2 {
		size = 2
	}
	// Frame alignment keeps samples whole across chunk boundaries.
	frame := cfg.Audio.Channels * 2
	return size - size%frame
}

type captureSession struct {
	stream   ports.MicStream
	guard    *durationGuard
	pumpDone chan struct{}

	chunkMu sync.Mutex
	chunks  [][]byte
}

func (s *captureSession) append(chunk []byte) {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

func (s *captureSession) take() [][]byte {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	chunks := s.chunks
	s.chunks = nil
	return chunks
}
