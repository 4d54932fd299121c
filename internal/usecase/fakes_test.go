package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"pushtalk/internal/domain"
	"pushtalk/internal/ports"
)

type fakeMicStream struct {
	mu         sync.Mutex
	data       []byte
	pos        int
	closed     chan struct{}
	closeOnce  sync.Once
	closeCalls int
}

func newFakeMicStream(data []byte) *fakeMicStream {
	return &fakeMicStream{data: data, closed: make(chan struct{})}
}

func (s *fakeMicStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.pos < len(s.data) {
		n := copy(p, s.data[s.pos:])
		s.pos += n
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	<-s.closed
	return 0, io.EOF
}

func (s *fakeMicStream) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeMicStream) closedCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type fakeDeviceAccess struct {
	mu      sync.Mutex
	streams []ports.MicStream
	err     error
	// gate, when set, blocks Acquire until closed — simulates a pending
	// permission prompt.
	gate  chan struct{}
	calls int
}

func (f *fakeDeviceAccess) Acquire(_ context.Context, _ ports.AudioConfig) (ports.MicStream, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls > len(f.streams) {
		return nil, errors.New("no mic stream configured")
	}
	return f.streams[f.calls-1], nil
}

func (f *fakeDeviceAccess) acquireCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEncoder concatenates chunks without any container framing.
type fakeEncoder struct{}

func (fakeEncoder) Encoding() domain.Encoding { return domain.EncodingWAV }

func (fakeEncoder) Finalize(chunks [][]byte, _ ports.AudioConfig) ([]byte, error) {
	var out []byte
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out, nil
}

type failingEncoder struct{}

func (failingEncoder) Encoding() domain.Encoding { return domain.EncodingWAV }

func (failingEncoder) Finalize([][]byte, ports.AudioConfig) ([]byte, error) {
	return nil, errors.New("encoder exploded")
}

type captureFailure struct {
	code   domain.ErrorCode
	detail string
}

type fakeCaptureActions struct {
	started  chan struct{}
	finished chan *domain.Artifact
	failed   chan captureFailure
}

func newFakeCaptureActions() *fakeCaptureActions {
	return &fakeCaptureActions{
		started:  make(chan struct{}, 4),
		finished: make(chan *domain.Artifact, 4),
		failed:   make(chan captureFailure, 4),
	}
}

func (f *fakeCaptureActions) CaptureStarted() { f.started <- struct{}{} }

func (f *fakeCaptureActions) CaptureFinished(artifact *domain.Artifact) { f.finished <- artifact }

func (f *fakeCaptureActions) CaptureFailed(code domain.ErrorCode, detail string) {
	f.failed <- captureFailure{code: code, detail: detail}
}

type fakeGestureActions struct {
	mu       sync.Mutex
	starts   int
	ends     []domain.ReleaseReason
}

func (f *fakeGestureActions) PressStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeGestureActions) PressEnded(reason domain.ReleaseReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, reason)
}

func (f *fakeGestureActions) snapshot() (int, []domain.ReleaseReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ends := make([]domain.ReleaseReason, len(f.ends))
	copy(ends, f.ends)
	return f.starts, ends
}

type fakeAssistant struct {
	mu    sync.Mutex
	reply domain.Reply
	err   error
	// gate, when set, blocks Converse until closed.
	gate      chan struct{}
	artifacts []domain.Artifact
}

func (f *fakeAssistant) Converse(_ context.Context, artifact domain.Artifact) (domain.Reply, error) {
	f.mu.Lock()
	gate := f.gate
	f.artifacts = append(f.artifacts, artifact)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Reply{}, f.err
	}
	return f.reply, nil
}

func (f *fakeAssistant) converseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.artifacts)
}

type fakePlayer struct {
	mu      sync.Mutex
	err     error
	plays   int
	formats []string
}

func (f *fakePlayer) Play(_ context.Context, _ []byte, format string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	f.formats = append(f.formats, format)
	return f.err
}

func (f *fakePlayer) playCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

type fakeStatusSink struct {
	mu      sync.Mutex
	history []domain.Status
	arrived chan domain.Status
}

func newFakeStatusSink() *fakeStatusSink {
	return &fakeStatusSink{arrived: make(chan domain.Status, 32)}
}

func (f *fakeStatusSink) StatusChanged(status domain.Status) {
	f.mu.Lock()
	f.history = append(f.history, status)
	f.mu.Unlock()
	f.arrived <- status
}

func (f *fakeStatusSink) snapshot() []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Status, len(f.history))
	copy(out, f.history)
	return out
}

// waitForPhase consumes sink transitions until the phase arrives.
func waitForPhase(t *testing.T, sink *fakeStatusSink, phase domain.Phase) domain.Status {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case status := <-sink.arrived:
			if status.Phase == phase {
				return status
			}
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s (history: %+v)", phase, sink.snapshot())
			return domain.Status{}
		}
	}
}

func waitForArtifact(t *testing.T, actions *fakeCaptureActions) *domain.Artifact {
	t.Helper()

	select {
	case artifact := <-actions.finished:
		return artifact
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for capture to finish")
		return nil
	}
}

func waitForStarted(t *testing.T, actions *fakeCaptureActions) {
	t.Helper()

	select {
	case <-actions.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for capture to start")
	}
}

func waitForFailure(t *testing.T, actions *fakeCaptureActions) captureFailure {
	t.Helper()

	select {
	case failure := <-actions.failed:
		return failure
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for capture failure")
		return captureFailure{}
	}
}

// eventually polls until the condition holds.
func eventually(t *testing.T, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", message)
}
