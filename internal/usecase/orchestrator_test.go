package usecase

import (
	"errors"
	"testing"
	"time"

	"pushtalk/internal/domain"
	"pushtalk/internal/ports"
)

type orchestratorFixture struct {
	device    *fakeDeviceAccess
	assistant *fakeAssistant
	player    *fakePlayer
	sink      *fakeStatusSink
	orch      *Orchestrator
}

func newOrchestratorFixture(device *fakeDeviceAccess, assistant *fakeAssistant, player *fakePlayer) *orchestratorFixture {
	sink := newFakeStatusSink()
	orch := NewOrchestrator(device, fakeEncoder{}, assistant, player, sink, OrchestratorConfig{
		Capture: CaptureConfig{
			Audio:       ports.AudioConfig{SampleRate: 160, Channels: 1},
			MaxDuration: time.Minute,
			Timeslice:   10 * time.Millisecond,
		},
		ErrorClearDelay: 40 * time.Millisecond,
	})
	return &orchestratorFixture{device: device, assistant: assistant, player: player, sink: sink, orch: orch}
}

func phases(history []domain.Status) []domain.Phase {
	out := make([]domain.Phase, len(history))
	for i, status := range history {
		out[i] = status.Phase
	}
	return out
}

func TestOrchestratorFullRoundTrip(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	f := newOrchestratorFixture(
		&fakeDeviceAccess{streams: []ports.MicStream{stream}},
		&fakeAssistant{reply: domain.Reply{Audio: []byte("mp3-bytes"), Format: "mp3"}},
		&fakePlayer{},
	)

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseRecording)

	f.orch.PressEnded(domain.ReleaseReasonPointer)
	waitForPhase(t, f.sink, domain.PhaseIdle)

	got := phases(f.sink.snapshot())
	want := []domain.Phase{domain.PhaseRecording, domain.PhaseProcessing, domain.PhasePlaying, domain.PhaseIdle}
	if len(got) != len(want) {
		t.Fatalf("unexpected status sequence %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected status sequence %v, want %v", got, want)
		}
	}

	if f.assistant.converseCalls() != 1 {
		t.Fatalf("expected one boundary call, got %d", f.assistant.converseCalls())
	}
	if f.player.playCalls() != 1 {
		t.Fatalf("expected one playback, got %d", f.player.playCalls())
	}
	if f.orch.CaptureState() != domain.CaptureIdle {
		t.Fatalf("expected capture idle at the end")
	}
}

func TestOrchestratorHoldPastMaxDurationAutoStops(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4})
	sink := newFakeStatusSink()
	assistant := &fakeAssistant{reply: domain.Reply{Audio: []byte("a"), Format: "mp3"}}
	orch := NewOrchestrator(
		&fakeDeviceAccess{streams: []ports.MicStream{stream}},
		fakeEncoder{},
		assistant,
		&fakePlayer{},
		sink,
		OrchestratorConfig{
			Capture: CaptureConfig{
				Audio:       ports.AudioConfig{SampleRate: 160, Channels: 1},
				MaxDuration: 60 * time.Millisecond,
				Timeslice:   5 * time.Millisecond,
			},
			ErrorClearDelay: 40 * time.Millisecond,
		},
	)

	orch.PressStarted()
	waitForPhase(t, sink, domain.PhaseRecording)

	// No release: the duration guard must drive the stop.
	waitForPhase(t, sink, domain.PhaseProcessing)
	waitForPhase(t, sink, domain.PhaseIdle)

	if assistant.converseCalls() != 1 {
		t.Fatalf("expected the auto-stopped recording to reach the boundary")
	}
}

func TestOrchestratorBoundaryErrorClearsAfterDelay(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4})
	f := newOrchestratorFixture(
		&fakeDeviceAccess{streams: []ports.MicStream{stream}},
		&fakeAssistant{err: errors.New("Could not understand audio.")},
		&fakePlayer{},
	)

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseRecording)
	f.orch.PressEnded(domain.ReleaseReasonPointer)

	status := waitForPhase(t, f.sink, domain.PhaseError)
	if status.Message != "Could not understand audio." {
		t.Fatalf("expected the service message, got %q", status.Message)
	}
	if f.player.playCalls() != 0 {
		t.Fatalf("playback must not start after a boundary failure")
	}

	// Error auto-clears with the message removed.
	cleared := waitForPhase(t, f.sink, domain.PhaseIdle)
	if cleared.Message != "" {
		t.Fatalf("expected cleared message, got %q", cleared.Message)
	}
	if got := f.orch.Status(); got.Phase != domain.PhaseIdle || got.Message != "" {
		t.Fatalf("unexpected final status %+v", got)
	}
}

func TestOrchestratorDeviceDeniedNeverRecords(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(
		&fakeDeviceAccess{err: domain.ErrDeviceDenied},
		&fakeAssistant{},
		&fakePlayer{},
	)

	f.orch.PressStarted()

	status := waitForPhase(t, f.sink, domain.PhaseError)
	if status.Message == "" {
		t.Fatalf("expected a remediation message")
	}

	for _, seen := range f.sink.snapshot() {
		if seen.Phase == domain.PhaseRecording {
			t.Fatalf("recording phase must never be entered on denial")
		}
	}

	// Permission errors are sticky: no auto-clear.
	time.Sleep(120 * time.Millisecond)
	if got := f.orch.Status(); got.Phase != domain.PhaseError {
		t.Fatalf("permission error must not auto-clear, got %+v", got)
	}

	if f.assistant.converseCalls() != 0 {
		t.Fatalf("no boundary call expected on denial")
	}
}

func TestOrchestratorPlaybackFailure(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4})
	f := newOrchestratorFixture(
		&fakeDeviceAccess{streams: []ports.MicStream{stream}},
		&fakeAssistant{reply: domain.Reply{Audio: []byte("a"), Format: "mp3"}},
		&fakePlayer{err: errors.New("decode failed")},
	)

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseRecording)
	f.orch.PressEnded(domain.ReleaseReasonPointer)

	status := waitForPhase(t, f.sink, domain.PhaseError)
	if status.Message != "Could not play the reply. Press to try again." {
		t.Fatalf("expected the playback message, got %q", status.Message)
	}

	waitForPhase(t, f.sink, domain.PhaseIdle)
}

func TestOrchestratorEmptyRecordingSkipsBoundary(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream(nil)
	f := newOrchestratorFixture(
		&fakeDeviceAccess{streams: []ports.MicStream{stream}},
		&fakeAssistant{},
		&fakePlayer{},
	)

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseRecording)
	f.orch.PressEnded(domain.ReleaseReasonPointer)

	waitForPhase(t, f.sink, domain.PhaseIdle)

	if f.assistant.converseCalls() != 0 {
		t.Fatalf("zero-byte recording must never reach the boundary")
	}
	for _, seen := range f.sink.snapshot() {
		if seen.Phase == domain.PhaseProcessing {
			t.Fatalf("processing phase must not appear for an empty recording")
		}
	}
}

func TestOrchestratorRejectsPressWhileProcessing(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4})
	gate := make(chan struct{})
	assistant := &fakeAssistant{gate: gate, reply: domain.Reply{Audio: []byte("a"), Format: "mp3"}}
	device := &fakeDeviceAccess{streams: []ports.MicStream{stream, newFakeMicStream(nil)}}
	f := newOrchestratorFixture(device, assistant, &fakePlayer{})

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseRecording)
	f.orch.PressEnded(domain.ReleaseReasonPointer)
	waitForPhase(t, f.sink, domain.PhaseProcessing)

	// A press during processing must not open the mic again.
	f.orch.PressStarted()
	if device.acquireCalls() != 1 {
		t.Fatalf("expected press during processing to be rejected")
	}

	close(gate)
	waitForPhase(t, f.sink, domain.PhaseIdle)
}

func TestOrchestratorPressRetriesFromError(t *testing.T) {
	t.Parallel()

	stream := newFakeMicStream([]byte{1, 2, 3, 4})
	device := &fakeDeviceAccess{err: domain.ErrDeviceDenied}
	f := newOrchestratorFixture(device, &fakeAssistant{reply: domain.Reply{Audio: []byte("a"), Format: "mp3"}}, &fakePlayer{})

	f.orch.PressStarted()
	waitForPhase(t, f.sink, domain.PhaseError)

	// The user re-presses once the error is shown; access succeeds now.
	device.mu.Lock()
	device.err = nil
	device.streams = []ports.MicStream{stream}
	device.calls = 0
	device.mu.Unlock()

	f.orch.PressStarted()
	status := waitForPhase(t, f.sink, domain.PhaseRecording)
	if status.Message != "" {
		t.Fatalf("expected the error message to be superseded, got %q", status.Message)
	}
}
