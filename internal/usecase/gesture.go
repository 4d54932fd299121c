package usecase

import (
	"sync"

	"pushtalk/internal/domain"
)

// GestureActions receives the resolved press lifecycle. Implementations
// must not call back into the tracker.
type GestureActions interface {
	PressStarted()
	PressEnded(reason domain.ReleaseReason)
}

// GestureTracker collapses redundant and partially-unreliable press/release
// signals (pointer release, touch end, window blur, pointer cancel) into
// exactly one start/stop pair per press. Only the contact token that armed
// the press may end it; window blur ends it unconditionally.
type GestureTracker struct {
	mu      sync.Mutex
	armed   bool
	token   string
	actions GestureActions
}

func NewGestureTracker(actions GestureActions) *GestureTracker {
	return &GestureTracker{actions: actions}
}

// Press arms the tracker with the contact's token. A second concurrent
// contact is ignored while a press is armed.
func (t *GestureTracker) Press(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		return
	}
	t.armed = true
	t.token = token
	t.actions.PressStarted()
}

// Release ends the press when the token matches the arming contact.
// Mismatched or absent tokens are a no-op.
func (t *GestureTracker) Release(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed || t.token != token {
		return
	}
	t.disarmLocked(domain.ReleaseReasonPointer)
}

// Cancel is deliberately a no-op: pointer-cancel fires spuriously on some
// platforms mid-press. The capture-side duration guard bounds a press whose
// real release is never observed.
func (t *GestureTracker) Cancel(token string) {}

// Blur ends an armed press regardless of token. Focus loss suppresses the
// normal release events (permission dialogs, app switches), so it always
// counts as letting go.
func (t *GestureTracker) Blur() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		return
	}
	t.disarmLocked(domain.ReleaseReasonBlur)
}

// Armed reports whether a press currently owns the tracker.
func (t *GestureTracker) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *GestureTracker) disarmLocked(reason domain.ReleaseReason) {
	t.armed = false
	t.token = ""
	t.actions.PressEnded(reason)
}
