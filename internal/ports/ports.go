package ports

import (
	"context"
	"io"

	"pushtalk/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate       int
	Channels         int
	InputFormat      string
	InputDevice      string
	NoiseSuppression bool
}

// MicStream is an exclusive, revocable microphone stream. Close releases
// the underlying device and is safe to call more than once.
type MicStream interface {
	io.Reader
	Close() error
}

// DeviceAccess acquires exclusive microphone streams. Acquire may block
// while a user or system permission grant is pending; a denied grant is
// reported by wrapping domain.ErrDeviceDenied.
type DeviceAccess interface {
	Acquire(ctx context.Context, cfg AudioConfig) (MicStream, error)
}

// Encoder finalizes buffered PCM chunks into one encoded recording.
type Encoder interface {
	Encoding() domain.Encoding
	Finalize(chunks [][]byte, cfg AudioConfig) ([]byte, error)
}

// Assistant is the remote transcribe/respond/speak boundary.
type Assistant interface {
	Converse(ctx context.Context, artifact domain.Artifact) (domain.Reply, error)
}

// Player decodes and plays one reply to completion, returning once
// playback ends naturally or fails.
type Player interface {
	Play(ctx context.Context, audio []byte, format string) error
}

// StatusSink receives every observable status transition.
type StatusSink interface {
	StatusChanged(status domain.Status)
}
