package domain

import "errors"

// Phase models the externally visible push-to-talk status.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhaseProcessing Phase = "processing"
	PhasePlaying    Phase = "playing"
	PhaseError      Phase = "error"
)

// CaptureState models the microphone session lifecycle.
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureActive     CaptureState = "active"
	CaptureFinalizing CaptureState = "finalizing"
)

// ErrorCode identifies the failure class behind an error phase.
type ErrorCode string

const (
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeBoundary   ErrorCode = "boundary"
	ErrorCodePlayback   ErrorCode = "playback"
)

// ReleaseReason identifies which signal ended a press.
type ReleaseReason string

const (
	ReleaseReasonPointer ReleaseReason = "pointer"
	ReleaseReasonBlur    ReleaseReason = "blur"
)

// Encoding identifies a recording container format on the wire.
type Encoding string

const (
	EncodingWebM Encoding = "webm"
	EncodingMP4  Encoding = "mp4"
	EncodingWAV  Encoding = "wav"
)

// ErrDeviceDenied marks a microphone acquisition rejected by the user or
// the system permission layer, as opposed to a device that merely failed.
var ErrDeviceDenied = errors.New("microphone access denied")

// Artifact is one finished recording. It is produced once per capture
// session and consumed exactly once.
type Artifact struct {
	Data     []byte
	Encoding Encoding
}

// Reply is the assistant's synthesized answer to one artifact.
type Reply struct {
	Audio      []byte
	Format     string
	Transcript string
	Response   string
}

// Status summarizes the current runtime status.
type Status struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
}
