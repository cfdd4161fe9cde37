package recorder

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned by Start when capture access is refused.
	ErrPermissionDenied = errors.New("recorder: permission denied")
	// ErrDeviceUnavailable is returned by Start when no usable input device exists.
	ErrDeviceUnavailable = errors.New("recorder: device unavailable")
	// ErrNotRecording is returned by Stop when no capture is active.
	ErrNotRecording = errors.New("recorder: not recording")
	// ErrAlreadyRecording is returned by Start when a capture is already active.
	ErrAlreadyRecording = errors.New("recorder: already recording")
)

// Recorder captures one answer at a time.
type Recorder interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start acquires the input device and begins capture. It may block until
	// the device is ready.
	Start(ctx context.Context) error
	// Stop flushes pending audio, releases the device and returns the clip.
	Stop(ctx context.Context) (Recording, error)
}

// Preparer is implemented by recorders that can warm up the audio stack
// before the first round.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Analyser exposes the most recent captured samples for visualisation.
type Analyser interface {
	Snapshot() []int16
}

// Recording is the opaque payload produced by a finished capture.
type Recording struct {
	Data     []byte
	MIMEType string
	Filename string
	Duration time.Duration
}

// Empty reports whether the recording carries no audio.
func (r Recording) Empty() bool { return len(r.Data) == 0 }

// EmptyRecording is submitted when capture never started.
func EmptyRecording() Recording {
	return Recording{MIMEType: "audio/webm", Filename: "recording.webm"}
}

// IsStartFailure reports whether err is one of the documented start failures.
func IsStartFailure(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable)
}
