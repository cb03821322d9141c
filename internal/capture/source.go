package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/voice-interview/internal/audio"
)

var (
	// ErrDeviceUnavailable means the microphone could not be opened
	// (missing device, denied permission, disconnected client).
	ErrDeviceUnavailable = errors.New("audio input device unavailable")

	// ErrAlreadyCapturing is returned by Start while a recording is active
	ErrAlreadyCapturing = errors.New("capture already in progress")
)

// Source opens input streams on an audio device
type Source interface {
	Open(ctx context.Context, format audio.Format) (Stream, error)
}

// Stream delivers PCM frames from an open device.
//
// ReadFrame blocks until a frame is available. After Close, buffered frames
// may still be returned; io.EOF marks the end of the stream.
type Stream interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// DeviceError wraps an underlying device failure as ErrDeviceUnavailable
func DeviceError(err error) error {
	if err == nil || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
