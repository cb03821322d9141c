//go:build !portaudio

package device

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/capture"
)

var errNoPortAudio = errors.New("built without portaudio support")

// Open always fails without the portaudio build tag
func Open(logger zerolog.Logger) (*System, error) {
	return nil, capture.DeviceError(errNoPortAudio)
}
