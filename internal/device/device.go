// Package device connects interviews to the local microphone and speaker.
// Real devices need the portaudio build tag; without it Open reports the
// devices as unavailable.
package device

import (
	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/prompt"
)

const (
	// inputFrames is 100ms at 16kHz
	inputFrames = 1600
	// outputFrames is 40ms at 24kHz
	outputFrames = 960
)

// System is an opened pair of local audio devices
type System struct {
	Source capture.Source
	Player prompt.Player
	close  func() error
}

// Close releases the audio devices
func (s *System) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
