package capture

import (
	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/config"
)

// ConfigFrom builds recorder settings from service configuration
func ConfigFrom(cfg *config.Config) Config {
	format := audio.DefaultCaptureFormat
	if cfg.CaptureSampleRate > 0 {
		format.SampleRate = cfg.CaptureSampleRate
	}

	vad := audio.DefaultVADConfig()
	if cfg.VADEnergyThreshold > 0 {
		vad.EnergyThreshold = cfg.VADEnergyThreshold
	}
	if cfg.VADSilenceFrames > 0 {
		vad.SilenceFrames = cfg.VADSilenceFrames
	}
	vad.FrameSize = format.SampleRate / 50 // 20ms

	return Config{
		Dir:    cfg.CaptureDir,
		Format: format,
		VAD:    vad,
	}
}
