package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame (320 at 16kHz = 20ms)
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADDetector performs Voice Activity Detection. Not safe for concurrent use.
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	voicedFrames   int
	totalFrames    int
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	v.totalFrames++
	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.voicedFrames++
		v.silenceCounter = 0

		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++

		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// ProcessPCM splits little-endian PCM into frames and feeds each one.
// A partial trailing frame is still processed.
func (v *VADDetector) ProcessPCM(pcm []byte) {
	samples := BytesToSamples(pcm)
	size := v.config.FrameSize
	if size <= 0 {
		size = len(samples)
	}
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		v.ProcessFrame(samples[start:end])
	}
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.voicedFrames = 0
	v.totalFrames = 0
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// VoicedFrames returns how many processed frames were above the threshold
func (v *VADDetector) VoicedFrames() int {
	return v.voicedFrames
}

// VoicedDuration converts the voiced frame count to time at sampleRate
func (v *VADDetector) VoicedDuration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := v.voicedFrames * v.config.FrameSize
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// LevelMeter tracks the most recent input amplitude normalized to [0, 1].
// Safe for concurrent use: one writer, many readers.
type LevelMeter struct {
	level atomic.Uint64
}

// levelFullScale is the RMS treated as full scale; conversational speech
// rarely exceeds it, so quieter voices still move the meter.
const levelFullScale = 10000.0

// Update records the level of a PCM frame and returns it
func (m *LevelMeter) Update(samples []int16) float64 {
	level := math.Min(CalculateRMS(samples)/levelFullScale, 1.0)
	m.level.Store(math.Float64bits(level))
	return level
}

// Level returns the last recorded level
func (m *LevelMeter) Level() float64 {
	return math.Float64frombits(m.level.Load())
}

// Reset zeroes the meter
func (m *LevelMeter) Reset() {
	m.level.Store(0)
}
