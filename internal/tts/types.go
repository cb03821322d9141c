package tts

import (
	"context"
	"time"

	"github.com/lexiqai/voice-interview/internal/audio"
)

// AudioChunk represents synthesized speech ready for playback
type AudioChunk struct {
	Data   []byte       // Raw PCM, 16-bit little-endian
	Format audio.Format // Layout of Data
}

// Duration returns the playback length of the chunk
func (c *AudioChunk) Duration() time.Duration {
	return c.Format.Duration(int64(len(c.Data)))
}

// Synthesizer converts text to speech audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*AudioChunk, error)
}
