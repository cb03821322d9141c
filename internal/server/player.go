package server

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/tts"
)

// errPlaybackTimeout means the client never acknowledged an audio mark
var errPlaybackTimeout = errors.New("playback not acknowledged")

// wsPlayer plays prompts on the remote client. Play sends the audio and
// blocks until the client reports the mark as played.
type wsPlayer struct {
	send  func(ServerMessage) error
	grace time.Duration

	mu      sync.Mutex
	pending map[string]chan struct{}
}

func newWSPlayer(send func(ServerMessage) error, grace time.Duration) *wsPlayer {
	return &wsPlayer{
		send:    send,
		grace:   grace,
		pending: make(map[string]chan struct{}),
	}
}

func (p *wsPlayer) Play(ctx context.Context, chunk *tts.AudioChunk) error {
	mark := uuid.NewString()
	ack := make(chan struct{})

	p.mu.Lock()
	p.pending[mark] = ack
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, mark)
		p.mu.Unlock()
	}()

	err := p.send(ServerMessage{
		Event: EventAudio,
		Audio: &Audio{
			Mark:       mark,
			Payload:    base64.StdEncoding.EncodeToString(chunk.Data),
			SampleRate: chunk.Format.SampleRate,
		},
	})
	if err != nil {
		// The client is the speaker; losing it loses the output device
		return capture.DeviceError(err)
	}

	timer := time.NewTimer(chunk.Duration() + p.grace)
	defer timer.Stop()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errPlaybackTimeout
	}
}

// played resolves mark. Unknown or repeated marks are ignored.
func (p *wsPlayer) played(mark string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ack, ok := p.pending[mark]
	if !ok {
		return false
	}
	delete(p.pending, mark)
	close(ack)
	return true
}
