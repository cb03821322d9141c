package capture

import (
	"context"
	"io"
	"sync"

	"github.com/lexiqai/voice-interview/internal/audio"
)

// ChannelSource is a Source fed by pushed PCM, such as audio streamed by a
// websocket client. Audio pushed while no stream is open is discarded.
type ChannelSource struct {
	mu         sync.Mutex
	buf        *audio.RingBuffer
	frameBytes int
	notify     chan struct{}
	open       *channelStream
	closed     bool
	dropped    int64
}

// NewChannelSource creates a source buffering up to bufferSize bytes and
// delivering frames of at most frameBytes.
func NewChannelSource(bufferSize, frameBytes int) *ChannelSource {
	if frameBytes <= 0 {
		frameBytes = 3200 // 100ms at 16kHz mono
	}
	return &ChannelSource{
		buf:        audio.NewRingBuffer(bufferSize),
		frameBytes: frameBytes,
		notify:     make(chan struct{}, 1),
	}
}

// Push appends PCM to the open stream and returns the bytes accepted
func (s *ChannelSource) Push(pcm []byte) int {
	s.mu.Lock()
	if s.open == nil || s.open.closed || s.closed {
		s.mu.Unlock()
		return 0
	}
	n := s.buf.Write(pcm)
	s.dropped += int64(len(pcm) - n)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return n
}

// Dropped returns how many pushed bytes were lost to a full buffer
func (s *ChannelSource) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close marks the device as gone. Open fails afterwards and an open stream
// ends once its buffer is drained.
func (s *ChannelSource) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Open starts a new stream. Only one stream may be open at a time.
func (s *ChannelSource) Open(ctx context.Context, format audio.Format) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrDeviceUnavailable
	}
	if s.open != nil && !s.open.closed {
		return nil, ErrAlreadyCapturing
	}

	s.buf.Clear()
	s.open = &channelStream{src: s}
	return s.open, nil
}

type channelStream struct {
	src    *ChannelSource
	closed bool
}

func (c *channelStream) ReadFrame(ctx context.Context) ([]byte, error) {
	s := c.src
	for {
		s.mu.Lock()
		if n := s.buf.Available(); n > 0 {
			if n > s.frameBytes {
				n = s.frameBytes
			}
			n -= n % 2 // keep whole 16-bit samples
			if n > 0 {
				frame := make([]byte, n)
				s.buf.Read(frame)
				s.mu.Unlock()
				return frame, nil
			}
		}
		if c.closed || s.closed {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

func (c *channelStream) Close() error {
	s := c.src
	s.mu.Lock()
	c.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}
