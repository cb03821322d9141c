//go:build portaudio

package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/tts"
)

// Open initializes PortAudio and returns the default input and output
func Open(logger zerolog.Logger) (*System, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, capture.DeviceError(fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	logger = observability.Component(logger, "device")
	if in, err := portaudio.DefaultInputDevice(); err == nil {
		logger.Info().Str("input", in.Name).Msg("Using default input device")
	}
	if out, err := portaudio.DefaultOutputDevice(); err == nil {
		logger.Info().Str("output", out.Name).Msg("Using default output device")
	}

	return &System{
		Source: &microphone{logger: logger},
		Player: &speaker{logger: logger},
		close:  portaudio.Terminate,
	}, nil
}

// microphone opens the default input device
type microphone struct {
	logger zerolog.Logger
}

func (m *microphone) Open(ctx context.Context, format audio.Format) (capture.Stream, error) {
	if format.Channels != 1 || format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported capture format %+v", format)
	}

	buf := make([]int16, inputFrames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(format.SampleRate), len(buf), buf)
	if err != nil {
		return nil, capture.DeviceError(fmt.Errorf("failed to open input stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, capture.DeviceError(fmt.Errorf("failed to start input stream: %w", err))
	}

	return &inputStream{stream: stream, buf: buf, logger: m.logger}, nil
}

// inputStream is only touched by the reading goroutine; Close flags it and
// the next ReadFrame releases the device.
type inputStream struct {
	stream   *portaudio.Stream
	buf      []int16
	closed   atomic.Bool
	released bool
	logger   zerolog.Logger
}

func (s *inputStream) ReadFrame(ctx context.Context) ([]byte, error) {
	if s.released {
		return nil, io.EOF
	}
	if s.closed.Load() || ctx.Err() != nil {
		s.release()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		if err == portaudio.InputOverflowed {
			s.logger.Debug().Msg("Input overflowed")
		} else {
			s.release()
			return nil, capture.DeviceError(err)
		}
	}
	return audio.SamplesToBytes(s.buf), nil
}

func (s *inputStream) release() {
	s.released = true
	if err := s.stream.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop input stream")
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close input stream")
	}
}

func (s *inputStream) Close() error {
	s.closed.Store(true)
	return nil
}

// speaker plays one chunk at a time on the default output device
type speaker struct {
	mu     sync.Mutex
	logger zerolog.Logger
}

func (p *speaker) Play(ctx context.Context, chunk *tts.AudioChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int16, outputFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(chunk.Format.SampleRate), len(out), out)
	if err != nil {
		return capture.DeviceError(fmt.Errorf("failed to open output stream: %w", err))
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return capture.DeviceError(fmt.Errorf("failed to start output stream: %w", err))
	}
	defer stream.Stop()

	samples := audio.BytesToSamples(chunk.Data)
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(out, samples)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		samples = samples[n:]

		if err := stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return fmt.Errorf("playback failed: %w", err)
		}
	}
	return nil
}
