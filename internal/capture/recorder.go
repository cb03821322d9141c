package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/observability"
)

// stopGrace bounds how long Stop waits for the source to flush
const stopGrace = 2 * time.Second

// Config holds recorder settings
type Config struct {
	Dir    string // Empty uses os.TempDir
	Format audio.Format
	VAD    *audio.VADConfig
}

// Handle identifies an in-progress recording
type Handle struct {
	ID        string
	Path      string
	StartedAt time.Time
}

// Clip is a finalized recording on local disk
type Clip struct {
	ID             string
	Path           string
	Size           int64 // PCM bytes, excluding the WAV header
	Duration       time.Duration
	VoicedDuration time.Duration
	SampleRate     int
	Channels       int
	BitDepth       int
}

// Format returns the clip's PCM layout
func (c *Clip) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.BitDepth}
}

// Open opens the WAV file for reading
func (c *Clip) Open() (*os.File, error) {
	return os.Open(c.Path)
}

// Remove deletes the file. Removing an already deleted clip is not an error.
func (c *Clip) Remove() error {
	if c == nil {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type recording struct {
	handle Handle
	stream Stream
	wav    *audio.WAVWriter
	vad    *audio.VADDetector
	cancel context.CancelFunc
	done   chan struct{}
	ioErr  error
}

// Recorder writes microphone input to WAV files, one recording at a time
type Recorder struct {
	source Source
	config Config
	logger zerolog.Logger

	mu     sync.Mutex
	active *recording
	meter  audio.LevelMeter
}

// NewRecorder creates a recorder over source
func NewRecorder(source Source, config Config, logger zerolog.Logger) *Recorder {
	if config.Format.SampleRate == 0 {
		config.Format = audio.DefaultCaptureFormat
	}
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	if config.VAD == nil {
		config.VAD = audio.DefaultVADConfig()
	}
	return &Recorder{
		source: source,
		config: config,
		logger: observability.Component(logger, "capture"),
	}
}

// Start opens the device and begins writing a uniquely named WAV file.
// Device failures are reported as ErrDeviceUnavailable.
func (r *Recorder) Start(ctx context.Context) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrAlreadyCapturing
	}

	stream, err := r.source.Open(ctx, r.config.Format)
	if err != nil {
		return nil, DeviceError(err)
	}

	file, err := os.CreateTemp(r.config.Dir, "answer-*.wav")
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	wav, err := audio.NewWAVWriter(file, r.config.Format)
	if err != nil {
		stream.Close()
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	rec := &recording{
		handle: Handle{
			ID:        uuid.NewString(),
			Path:      file.Name(),
			StartedAt: time.Now(),
		},
		stream: stream,
		wav:    wav,
		vad:    audio.NewVADDetector(r.config.VAD),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = rec
	r.meter.Reset()

	go r.loop(loopCtx, rec)

	r.logger.Debug().Str("clip_id", rec.handle.ID).Str("path", rec.handle.Path).Msg("Capture started")
	handle := rec.handle
	return &handle, nil
}

func (r *Recorder) loop(ctx context.Context, rec *recording) {
	defer close(rec.done)

	for {
		frame, err := rec.stream.ReadFrame(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				rec.ioErr = err
			}
			return
		}
		if len(frame) == 0 {
			continue
		}

		if _, err := rec.wav.Write(frame); err != nil {
			rec.ioErr = err
			return
		}
		rec.vad.ProcessPCM(frame)
		r.meter.Update(audio.BytesToSamples(frame))
	}
}

// finish detaches the active recording and waits for its loop to exit
func (r *Recorder) finish() *recording {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	if rec == nil {
		return nil
	}

	if err := rec.stream.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to close input stream")
	}
	select {
	case <-rec.done:
	case <-time.After(stopGrace):
		rec.cancel()
		<-rec.done
	}
	rec.cancel()
	r.meter.Reset()
	return rec
}

// Stop finalizes the active recording. It returns nil when nothing was
// being captured, when the recording is empty, or when an I/O error
// occurred; in the latter cases the file is deleted. A second call in a
// row returns nil.
func (r *Recorder) Stop() *Clip {
	rec := r.finish()
	if rec == nil {
		return nil
	}

	closeErr := rec.wav.Close()
	size := rec.wav.DataSize()

	if rec.ioErr != nil || closeErr != nil || size == 0 {
		if err := os.Remove(rec.handle.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", rec.handle.Path).Msg("Failed to remove discarded capture")
		}
		event := r.logger.Warn()
		if rec.ioErr == nil && closeErr == nil {
			event = r.logger.Debug()
		}
		event.
			AnErr("io_error", rec.ioErr).
			AnErr("close_error", closeErr).
			Int64("bytes", size).
			Str("clip_id", rec.handle.ID).
			Msg("Capture produced no usable audio")
		return nil
	}

	f := r.config.Format
	clip := &Clip{
		ID:             rec.handle.ID,
		Path:           rec.handle.Path,
		Size:           size,
		Duration:       rec.wav.Duration(),
		VoicedDuration: rec.vad.VoicedDuration(f.SampleRate),
		SampleRate:     f.SampleRate,
		Channels:       f.Channels,
		BitDepth:       f.BitDepth,
	}

	r.logger.Debug().
		Str("clip_id", clip.ID).
		Int64("bytes", clip.Size).
		Dur("duration", clip.Duration).
		Dur("voiced", clip.VoicedDuration).
		Msg("Capture stopped")
	return clip
}

// Cancel stops the active recording and deletes its file
func (r *Recorder) Cancel() error {
	rec := r.finish()
	if rec == nil {
		return nil
	}

	rec.wav.Close()
	if err := os.Remove(rec.handle.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove partial capture: %w", err)
	}

	r.logger.Debug().Str("clip_id", rec.handle.ID).Msg("Capture cancelled")
	return nil
}

// Amplitude returns the current input level in [0, 1], or 0 when idle
func (r *Recorder) Amplitude() float64 {
	r.mu.Lock()
	active := r.active != nil
	r.mu.Unlock()

	if !active {
		return 0
	}
	return r.meter.Level()
}

// Capturing reports whether a recording is in progress
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}
