// Package prompt speaks interview questions aloud.
package prompt

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/tts"
)

// ErrInterrupted resolves an utterance that was stopped before it finished
var ErrInterrupted = errors.New("prompt interrupted")

// Player plays PCM audio and blocks until playback finishes or ctx is done
type Player interface {
	Play(ctx context.Context, chunk *tts.AudioChunk) error
}

// Completion resolves exactly once when an utterance finishes
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) resolve(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed when the utterance has finished
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the outcome; nil until Done is closed
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the utterance finishes or ctx is done
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type utterance struct {
	cancel     context.CancelFunc
	completion *Completion
}

// Prompter synthesizes text and plays it, one utterance at a time
type Prompter struct {
	synth  tts.Synthesizer
	player Player
	logger zerolog.Logger

	serial  sync.Mutex // orders concurrent Speak calls
	mu      sync.Mutex
	current *utterance
}

// NewPrompter creates a prompter
func NewPrompter(synth tts.Synthesizer, player Player, logger zerolog.Logger) *Prompter {
	return &Prompter{
		synth:  synth,
		player: player,
		logger: observability.Component(logger, "prompt"),
	}
}

// Speak stops any current utterance, then starts speaking text. The returned
// Completion resolves once, with nil on normal completion.
func (p *Prompter) Speak(ctx context.Context, text string) *Completion {
	p.serial.Lock()
	defer p.serial.Unlock()

	p.Stop()

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, completion: newCompletion()}

	p.mu.Lock()
	p.current = u
	p.mu.Unlock()

	go func() {
		defer cancel()
		err := p.run(uctx, text)
		if err != nil && uctx.Err() != nil {
			err = ErrInterrupted
		}
		u.completion.resolve(err)

		p.mu.Lock()
		if p.current == u {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	return u.completion
}

func (p *Prompter) run(ctx context.Context, text string) error {
	chunk, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Speech synthesis failed")
		return err
	}
	if err := p.player.Play(ctx, chunk); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("Playback failed")
		}
		return err
	}
	return nil
}

// Stop interrupts the current utterance and waits for it to resolve
func (p *Prompter) Stop() {
	p.mu.Lock()
	u := p.current
	p.current = nil
	p.mu.Unlock()

	if u == nil {
		return
	}
	u.cancel()
	<-u.completion.Done()
}

// Speaking reports whether an utterance is in progress
func (p *Prompter) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}
