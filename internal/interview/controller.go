package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/scoring"
	"github.com/lexiqai/voice-interview/internal/speechmetrics"
	"github.com/lexiqai/voice-interview/internal/transcription"
)

var (
	ErrNoQuestions = errors.New("interview has no questions")
	ErrNotIdle     = errors.New("interview controller is not idle")
	ErrNotStarted  = errors.New("interview has not been started")
	ErrNotFailed   = errors.New("interview controller is not in error state")
)

const (
	storeTimeout  = 5 * time.Second
	scorerTimeout = 60 * time.Second
)

// Options tune one controller
type Options struct {
	Role              string
	MinAnswerDuration time.Duration
	MinAnswerBytes    int64
	ScoreWait         time.Duration // Best-effort wait for the scorer before advancing
	EnforceTimeLimits bool          // Treat Question.TimeLimit as a stop trigger
	Transcription     transcription.Options
}

// OptionsFromConfig builds controller options for role
func OptionsFromConfig(cfg *config.Config, role string) Options {
	topts := transcription.DefaultOptions()
	topts.Language = cfg.TranscriptionLanguage
	return Options{
		Role:              role,
		MinAnswerDuration: cfg.MinAnswerDuration,
		MinAnswerBytes:    cfg.MinAnswerBytes,
		ScoreWait:         cfg.ScoreWait,
		EnforceTimeLimits: cfg.EnforceTimeLimits,
		Transcription:     topts,
	}
}

// Deps are the controller's collaborators. Scorer may be nil.
type Deps struct {
	Speaker     Speaker
	Capture     Capturer
	Transcriber transcription.Transcriber
	Analyzer    *speechmetrics.Analyzer
	Scorer      AnswerScorer
	Store       SessionStore
	Logger      zerolog.Logger
}

// Update is a status change notification
type Update struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

// Controller sequences prompt playback, answer capture, transcription and
// scoring for one session at a time. Leaf services are never busy
// concurrently.
type Controller struct {
	deps Deps
	opts Options

	mu      sync.Mutex
	status  Status
	session *Session
	lastErr error
	ending  bool
	cancel  context.CancelFunc
	done    chan struct{}
	baseCtx context.Context // outlives cancellation, for persistence
	logger  zerolog.Logger
	metrics *observability.Metrics
	subs    map[int]chan Update
	nextSub int
	stopCh  chan struct{}
}

// NewController creates an idle controller
func NewController(deps Deps, opts Options) *Controller {
	if deps.Analyzer == nil {
		deps.Analyzer = speechmetrics.NewAnalyzer(nil)
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		status: StatusIdle,
		logger: observability.Component(deps.Logger, "interview"),
		subs:   make(map[int]chan Update),
		stopCh: make(chan struct{}, 1),
	}
}

// Start validates the questions, creates the session record and begins
// the question loop. It returns the session ID once the record exists.
func (c *Controller) Start(ctx context.Context, questions []Question) (string, error) {
	c.mu.Lock()
	if c.status != StatusIdle {
		c.mu.Unlock()
		return "", ErrNotIdle
	}
	if len(questions) == 0 {
		c.mu.Unlock()
		return "", ErrNoQuestions
	}

	runCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		ID:        uuid.NewString(),
		Role:      c.opts.Role,
		Questions: append([]Question(nil), questions...),
		Status:    StatusPreparing,
		Answers:   make([]AnsweredQuestion, 0, len(questions)),
		CreatedAt: time.Now(),
	}
	c.status = StatusPreparing
	c.session = session
	c.cancel = cancel
	c.done = make(chan struct{})
	c.baseCtx = context.WithoutCancel(ctx)
	c.ending = false
	c.lastErr = nil
	c.mu.Unlock()

	c.transition(StatusPreparing)

	storeCtx, storeCancel := context.WithTimeout(runCtx, storeTimeout)
	id, err := c.deps.Store.CreateSession(storeCtx, session.Clone())
	storeCancel()

	c.mu.Lock()
	ending := c.ending
	if err == nil && id != "" {
		session.ID = id
	}
	c.logger = observability.ForSession(observability.Component(c.deps.Logger, "interview"), session.ID, session.Role)
	c.metrics = observability.NewSessionMetrics(session.ID)
	c.mu.Unlock()

	c.metrics.RecordSessionStart()

	switch {
	case ending:
		// End arrived while the record was being created
		c.complete()
		close(c.done)
		return session.ID, nil
	case err != nil:
		err = fmt.Errorf("create session: %w", err)
		c.fail(err, "store")
		close(c.done)
		return "", err
	}

	c.logger.Info().Int("questions", len(questions)).Msg("Interview started")
	go c.run(runCtx, c.done)
	return session.ID, nil
}

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.deps.Speaker.Stop()

	for ctx.Err() == nil {
		index, question, ok := c.current()
		if !ok {
			break
		}
		if err := c.ask(ctx, index, question); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.fail(err, "device")
			return
		}
	}

	c.complete()
}

func (c *Controller) current() (int, Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.session.CurrentIndex
	if i >= len(c.session.Questions) {
		return i, Question{}, false
	}
	return i, c.session.Questions[i], true
}

// ask runs one Speaking, Listening, Processing cycle. A returned error is
// either cancellation or an unrecoverable leaf-service failure.
func (c *Controller) ask(ctx context.Context, index int, q Question) error {
	c.transition(StatusSpeaking)

	completion := c.deps.Speaker.Speak(ctx, q.Text)
	if err := completion.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			return fmt.Errorf("playback: %w", err)
		}
		// The candidate can still answer a question they did not hear in full
		c.logger.Warn().Err(err).Int("index", index).Msg("Prompt failed, listening anyway")
		c.setLastError(err)
		c.recordError("prompt_error", "prompt")
	}

	select {
	case <-c.stopCh:
	default:
	}

	if _, err := c.deps.Capture.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("capture: %w", err)
	}
	c.transition(StatusListening)

	var timeout <-chan time.Time
	if c.opts.EnforceTimeLimits && q.TimeLimit > 0 {
		timer := time.NewTimer(q.TimeLimit)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		if err := c.deps.Capture.Cancel(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to discard partial answer")
		}
		return ctx.Err()
	case <-c.stopCh:
	case <-timeout:
		c.logger.Info().Int("index", index).Dur("limit", q.TimeLimit).Msg("Answer time limit reached")
	}

	c.transition(StatusProcessing)
	clip := c.deps.Capture.Stop()
	if clip != nil {
		c.metrics.RecordAudioBytes("in", clip.Size)
	}
	answer, err := c.process(ctx, index, q, clip)
	if rmErr := clip.Remove(); rmErr != nil {
		c.logger.Warn().Err(rmErr).Msg("Failed to remove answer clip")
	}
	if err != nil {
		return err
	}

	c.appendAnswer(answer)
	// End during processing keeps the answer but asks nothing further
	return ctx.Err()
}

// process turns a clip into an answer record. It only fails on cancellation.
func (c *Controller) process(ctx context.Context, index int, q Question, clip *capture.Clip) (answer AnsweredQuestion, err error) {
	ctx, span := observability.StartSpan(ctx, "interview.process_answer",
		attribute.Int("question_index", index),
		attribute.String("question_id", q.ID))
	defer func() { observability.EndSpan(span, err) }()

	answer = AnsweredQuestion{QuestionID: q.ID, Index: index}

	if clip == nil || clip.Size < c.opts.MinAnswerBytes || clip.Duration < c.opts.MinAnswerDuration {
		c.logger.Info().Int("index", index).Msg("No usable answer captured")
		return c.degraded(answer, OutcomeSkipped, transcription.ErrEmptyAnswer), nil
	}

	vocabulary := speechmetrics.MergeVocabulary(c.opts.Role,
		append(append([]string(nil), c.opts.Transcription.Vocabulary...), q.ExpectedKeywords...)...)
	topts := c.opts.Transcription
	topts.Vocabulary = vocabulary

	result, err := c.deps.Transcriber.Transcribe(ctx, clip, topts)
	if err != nil {
		if ctx.Err() != nil {
			return answer, ctx.Err()
		}
		c.logger.Warn().Err(err).Int("index", index).Str("kind", transcription.Kind(err)).Msg("Transcription failed")
		return c.degraded(answer, OutcomeFailed, err), nil
	}
	if strings.TrimSpace(result.Text) == "" {
		return c.degraded(answer, OutcomeSkipped, transcription.ErrEmptyAnswer), nil
	}

	metrics := c.deps.Analyzer.Analyze(result, vocabulary)

	answer.Outcome = OutcomeAnswered
	answer.Transcript = result.Text
	answer.Confidence = result.Confidence
	answer.AudioDuration = result.AudioDuration
	if answer.AudioDuration == 0 {
		answer.AudioDuration = clip.Duration
	}
	answer.Metrics = &metrics
	answer.Weight = 1
	answer.Score = c.score(ctx, q, result.Text, metrics)
	answer.AnsweredAt = time.Now()

	c.logger.Info().
		Int("index", index).
		Float64("wpm", metrics.WordsPerMinute).
		Float64("clarity", metrics.ClarityScore).
		Bool("scored", answer.Score != nil).
		Msg("Answer processed")
	return answer, nil
}

// degraded fills a zero-weight record carrying the error marker
func (c *Controller) degraded(answer AnsweredQuestion, outcome Outcome, err error) AnsweredQuestion {
	answer.Outcome = outcome
	answer.ErrorKind = transcription.Kind(err)
	answer.Error = err.Error()
	answer.Weight = 0
	answer.AnsweredAt = time.Now()
	c.setLastError(err)
	c.recordError(answer.ErrorKind, "transcription")
	return answer
}

// score asks the scorer and waits at most ScoreWait. Results arriving later
// are logged and dropped.
func (c *Controller) score(ctx context.Context, q Question, transcript string, metrics speechmetrics.Metrics) *scoring.Score {
	if c.deps.Scorer == nil {
		return nil
	}

	req := scoring.Request{
		Role:             c.opts.Role,
		Question:         q.Text,
		QuestionType:     string(q.Type),
		Transcript:       transcript,
		ExpectedKeywords: q.ExpectedKeywords,
		Metrics:          metrics,
	}

	results := make(chan *scoring.Score, 1)
	var abandoned atomic.Bool
	logger := c.logger

	scoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scorerTimeout)
	go func() {
		defer cancel()
		score, err := c.deps.Scorer.Evaluate(scoreCtx, req)
		if err != nil {
			logger.Warn().Err(err).Str("question_id", q.ID).Msg("Scoring failed")
			score = nil
		}
		results <- score
		if abandoned.Load() && score != nil {
			logger.Info().Str("question_id", q.ID).Msg("Late score dropped")
		}
	}()

	timer := time.NewTimer(c.opts.ScoreWait)
	defer timer.Stop()

	select {
	case score := <-results:
		return score
	case <-timer.C:
		abandoned.Store(true)
		c.logger.Info().Str("question_id", q.ID).Dur("wait", c.opts.ScoreWait).Msg("Score not ready, continuing")
		return nil
	case <-ctx.Done():
		abandoned.Store(true)
		return nil
	}
}

func (c *Controller) appendAnswer(answer AnsweredQuestion) {
	c.mu.Lock()
	c.session.Answers = append(c.session.Answers, answer)
	c.session.CurrentIndex++
	sessionID := c.session.ID
	metrics := c.metrics
	c.mu.Unlock()

	metrics.RecordAnswer(string(answer.Outcome))

	ctx, cancel := context.WithTimeout(c.baseCtx, storeTimeout)
	defer cancel()
	if err := c.deps.Store.AppendAnswer(ctx, sessionID, answer); err != nil {
		c.logger.Error().Err(err).Int("index", answer.Index).Msg("Failed to persist answer")
		c.recordError("store_error", "store")
	}
}

// transition moves to status, notifies subscribers and persists it
func (c *Controller) transition(status Status) {
	c.mu.Lock()
	c.status = status
	c.session.Status = status
	update := Update{
		SessionID: c.session.ID,
		Status:    status,
		Index:     c.session.CurrentIndex,
		Total:     len(c.session.Questions),
	}
	if c.lastErr != nil {
		update.Error = c.lastErr.Error()
	}
	for _, ch := range c.subs {
		select {
		case ch <- update:
		default:
		}
	}
	metrics := c.metrics
	logger := c.logger
	baseCtx := c.baseCtx
	c.mu.Unlock()

	logger.Debug().Str("status", string(status)).Int("index", update.Index).Msg("Status changed")
	if metrics == nil {
		// Session record not created yet
		return
	}
	metrics.RecordTransition(string(status))

	ctx, cancel := context.WithTimeout(baseCtx, storeTimeout)
	defer cancel()
	if err := c.deps.Store.UpdateStatus(ctx, update.SessionID, status); err != nil {
		logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to persist status")
		c.recordError("store_error", "store")
	}
}

func (c *Controller) complete() {
	c.mu.Lock()
	now := time.Now()
	c.session.CompletedAt = &now
	answers := len(c.session.Answers)
	c.mu.Unlock()

	c.transition(StatusCompleted)
	c.metrics.RecordSessionEnd()
	c.logger.Info().Int("answers", answers).Msg("Interview completed")
}

func (c *Controller) fail(err error, component string) {
	c.setLastError(err)
	c.recordError("unrecoverable", component)
	c.transition(StatusError)
	c.metrics.RecordSessionEnd()
	c.logger.Error().Err(err).Msg("Interview failed")
}

func (c *Controller) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	if c.session != nil {
		c.session.LastError = err.Error()
	}
	c.mu.Unlock()
}

func (c *Controller) recordError(kind, component string) {
	c.mu.Lock()
	metrics := c.metrics
	c.mu.Unlock()
	if metrics != nil {
		metrics.RecordError(kind, component)
	}
}

// RequestStop ends the current answer. It returns false unless listening.
func (c *Controller) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusListening {
		return false
	}
	select {
	case c.stopCh <- struct{}{}:
	default:
	}
	return true
}

// End finalizes the session with the answers collected so far and waits
// for the loop to exit. In-flight capture is discarded, playback stops and
// polling stops issuing requests.
func (c *Controller) End() {
	c.mu.Lock()
	if c.status == StatusIdle || c.status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.ending = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Reset returns a failed controller to Idle
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.status != StatusError {
		c.mu.Unlock()
		return ErrNotFailed
	}
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.status = StatusIdle
	c.session = nil
	c.lastErr = nil
	c.cancel = nil
	c.done = nil
	c.metrics = nil
	c.logger = observability.Component(c.deps.Logger, "interview")
	return nil
}

// Wait blocks until the session reaches a terminal state. It returns the
// unrecoverable error for sessions that ended in Error.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return ErrNotStarted
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusError {
		return c.lastErr
	}
	return nil
}

// Status returns the current state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the most recent error, recovered or not
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the session, or nil before Start
func (c *Controller) Snapshot() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Clone()
}

// Amplitude returns the live input level while listening, otherwise 0
func (c *Controller) Amplitude() float64 {
	if c.Status() != StatusListening {
		return 0
	}
	return c.deps.Capture.Amplitude()
}

// Subscribe registers for status updates. Updates are dropped when the
// channel is full. Call the returned function to unsubscribe.
func (c *Controller) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
