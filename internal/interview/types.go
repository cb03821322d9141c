// Package interview runs a spoken mock interview, one question at a time.
package interview

import (
	"context"
	"time"

	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/prompt"
	"github.com/lexiqai/voice-interview/internal/scoring"
	"github.com/lexiqai/voice-interview/internal/speechmetrics"
)

// Status is the controller lifecycle state
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPreparing  Status = "preparing"
	StatusSpeaking   Status = "speaking"
	StatusListening  Status = "listening"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions happen without Reset
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// QuestionType classifies a question
type QuestionType string

const (
	QuestionGeneral     QuestionType = "general"
	QuestionTechnical   QuestionType = "technical"
	QuestionBehavioral  QuestionType = "behavioral"
	QuestionSituational QuestionType = "situational"
)

// Question is immutable once generated
type Question struct {
	ID               string        `json:"id" yaml:"id"`
	Text             string        `json:"text" yaml:"text"`
	Type             QuestionType  `json:"type" yaml:"type"`
	Difficulty       string        `json:"difficulty" yaml:"difficulty"`
	ExpectedKeywords []string      `json:"expected_keywords,omitempty" yaml:"expected_keywords"`
	TimeLimit        time.Duration `json:"time_limit,omitempty" yaml:"time_limit"`
}

// Outcome of one question
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeSkipped  Outcome = "skipped" // no usable audio
	OutcomeFailed   Outcome = "failed"  // transcription error
)

// AnsweredQuestion is appended once per question and never mutated after
type AnsweredQuestion struct {
	QuestionID    string                 `json:"question_id"`
	Index         int                    `json:"index"`
	Outcome       Outcome                `json:"outcome"`
	Transcript    string                 `json:"transcript"`
	Confidence    float64                `json:"confidence"`
	AudioDuration time.Duration          `json:"audio_duration"`
	Metrics       *speechmetrics.Metrics `json:"metrics,omitempty"`
	Score         *scoring.Score         `json:"score,omitempty"`
	Weight        float64                `json:"weight"`
	ErrorKind     string                 `json:"error_kind,omitempty"`
	Error         string                 `json:"error,omitempty"`
	AnsweredAt    time.Time              `json:"answered_at"`
}

// Session is the persisted view of one interview
type Session struct {
	ID           string             `json:"id"`
	Role         string             `json:"role"`
	Questions    []Question         `json:"questions"`
	CurrentIndex int                `json:"current_index"`
	Status       Status             `json:"status"`
	Answers      []AnsweredQuestion `json:"answers"`
	LastError    string             `json:"last_error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// AggregateScore is the weighted mean of scored answers. ok is false when
// no answer with positive weight has a score.
func (s *Session) AggregateScore() (score float64, ok bool) {
	var sum, weights float64
	for _, a := range s.Answers {
		if a.Score == nil || a.Weight <= 0 {
			continue
		}
		sum += a.Score.Overall * a.Weight
		weights += a.Weight
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = append([]Question(nil), s.Questions...)
	out.Answers = append([]AnsweredQuestion(nil), s.Answers...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// SessionStore persists sessions
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) (string, error)
	AppendAnswer(ctx context.Context, sessionID string, answer AnsweredQuestion) error
	UpdateStatus(ctx context.Context, sessionID string, status Status) error
}

// QuestionSource supplies the ordered questions for a role
type QuestionSource interface {
	Questions(ctx context.Context, role string, count int) ([]Question, error)
}

// AnswerScorer evaluates a transcript. Calls are best-effort.
type AnswerScorer interface {
	Evaluate(ctx context.Context, req scoring.Request) (*scoring.Score, error)
}

// Speaker plays a prompt; satisfied by *prompt.Prompter
type Speaker interface {
	Speak(ctx context.Context, text string) *prompt.Completion
	Stop()
}

// Capturer records one answer at a time; satisfied by *capture.Recorder
type Capturer interface {
	Start(ctx context.Context) (*capture.Handle, error)
	Stop() *capture.Clip
	Cancel() error
	Amplitude() float64
}
