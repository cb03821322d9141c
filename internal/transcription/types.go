// Package transcription turns recorded answers into text with word timings.
package transcription

import (
	"context"
	"time"

	"github.com/lexiqai/voice-interview/internal/capture"
)

// Word is one recognized token with timing in milliseconds
type Word struct {
	Text       string  `json:"text"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

// Sentiment is a per-sentence sentiment annotation
type Sentiment struct {
	Text       string  `json:"text"`
	Sentiment  string  `json:"sentiment"` // POSITIVE, NEUTRAL, NEGATIVE
	Confidence float64 `json:"confidence"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
}

// Entity is a detected named entity
type Entity struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Result is a completed transcription
type Result struct {
	JobID         string        `json:"job_id"`
	Text          string        `json:"text"`
	Confidence    float64       `json:"confidence"`
	AudioDuration time.Duration `json:"audio_duration"`
	Words         []Word        `json:"words"`
	Sentiments    []Sentiment   `json:"sentiments,omitempty"`
	Entities      []Entity      `json:"entities,omitempty"`
}

// Options are per-job recognition options
type Options struct {
	Language   string
	Punctuate  bool
	FormatText bool
	Vocabulary []string // Domain terms to bias recognition toward
	BoostParam string   // low, default, high
	Sentiment  bool
	Entities   bool
}

// DefaultOptions returns punctuated, formatted English recognition
func DefaultOptions() Options {
	return Options{
		Language:   "en",
		Punctuate:  true,
		FormatText: true,
		BoostParam: "default",
	}
}

// Transcriber converts a recorded clip into a Result
type Transcriber interface {
	Transcribe(ctx context.Context, clip *capture.Clip, opts Options) (*Result, error)
}

// PollPolicy bounds the status polling loop
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy polls every 3 seconds, 60 times
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 3 * time.Second, MaxAttempts: 60}
}
