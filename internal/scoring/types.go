// Package scoring evaluates interview answers.
package scoring

import (
	"errors"

	"github.com/lexiqai/voice-interview/internal/speechmetrics"
)

// ErrEmptyTranscript is returned when there is nothing to evaluate
var ErrEmptyTranscript = errors.New("empty transcript")

// Request is one answer to evaluate
type Request struct {
	Role             string                `json:"role"`
	Question         string                `json:"question"`
	QuestionType     string                `json:"question_type"`
	Transcript       string                `json:"transcript"`
	ExpectedKeywords []string              `json:"expected_keywords,omitempty"`
	Metrics          speechmetrics.Metrics `json:"speech_metrics"`
}

// Score is an evaluation on a 0-100 scale
type Score struct {
	Overall         float64  `json:"overall_score"`
	Feedback        string   `json:"detailed_feedback"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	KeywordsMatched []string `json:"keywords_matched,omitempty"`
	Source          string   `json:"source"` // llm, keyword
}
