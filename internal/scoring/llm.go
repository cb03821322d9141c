package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/resilience"
)

// scoreSchema constrains the model's JSON reply
const scoreSchema = `{
	"type": "object",
	"required": ["overall_score", "detailed_feedback", "strengths", "improvements"],
	"properties": {
		"overall_score": {"type": "number", "minimum": 0, "maximum": 100},
		"detailed_feedback": {"type": "string", "minLength": 1},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"improvements": {"type": "array", "items": {"type": "string"}},
		"keywords_matched": {"type": "array", "items": {"type": "string"}}
	}
}`

const systemPrompt = `You are an experienced interviewer grading a spoken answer from a mock interview.
Grade content, structure and relevance on a 0-100 scale. Use the speech metrics only as
supporting evidence about delivery. Reply with a single JSON object with the fields
overall_score, detailed_feedback, strengths, improvements and keywords_matched.`

// ErrInvalidScore is returned when the model reply does not match the schema
var ErrInvalidScore = errors.New("scorer returned an invalid evaluation")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// LLMScorer grades answers with an OpenAI-compatible chat completions API
type LLMScorer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	schema     *gojsonschema.Schema
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// LLMOption configures an LLMScorer
type LLMOption func(*LLMScorer)

// WithBaseURL overrides the API base URL
func WithBaseURL(url string) LLMOption {
	return func(s *LLMScorer) { s.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) LLMOption {
	return func(s *LLMScorer) { s.httpClient = client }
}

// WithLogger sets the scorer logger
func WithLogger(logger zerolog.Logger) LLMOption {
	return func(s *LLMScorer) { s.logger = observability.Component(logger, "scorer") }
}

// NewLLMScorer creates a scorer from configuration
func NewLLMScorer(cfg *config.Config, opts ...LLMOption) (*LLMScorer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoreSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile score schema: %w", err)
	}

	s := &LLMScorer{
		apiKey:     cfg.ScorerAPIKey,
		baseURL:    strings.TrimRight(cfg.ScorerBaseURL, "/"),
		model:      cfg.ScorerModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		schema:     schema,
		breaker: resilience.NewCircuitBreaker("scorer",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second),
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: observability.Component(observability.GetLogger(), "scorer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Breaker exposes the circuit breaker for readiness checks
func (s *LLMScorer) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

// Evaluate grades one answer
func (s *LLMScorer) Evaluate(ctx context.Context, req Request) (*Score, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	ctx, span := observability.StartSpan(ctx, "scorer.evaluate")

	var content string
	err := resilience.Retry(ctx, func() error {
		return s.breaker.CallContext(ctx, func(ctx context.Context) error {
			var err error
			content, err = s.complete(ctx, req)
			return err
		})
	}, s.retry, func(err error) bool {
		return !errors.Is(err, resilience.ErrCircuitOpen) && resilience.IsRetryableNetworkError(err)
	})

	var score *Score
	if err == nil {
		score, err = s.parse(content)
	}

	observability.ObserveScorer(err == nil)
	observability.EndSpan(span, err)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("Evaluation failed")
		return nil, err
	}
	return score, nil
}

func (s *LLMScorer) complete(ctx context.Context, req Request) (string, error) {
	userPrompt, err := buildPrompt(req)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		MaxTokens:      800,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("scorer API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", resilience.NewRetryableError(err)
		}
		return "", err
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("scorer API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("scorer API returned no choices")
	}
	return chat.Choices[0].Message.Content, nil
}

func buildPrompt(req Request) (string, error) {
	metrics, err := json.Marshal(req.Metrics)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metrics: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\n", req.Role)
	fmt.Fprintf(&b, "Question type: %s\n", req.QuestionType)
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	if len(req.ExpectedKeywords) > 0 {
		fmt.Fprintf(&b, "Expected keywords: %s\n", strings.Join(req.ExpectedKeywords, ", "))
	}
	fmt.Fprintf(&b, "Speech metrics: %s\n", metrics)
	fmt.Fprintf(&b, "Transcript:\n%s\n", req.Transcript)
	return b.String(), nil
}

// parse validates the model reply against scoreSchema
func (s *LLMScorer) parse(content string) (*Score, error) {
	content = cleanJSON(content)

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidScore, strings.Join(violations, "; "))
	}

	var score Score
	if err := json.Unmarshal([]byte(content), &score); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	score.Source = "llm"
	return &score, nil
}

// cleanJSON strips markdown code fences some models wrap replies in
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
