package scoring

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/config"
)

// Scorer evaluates one answer
type Scorer interface {
	Evaluate(ctx context.Context, req Request) (*Score, error)
}

// NewScorer returns the LLM scorer backed by the keyword scorer when an API
// key is configured, and the keyword scorer alone otherwise.
func NewScorer(cfg *config.Config, logger zerolog.Logger) (Scorer, error) {
	if cfg.ScorerAPIKey == "" {
		logger.Info().Msg("No scorer API key configured, using keyword scorer")
		return KeywordScorer{}, nil
	}

	llm, err := NewLLMScorer(cfg, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", cfg.ScorerModel).Msg("Using LLM scorer")
	return Fallback{Primary: llm}, nil
}
