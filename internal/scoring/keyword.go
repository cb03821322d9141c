package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// KeywordScorer grades answers offline from keyword coverage and delivery.
// It is used when no LLM is configured and as a fallback when one fails.
type KeywordScorer struct{}

// Evaluate scores coverage at 60%, clarity at 25% and pace at 15%
func (KeywordScorer) Evaluate(ctx context.Context, req Request) (*Score, error) {
	transcript := strings.ToLower(req.Transcript)
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	var matched, missing []string
	for _, kw := range req.ExpectedKeywords {
		if kw = strings.TrimSpace(kw); kw == "" {
			continue
		}
		if strings.Contains(transcript, strings.ToLower(kw)) {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	coverage := 1.0
	if total := len(matched) + len(missing); total > 0 {
		coverage = float64(len(matched)) / float64(total)
	}

	m := req.Metrics
	overall := 100 * (0.6*coverage + 0.25*m.ClarityScore + 0.15*paceScore(m.WordsPerMinute))
	overall = math.Round(overall*10) / 10

	score := &Score{
		Overall:         overall,
		KeywordsMatched: matched,
		Source:          "keyword",
	}

	if len(matched) > 0 {
		score.Strengths = append(score.Strengths, fmt.Sprintf("Covered %s", strings.Join(matched, ", ")))
	}
	if m.ClarityScore >= 0.8 {
		score.Strengths = append(score.Strengths, "Clear delivery")
	}
	if len(missing) > 0 {
		score.Improvements = append(score.Improvements, fmt.Sprintf("Mention %s", strings.Join(missing, ", ")))
	}
	if m.FillerWordCount > 2 {
		score.Improvements = append(score.Improvements, fmt.Sprintf("Reduce filler words (%d used)", m.FillerWordCount))
	}
	switch {
	case m.WordsPerMinute > 180:
		score.Improvements = append(score.Improvements, "Slow down")
	case m.WordsPerMinute > 0 && m.WordsPerMinute < 100:
		score.Improvements = append(score.Improvements, "Speak a little faster")
	}

	score.Feedback = fmt.Sprintf("Covered %d of %d expected topics at %.0f words per minute with clarity %.2f.",
		len(matched), len(matched)+len(missing), m.WordsPerMinute, m.ClarityScore)
	return score, nil
}

// paceScore is 1 inside 120-160 wpm and falls off linearly to 0 at 60 and 220
func paceScore(wpm float64) float64 {
	switch {
	case wpm >= 120 && wpm <= 160:
		return 1
	case wpm < 120:
		return math.Max(0, (wpm-60)/60)
	default:
		return math.Max(0, (220-wpm)/60)
	}
}

// Fallback tries Primary and uses Secondary when it fails
type Fallback struct {
	Primary   Scorer
	Secondary KeywordScorer
}

// Evaluate returns the primary score, or the keyword score on error
func (f Fallback) Evaluate(ctx context.Context, req Request) (*Score, error) {
	score, err := f.Primary.Evaluate(ctx, req)
	if err == nil {
		return score, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.Secondary.Evaluate(ctx, req)
}
