// Package speechmetrics derives speech-quality features from a transcription.
//
// Analysis is pure: the same Result and vocabulary always produce the same
// Metrics, and no I/O is performed.
package speechmetrics

import (
	"strings"
	"unicode"

	"github.com/lexiqai/voice-interview/internal/transcription"
)

// Confidence bucket and heuristic thresholds
const (
	HighConfidence       = 0.8
	MediumConfidence     = 0.6
	HesitationConfidence = 0.5
	HesitationMaxLen     = 3
	LongPauseMs          = 2000
)

// DefaultFillers are counted by exact token match
var DefaultFillers = []string{
	"um", "umm", "uh", "uhh", "uhm", "er", "erm", "ah", "hmm", "mm",
	"like", "basically", "actually", "literally",
	"you know", "i mean", "sort of", "kind of",
}

// Distribution counts words per confidence bucket
type Distribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// SentimentSummary tallies sentence-level sentiment annotations
type SentimentSummary struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Metrics are the derived features for one answer
type Metrics struct {
	WordCount              int               `json:"word_count"`
	DurationSeconds        float64           `json:"duration_seconds"`
	WordsPerMinute         float64           `json:"words_per_minute"`
	AverageConfidence      float64           `json:"average_confidence"`
	ConfidenceDistribution Distribution      `json:"confidence_distribution"`
	ClarityScore           float64           `json:"clarity_score"`
	HesitationCount        int               `json:"hesitation_count"`
	FillerWordCount        int               `json:"filler_word_count"`
	TechnicalTermDensity   float64           `json:"technical_term_density"`
	LongPauseCount         int               `json:"long_pause_count"`
	Sentiment              *SentimentSummary `json:"sentiment,omitempty"`
}

// Analyzer computes Metrics. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	fillers phraseSet
}

// NewAnalyzer creates an analyzer with the given filler vocabulary.
// A nil list uses DefaultFillers.
func NewAnalyzer(fillers []string) *Analyzer {
	if fillers == nil {
		fillers = DefaultFillers
	}
	return &Analyzer{fillers: newPhraseSet(fillers)}
}

var defaultAnalyzer = NewAnalyzer(nil)

// Analyze runs the default analyzer
func Analyze(result *transcription.Result, vocabulary []string) Metrics {
	return defaultAnalyzer.Analyze(result, vocabulary)
}

// Analyze derives Metrics from result. vocabulary lists the domain terms
// counted toward TechnicalTermDensity.
func (a *Analyzer) Analyze(result *transcription.Result, vocabulary []string) Metrics {
	var m Metrics
	if result == nil {
		m.DurationSeconds = 1
		return m
	}

	words := result.Words
	m.WordCount = len(words)
	m.DurationSeconds = speakingDuration(words)
	m.Sentiment = summarizeSentiment(result.Sentiments)

	if m.WordCount == 0 {
		return m
	}

	m.WordsPerMinute = float64(m.WordCount) / m.DurationSeconds * 60

	tokens := make([]string, len(words))
	confidenceSum := 0.0
	for i, w := range words {
		tokens[i] = normalize(w.Text)
		confidenceSum += w.Confidence

		switch {
		case w.Confidence >= HighConfidence:
			m.ConfidenceDistribution.High++
		case w.Confidence >= MediumConfidence:
			m.ConfidenceDistribution.Medium++
		default:
			m.ConfidenceDistribution.Low++
		}

		if w.Confidence < HesitationConfidence && len([]rune(tokens[i])) <= HesitationMaxLen {
			m.HesitationCount++
		}

		if i > 0 && w.StartMs-words[i-1].EndMs >= LongPauseMs {
			m.LongPauseCount++
		}
	}
	m.AverageConfidence = confidenceSum / float64(m.WordCount)

	m.FillerWordCount, _ = a.fillers.match(tokens)

	total := float64(m.WordCount)
	m.ClarityScore = clamp01(0.7*(float64(m.ConfidenceDistribution.High)/total) +
		0.3*(1-float64(m.FillerWordCount)/total))

	if len(vocabulary) > 0 {
		_, covered := newPhraseSet(vocabulary).match(tokens)
		m.TechnicalTermDensity = float64(covered) / total
	}

	return m
}

// speakingDuration spans the first word start to the last word end, in
// seconds. Degenerate spans count as one second.
func speakingDuration(words []transcription.Word) float64 {
	if len(words) == 0 {
		return 1
	}
	span := float64(words[len(words)-1].EndMs-words[0].StartMs) / 1000
	if span <= 0 {
		return 1
	}
	return span
}

func summarizeSentiment(sentiments []transcription.Sentiment) *SentimentSummary {
	if len(sentiments) == 0 {
		return nil
	}
	s := &SentimentSummary{}
	for _, st := range sentiments {
		switch strings.ToUpper(st.Sentiment) {
		case "POSITIVE":
			s.Positive++
		case "NEGATIVE":
			s.Negative++
		default:
			s.Neutral++
		}
	}
	return s
}

// normalize lowercases a token and strips surrounding punctuation
func normalize(token string) string {
	return strings.TrimFunc(strings.ToLower(token), func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// phraseSet matches single- and multi-token phrases against a token stream
type phraseSet struct {
	phrases map[string][][]string // keyed by first token
}

func newPhraseSet(phrases []string) phraseSet {
	ps := phraseSet{phrases: make(map[string][][]string)}
	for _, p := range phrases {
		var parts []string
		for _, f := range strings.Fields(p) {
			if n := normalize(f); n != "" {
				parts = append(parts, n)
			}
		}
		if len(parts) == 0 {
			continue
		}
		ps.phrases[parts[0]] = append(ps.phrases[parts[0]], parts)
	}
	return ps
}

// match scans left to right taking the longest phrase at each position.
// It returns the number of matches and the number of tokens they cover.
func (ps phraseSet) match(tokens []string) (matches, covered int) {
	for i := 0; i < len(tokens); {
		best := 0
		for _, phrase := range ps.phrases[tokens[i]] {
			if len(phrase) > best && hasPrefix(tokens[i:], phrase) {
				best = len(phrase)
			}
		}
		if best == 0 {
			i++
			continue
		}
		matches++
		covered += best
		i += best
	}
	return matches, covered
}

func hasPrefix(tokens, phrase []string) bool {
	if len(phrase) > len(tokens) {
		return false
	}
	for i := range phrase {
		if tokens[i] != phrase[i] {
			return false
		}
	}
	return true
}
