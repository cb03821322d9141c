package transcription

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// Job statuses reported by the service
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL          string   `json:"audio_url"`
	Punctuate         bool     `json:"punctuate"`
	FormatText        bool     `json:"format_text"`
	LanguageCode      string   `json:"language_code,omitempty"`
	WordBoost         []string `json:"word_boost,omitempty"`
	BoostParam        string   `json:"boost_param,omitempty"`
	SentimentAnalysis bool     `json:"sentiment_analysis,omitempty"`
	EntityDetection   bool     `json:"entity_detection,omitempty"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type wireWord struct {
	Text       *string  `json:"text"`
	Start      *int64   `json:"start"`
	End        *int64   `json:"end"`
	Confidence *float64 `json:"confidence"`
}

type wireSentiment struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

type wireEntity struct {
	EntityType string `json:"entity_type"`
	Text       string `json:"text"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
}

type pollResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Text          *string         `json:"text"`
	Words         []wireWord      `json:"words"`
	Confidence    *float64        `json:"confidence"`
	AudioDuration *float64        `json:"audio_duration"` // seconds
	Error         string          `json:"error"`
	Sentiments    []wireSentiment `json:"sentiment_analysis_results"`
	Entities      []wireEntity    `json:"entities"`
}

func newSubmitRequest(audioURL string, opts Options) submitRequest {
	req := submitRequest{
		AudioURL:          audioURL,
		Punctuate:         opts.Punctuate,
		FormatText:        opts.FormatText,
		LanguageCode:      opts.Language,
		SentimentAnalysis: opts.Sentiment,
		EntityDetection:   opts.Entities,
	}
	if len(opts.Vocabulary) > 0 {
		req.WordBoost = opts.Vocabulary
		req.BoostParam = opts.BoostParam
	}
	return req
}

// decodeJSON decodes body into v, reporting any failure as a ProtocolError
func decodeJSON(step string, body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return &ProtocolError{Step: step, Err: err}
	}
	return nil
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}

// toResult validates a completed poll payload
func (p *pollResponse) toResult(jobID string) (*Result, error) {
	if p.Text == nil {
		return nil, protocolErrorf("poll", "completed job %s has no text", jobID)
	}

	result := &Result{
		JobID: jobID,
		Text:  *p.Text,
		Words: make([]Word, 0, len(p.Words)),
	}

	if p.Confidence != nil {
		if !validConfidence(*p.Confidence) {
			return nil, protocolErrorf("poll", "confidence %v out of range", *p.Confidence)
		}
		result.Confidence = *p.Confidence
	}
	if p.AudioDuration != nil {
		if *p.AudioDuration < 0 {
			return nil, protocolErrorf("poll", "negative audio duration %v", *p.AudioDuration)
		}
		result.AudioDuration = time.Duration(*p.AudioDuration * float64(time.Second))
	}

	for i, w := range p.Words {
		if w.Text == nil || w.Start == nil || w.End == nil || w.Confidence == nil {
			return nil, protocolErrorf("poll", "word %d is missing fields", i)
		}
		if *w.End < *w.Start || *w.Start < 0 {
			return nil, protocolErrorf("poll", "word %d has invalid timing %d-%d", i, *w.Start, *w.End)
		}
		if !validConfidence(*w.Confidence) {
			return nil, protocolErrorf("poll", "word %d confidence %v out of range", i, *w.Confidence)
		}
		result.Words = append(result.Words, Word{
			Text:       *w.Text,
			StartMs:    *w.Start,
			EndMs:      *w.End,
			Confidence: *w.Confidence,
		})
	}

	for _, s := range p.Sentiments {
		result.Sentiments = append(result.Sentiments, Sentiment{
			Text:       s.Text,
			Sentiment:  s.Sentiment,
			Confidence: s.Confidence,
			StartMs:    s.Start,
			EndMs:      s.End,
		})
	}
	for _, e := range p.Entities {
		result.Entities = append(result.Entities, Entity{
			Type:    e.EntityType,
			Text:    e.Text,
			StartMs: e.Start,
			EndMs:   e.End,
		})
	}

	// Without a reported confidence, fall back to the mean word confidence
	if p.Confidence == nil && len(result.Words) > 0 {
		sum := 0.0
		for _, w := range result.Words {
			sum += w.Confidence
		}
		result.Confidence = sum / float64(len(result.Words))
	}

	return result, nil
}

func statusError(step string, status int, body []byte) error {
	msg := string(body)
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return fmt.Errorf("%s returned status %d: %s", step, status, msg)
}
