package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/resilience"
)

// fileTranscribeFunc sends a local file to the prerecorded endpoint
type fileTranscribeFunc func(ctx context.Context, path string, opts *interfaces.PreRecordedTranscriptionOptions) (any, error)

// DeepgramTranscriber transcribes clips with Deepgram's prerecorded API.
// Deepgram answers synchronously, so there is no polling step.
type DeepgramTranscriber struct {
	model          string
	fromFile       fileTranscribeFunc
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramTranscriber creates a transcriber backed by the Deepgram SDK
func NewDeepgramTranscriber(cfg *config.Config, logger zerolog.Logger) *DeepgramTranscriber {
	dg := api.New(listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{}))
	fromFile := func(ctx context.Context, path string, opts *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		res, err := dg.FromFile(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return newDeepgramTranscriber(cfg, fromFile, logger)
}

func newDeepgramTranscriber(cfg *config.Config, fromFile fileTranscribeFunc, logger zerolog.Logger) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		model:    cfg.DeepgramModel,
		fromFile: fromFile,
		circuitBreaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.Component(logger, "deepgram"),
	}
}

// Healthy reports whether the circuit breaker lets requests through.
// Probing the API itself would be billed.
func (d *DeepgramTranscriber) Healthy(ctx context.Context) (bool, error) {
	return d.circuitBreaker.Healthy(ctx)
}

// Deepgram's response, reduced to the fields we read
type deepgramResponse struct {
	Metadata struct {
		Duration  float64 `json:"duration"`
		RequestID string  `json:"request_id"`
	} `json:"metadata"`
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Confidence     float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends the clip in one request
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, clip *capture.Clip, opts Options) (result *Result, err error) {
	started := time.Now()
	defer func() { observability.ObserveTranscriptionStep("deepgram", started, err) }()

	ctx, span := observability.StartSpan(ctx, "transcription.deepgram")
	defer func() { observability.EndSpan(span, err) }()

	dgOpts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    opts.Language,
		Punctuate:   opts.Punctuate,
		SmartFormat: opts.FormatText,
		Keywords:    opts.Vocabulary,
	}

	var raw any
	err = d.circuitBreaker.CallContext(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = d.fromFile(ctx, clip.Path, dgOpts)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Warn().Err(err).Str("clip_id", clip.ID).Msg("Deepgram request failed")
		return nil, &SubmitError{Err: err}
	}

	// Re-decode through JSON so we depend only on the wire shape
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, &ProtocolError{Step: "deepgram", Err: err}
	}
	var resp deepgramResponse
	if err := json.Unmarshal(encoded, &resp); err != nil {
		return nil, &ProtocolError{Step: "deepgram", Err: err}
	}

	return resp.toResult()
}

func (r *deepgramResponse) toResult() (*Result, error) {
	if r.Results == nil || len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return nil, protocolErrorf("deepgram", "response has no alternatives")
	}
	alt := r.Results.Channels[0].Alternatives[0]
	if !validConfidence(alt.Confidence) {
		return nil, protocolErrorf("deepgram", "confidence %v out of range", alt.Confidence)
	}

	result := &Result{
		JobID:         r.Metadata.RequestID,
		Text:          strings.TrimSpace(alt.Transcript),
		Confidence:    alt.Confidence,
		AudioDuration: time.Duration(r.Metadata.Duration * float64(time.Second)),
		Words:         make([]Word, 0, len(alt.Words)),
	}

	for i, w := range alt.Words {
		if w.End < w.Start || w.Start < 0 {
			return nil, protocolErrorf("deepgram", "word %d has invalid timing %v-%v", i, w.Start, w.End)
		}
		if !validConfidence(w.Confidence) {
			return nil, protocolErrorf("deepgram", "word %d confidence %v out of range", i, w.Confidence)
		}
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		result.Words = append(result.Words, Word{
			Text:       text,
			StartMs:    int64(math.Round(w.Start * 1000)),
			EndMs:      int64(math.Round(w.End * 1000)),
			Confidence: w.Confidence,
		})
	}

	return result, nil
}

// NewTranscriber selects the configured provider
func NewTranscriber(cfg *config.Config, logger zerolog.Logger) (Transcriber, error) {
	switch cfg.TranscriptionProvider {
	case "", config.ProviderAssemblyAI:
		return NewClientFromConfig(cfg, logger), nil
	case config.ProviderDeepgram:
		return NewDeepgramTranscriber(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.TranscriptionProvider)
	}
}
