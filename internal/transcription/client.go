package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/resilience"
)

// errStillPending marks a poll that found the job queued or processing
var errStillPending = errors.New("transcription job pending")

// Client runs the upload, submit and poll protocol. It keeps no per-job
// state, so concurrent Transcribe calls are independent.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     PollPolicy
	logger     zerolog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithPollPolicy overrides the poll interval and attempt budget
func WithPollPolicy(p PollPolicy) ClientOption {
	return func(cl *Client) { cl.policy = p }
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = observability.Component(logger, "transcription") }
}

// NewClient creates a protocol client for baseURL
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     DefaultPollPolicy(),
		logger:     observability.Component(observability.GetLogger(), "transcription"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.MaxAttempts < 1 {
		c.policy.MaxAttempts = 1
	}
	return c
}

// NewClientFromConfig builds a client from service configuration
func NewClientFromConfig(cfg *config.Config, logger zerolog.Logger) *Client {
	return NewClient(cfg.TranscriptionBaseURL, cfg.TranscriptionAPIKey,
		WithHTTPClient(&http.Client{Timeout: cfg.TranscriptionHTTPTimeout}),
		WithPollPolicy(PollPolicy{Interval: cfg.TranscriptionPollEvery, MaxAttempts: cfg.TranscriptionMaxPolls}),
		WithLogger(logger),
	)
}

// Transcribe uploads clip, submits a job and polls it to completion
func (c *Client) Transcribe(ctx context.Context, clip *capture.Clip, opts Options) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "transcription.transcribe",
		attribute.String("clip_id", clip.ID),
		attribute.Int64("clip_bytes", clip.Size))

	result, err := c.transcribe(ctx, clip, opts)
	observability.EndSpan(span, err)
	return result, err
}

func (c *Client) transcribe(ctx context.Context, clip *capture.Clip, opts Options) (*Result, error) {
	f, err := clip.Open()
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	defer f.Close()

	_, size, err := audio.DecodeWAVHeader(f)
	if err != nil {
		return nil, &UploadError{Err: err}
	}
	if size == 0 {
		return nil, &UploadError{Err: errors.New("clip has no audio")}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &UploadError{Err: err}
	}

	uploadURL, err := c.Upload(ctx, f)
	if err != nil {
		return nil, err
	}

	jobID, err := c.Submit(ctx, uploadURL, opts)
	if err != nil {
		return nil, err
	}

	return c.Poll(ctx, jobID)
}

// Upload sends raw audio bytes and returns the service's reference to them.
// Failures are not retried.
func (c *Client) Upload(ctx context.Context, audio io.Reader) (ref string, err error) {
	started := time.Now()
	defer func() { observability.ObserveTranscriptionStep("upload", started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", audio)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &UploadError{Status: resp.StatusCode, Err: statusError("upload", resp.StatusCode, body)}
	}

	var payload uploadResponse
	if err := decodeJSON("upload", resp.Body, &payload); err != nil {
		return "", err
	}
	if payload.UploadURL == "" {
		return "", protocolErrorf("upload", "missing upload_url")
	}

	c.logger.Debug().Dur("latency", time.Since(started)).Msg("Audio uploaded")
	return payload.UploadURL, nil
}

// Submit requests a transcription job for an uploaded reference
func (c *Client) Submit(ctx context.Context, uploadRef string, opts Options) (jobID string, err error) {
	started := time.Now()
	defer func() { observability.ObserveTranscriptionStep("submit", started, err) }()

	body, err := json.Marshal(newSubmitRequest(uploadRef, opts))
	if err != nil {
		return "", &SubmitError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &SubmitError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &SubmitError{Status: resp.StatusCode, Err: statusError("submit", resp.StatusCode, respBody)}
	}

	var payload submitResponse
	if err := decodeJSON("submit", resp.Body, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", protocolErrorf("submit", "missing job id")
	}
	if payload.Status == StatusError {
		return "", &SubmitError{Status: resp.StatusCode, Err: fmt.Errorf("job %s rejected", payload.ID)}
	}

	c.logger.Debug().Str("job_id", payload.ID).Msg("Transcription job submitted")
	return payload.ID, nil
}

// Poll fetches job status at a fixed interval until the job completes,
// fails, or the attempt budget runs out. Transient failures consume
// attempts from the same budget.
func (c *Client) Poll(ctx context.Context, jobID string) (result *Result, err error) {
	started := time.Now()
	attempts := 0
	lastStatus := StatusQueued

	defer func() {
		observability.ObserveTranscriptionStep("poll", started, err)
		observability.ObservePollAttempts(attempts)
	}()

	err = resilience.Retry(ctx, func() error {
		attempts++
		status, res, pollErr := c.pollOnce(ctx, jobID)
		if pollErr != nil {
			c.logger.Debug().Err(pollErr).Str("job_id", jobID).Int("attempt", attempts).Msg("Poll attempt failed")
			return pollErr
		}
		lastStatus = status
		switch status {
		case StatusCompleted:
			result = res
			return nil
		case StatusQueued, StatusProcessing:
			return errStillPending
		}
		return nil
	}, resilience.FixedIntervalConfig(c.policy.MaxAttempts, c.policy.Interval), isRetryablePoll)

	switch {
	case err == nil:
		c.logger.Debug().Str("job_id", jobID).Int("attempts", attempts).Msg("Transcription completed")
		return result, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, errStillPending):
		return nil, &TimeoutError{JobID: jobID, Attempts: attempts, LastStatus: lastStatus}
	case resilience.IsRetryable(err):
		return nil, &PollError{JobID: jobID, Attempts: attempts, Err: errors.Unwrap(err)}
	default:
		return nil, err
	}
}

func isRetryablePoll(err error) bool {
	return errors.Is(err, errStillPending) || resilience.IsRetryable(err)
}

// pollOnce performs a single status request. Transient failures come back
// wrapped in resilience.RetryableError.
func (c *Client) pollOnce(ctx context.Context, jobID string) (string, *Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, resilience.NewRetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := statusError("poll", resp.StatusCode, body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", nil, resilience.NewRetryableError(statusErr)
		}
		return "", nil, &TranscriptionError{JobID: jobID, Reason: statusErr.Error()}
	}

	var payload pollResponse
	if err := decodeJSON("poll", resp.Body, &payload); err != nil {
		if resilience.IsRetryableNetworkError(errors.Unwrap(err)) {
			return "", nil, resilience.NewRetryableError(err)
		}
		return "", nil, err
	}

	switch payload.Status {
	case StatusQueued, StatusProcessing:
		return payload.Status, nil, nil
	case StatusError:
		reason := payload.Error
		if reason == "" {
			reason = "unspecified service error"
		}
		return payload.Status, nil, &TranscriptionError{JobID: jobID, Reason: reason}
	case StatusCompleted:
		result, err := payload.toResult(jobID)
		if err != nil {
			return "", nil, err
		}
		return payload.Status, result, nil
	default:
		return "", nil, protocolErrorf("poll", "unknown job status %q", payload.Status)
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", c.apiKey)
}

// Healthy reports whether the service answers at all. Used by readiness checks.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript?limit=1", nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("transcription service returned status %d", resp.StatusCode)
	}
	return true, nil
}
