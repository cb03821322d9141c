package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/capture"
)

// fakeService emulates the upload, submit and poll endpoints
type fakeService struct {
	t *testing.T

	mu        sync.Mutex
	uploaded  []byte
	submitted submitRequest
	polls     int32

	uploadStatus int
	// pollReply returns the status code and body for the nth poll (1-based)
	pollReply func(n int) (int, string)
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded = body
		f.mu.Unlock()
		if f.uploadStatus != 0 {
			w.WriteHeader(f.uploadStatus)
			fmt.Fprint(w, `{"error":"upload rejected"}`)
			return
		}
		fmt.Fprint(w, `{"upload_url":"https://cdn.example/audio/1"}`)
	})
	mux.HandleFunc("POST /transcript", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.submitted = req
		f.mu.Unlock()
		fmt.Fprint(w, `{"id":"job-1","status":"queued"}`)
	})
	mux.HandleFunc("GET /transcript/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "job-1", r.PathValue("id"))
		n := int(atomic.AddInt32(&f.polls, 1))
		code, body := f.pollReply(n)
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	})
	return mux
}

func (f *fakeService) pollCount() int {
	return int(atomic.LoadInt32(&f.polls))
}

const completedBody = `{
	"id": "job-1",
	"status": "completed",
	"text": "I led the migration to Kubernetes.",
	"confidence": 0.91,
	"audio_duration": 2.5,
	"words": [
		{"text": "I", "start": 0, "end": 200, "confidence": 0.99},
		{"text": "led", "start": 200, "end": 500, "confidence": 0.95}
	]
}`

func newTestClient(t *testing.T, svc *fakeService, maxAttempts int) *Client {
	t.Helper()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key",
		WithPollPolicy(PollPolicy{Interval: time.Millisecond, MaxAttempts: maxAttempts}),
		WithLogger(zerolog.Nop()),
	)
}

func writeClip(t *testing.T, pcm []byte) *capture.Clip {
	t.Helper()
	data := append(audio.EncodeWAVHeader(audio.DefaultCaptureFormat, len(pcm)), pcm...)
	path := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return &capture.Clip{ID: "clip-1", Path: path, Size: int64(len(data)), SampleRate: 16000, Channels: 1, BitDepth: 16}
}

func TestTranscribe_Success(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		if n < 3 {
			return http.StatusOK, `{"id":"job-1","status":"processing"}`
		}
		return http.StatusOK, completedBody
	}}
	client := newTestClient(t, svc, 60)

	opts := DefaultOptions()
	opts.Vocabulary = []string{"Kubernetes", "Terraform"}
	result, err := client.Transcribe(context.Background(), writeClip(t, []byte("pcm!")), opts)
	require.NoError(t, err)

	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "I led the migration to Kubernetes.", result.Text)
	assert.InDelta(t, 0.91, result.Confidence, 1e-9)
	assert.Equal(t, 2500*time.Millisecond, result.AudioDuration)
	require.Len(t, result.Words, 2)
	assert.Equal(t, Word{Text: "led", StartMs: 200, EndMs: 500, Confidence: 0.95}, result.Words[1])
	assert.Equal(t, 3, svc.pollCount())

	assert.Len(t, svc.uploaded, 48)
	assert.Equal(t, []byte("pcm!"), svc.uploaded[44:])
	assert.Equal(t, "https://cdn.example/audio/1", svc.submitted.AudioURL)
	assert.True(t, svc.submitted.Punctuate)
	assert.Equal(t, []string{"Kubernetes", "Terraform"}, svc.submitted.WordBoost)
	assert.Equal(t, "en", svc.submitted.LanguageCode)
}

func TestPoll_CompletesOnLastAttempt(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		if n < 60 {
			return http.StatusOK, `{"id":"job-1","status":"processing"}`
		}
		return http.StatusOK, completedBody
	}}
	client := newTestClient(t, svc, 60)

	result, err := client.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "I led the migration to Kubernetes.", result.Text)
	assert.Equal(t, 60, svc.pollCount())
}

func TestPoll_Timeout(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		return http.StatusOK, `{"id":"job-1","status":"queued"}`
	}}
	client := newTestClient(t, svc, 60)

	_, err := client.Poll(context.Background(), "job-1")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 60, timeoutErr.Attempts)
	assert.Equal(t, StatusQueued, timeoutErr.LastStatus)
	assert.Equal(t, 60, svc.pollCount())
	assert.Equal(t, KindTimeout, Kind(err))
}

func TestPoll_JobFailed(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		if n == 1 {
			return http.StatusOK, `{"id":"job-1","status":"processing"}`
		}
		return http.StatusOK, `{"id":"job-1","status":"error","error":"audio too short"}`
	}}
	client := newTestClient(t, svc, 60)

	_, err := client.Poll(context.Background(), "job-1")
	var jobErr *TranscriptionError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "audio too short", jobErr.Reason)
	assert.Equal(t, 2, svc.pollCount(), "a failed job must stop polling")
}

func TestPoll_TransientErrorsShareBudget(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		switch {
		case n%2 == 1:
			return http.StatusServiceUnavailable, `{"error":"overloaded"}`
		case n < 6:
			return http.StatusOK, `{"id":"job-1","status":"processing"}`
		default:
			return http.StatusOK, completedBody
		}
	}}
	client := newTestClient(t, svc, 10)

	result, err := client.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, 6, svc.pollCount())
}

func TestPoll_TransientErrorsExhaustBudget(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		return http.StatusBadGateway, `{"error":"bad gateway"}`
	}}
	client := newTestClient(t, svc, 5)

	_, err := client.Poll(context.Background(), "job-1")
	var pollErr *PollError
	require.ErrorAs(t, err, &pollErr)
	assert.Equal(t, 5, pollErr.Attempts)
	assert.Contains(t, pollErr.Err.Error(), "bad gateway")
	assert.Equal(t, KindPoll, Kind(err))
}

func TestPoll_MalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":         `not json`,
		"unknown status":   `{"id":"job-1","status":"exploded"}`,
		"missing text":     `{"id":"job-1","status":"completed","words":[]}`,
		"reversed timing":  `{"id":"job-1","status":"completed","text":"hi","words":[{"text":"hi","start":500,"end":100,"confidence":0.9}]}`,
		"confidence range": `{"id":"job-1","status":"completed","text":"hi","words":[{"text":"hi","start":0,"end":100,"confidence":1.7}]}`,
		"word fields":      `{"id":"job-1","status":"completed","text":"hi","words":[{"text":"hi"}]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{t: t, pollReply: func(n int) (int, string) { return http.StatusOK, body }}
			client := newTestClient(t, svc, 60)

			_, err := client.Poll(context.Background(), "job-1")
			var protoErr *ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.Equal(t, 1, svc.pollCount())
		})
	}
}

func TestPoll_EmptyTextIsValid(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		return http.StatusOK, `{"id":"job-1","status":"completed","text":"","words":[]}`
	}}
	client := newTestClient(t, svc, 60)

	result, err := client.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.Words)
}

func TestPoll_Cancelled(t *testing.T) {
	svc := &fakeService{t: t, pollReply: func(n int) (int, string) {
		return http.StatusOK, `{"id":"job-1","status":"processing"}`
	}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()
	client := NewClient(srv.URL, "test-key",
		WithPollPolicy(PollPolicy{Interval: time.Hour, MaxAttempts: 60}),
		WithLogger(zerolog.Nop()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for svc.pollCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := client.Poll(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, svc.pollCount())
	assert.Equal(t, KindCancelled, Kind(err))
}

func TestUpload_Rejected(t *testing.T) {
	svc := &fakeService{t: t, uploadStatus: http.StatusUnauthorized}
	client := newTestClient(t, svc, 60)

	_, err := client.Transcribe(context.Background(), writeClip(t, []byte("data")), DefaultOptions())
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusUnauthorized, uploadErr.Status)
	assert.True(t, strings.Contains(err.Error(), "upload rejected"))
	assert.Equal(t, 0, svc.pollCount())
}

func TestUpload_MissingFile(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "test-key", WithLogger(zerolog.Nop()))
	clip := &capture.Clip{ID: "gone", Path: filepath.Join(t.TempDir(), "missing.wav")}

	_, err := client.Transcribe(context.Background(), clip, DefaultOptions())
	assert.Equal(t, KindUpload, Kind(err))
}

func TestUpload_NotWAV(t *testing.T) {
	svc := &fakeService{t: t}
	client := newTestClient(t, svc, 60)

	path := filepath.Join(t.TempDir(), "answer.wav")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o600))
	_, err := client.Transcribe(context.Background(), &capture.Clip{ID: "bad", Path: path}, DefaultOptions())
	assert.Equal(t, KindUpload, Kind(err))
	assert.ErrorIs(t, err, audio.ErrNotWAV)

	_, err = client.Transcribe(context.Background(), writeClip(t, nil), DefaultOptions())
	assert.Equal(t, KindUpload, Kind(err))
	assert.Nil(t, svc.uploaded)
}

func TestSubmit_MissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"queued"}`)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, "k", WithLogger(zerolog.Nop()))

	_, err := client.Submit(context.Background(), "https://cdn.example/a", DefaultOptions())
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "submit", protoErr.Step)
}

func TestSubmit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, "k", WithLogger(zerolog.Nop()))

	_, err := client.Submit(context.Background(), "https://cdn.example/a", DefaultOptions())
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, http.StatusInternalServerError, submitErr.Status)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&UploadError{Err: errors.New("x")}, KindUpload},
		{fmt.Errorf("wrapped: %w", &SubmitError{Err: errors.New("x")}), KindSubmit},
		{ErrEmptyAnswer, KindEmptyAnswer},
		{capture.DeviceError(errors.New("unplugged")), KindDeviceUnavailable},
		{errors.New("mystery"), KindUnknown},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
