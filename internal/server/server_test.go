package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/interview"
	"github.com/lexiqai/voice-interview/internal/questions"
	"github.com/lexiqai/voice-interview/internal/scoring"
	"github.com/lexiqai/voice-interview/internal/store"
	"github.com/lexiqai/voice-interview/internal/transcription"
	"github.com/lexiqai/voice-interview/internal/tts"
)

type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, text string) (*tts.AudioChunk, error) {
	return &tts.AudioChunk{
		Data:   make([]byte, 4800),
		Format: audio.Format{SampleRate: 24000, Channels: 1, BitDepth: 16},
	}, nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	sizes []int64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip *capture.Clip, opts transcription.Options) (*transcription.Result, error) {
	f.mu.Lock()
	f.sizes = append(f.sizes, clip.Size)
	f.mu.Unlock()
	return &transcription.Result{
		JobID:      "job",
		Text:       "I would use a token bucket in redis",
		Confidence: 0.9,
		Words: []transcription.Word{
			{Text: "token", StartMs: 0, EndMs: 400, Confidence: 0.9},
			{Text: "bucket", StartMs: 400, EndMs: 800, Confidence: 0.9},
			{Text: "redis", StartMs: 800, EndMs: 1200, Confidence: 0.9},
		},
	}, nil
}

type testServer struct {
	url         string
	store       *store.MemoryStore
	transcriber *fakeTranscriber
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		CaptureDir:        t.TempDir(),
		CaptureSampleRate: 16000,
		MinAnswerDuration: 100 * time.Millisecond,
		MinAnswerBytes:    1000,
		ScoreWait:         time.Second,
		QuestionCount:     2,
	}
	ts := &testServer{store: store.NewMemoryStore(), transcriber: &fakeTranscriber{}}

	srv := New(cfg, Dependencies{
		Transcriber: ts.transcriber,
		Synthesizer: fakeSynth{},
		Scorer:      scoring.KeywordScorer{},
		Store:       ts.store,
		Questions:   questions.Static(),
	}, zerolog.Nop())

	mux := http.NewServeMux()
	srv.Routes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ts.url = server.URL
	return ts
}

func (ts *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.url, "http") + "/v1/interview?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// speech returns half a second of a loud square wave
func speech() string {
	samples := make([]int16, 8000)
	for i := range samples {
		if (i/20)%2 == 0 {
			samples[i] = 8000
		} else {
			samples[i] = -8000
		}
	}
	return base64.StdEncoding.EncodeToString(audio.SamplesToBytes(samples))
}

func TestInterview_FullSession(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "role=backend+engineer&count=2")
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var asked []string
	var statuses []interview.Status
	var summary *Summary
	for summary == nil {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg.Event {
		case EventAudio:
			require.NotNil(t, msg.Audio)
			assert.Equal(t, 24000, msg.Audio.SampleRate)
			require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventPlayed, Mark: msg.Audio.Mark}))
		case EventStatus:
			require.NotNil(t, msg.Update)
			statuses = append(statuses, msg.Update.Status)
			if msg.Question != "" {
				asked = append(asked, msg.Question)
			}
			if msg.Update.Status == interview.StatusListening {
				require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventMedia, Media: &Media{Payload: speech()}}))
				require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventStop}))
			}
		case EventCompleted:
			summary = msg.Summary
			assert.Empty(t, msg.Error)
		case EventError:
			t.Fatalf("unexpected error event: %s", msg.Error)
		}
	}

	assert.Equal(t, []string{
		"How would you design a rate limiter for a public API?",
		"When would you choose a message queue over a synchronous call?",
	}, asked)
	assert.Contains(t, statuses, interview.StatusProcessing)

	require.NotNil(t, summary.Session)
	assert.Equal(t, interview.StatusCompleted, summary.Session.Status)
	require.Len(t, summary.Session.Answers, 2)
	for i, a := range summary.Session.Answers {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, interview.OutcomeAnswered, a.Outcome)
		require.NotNil(t, a.Score)
		assert.Equal(t, "keyword", a.Score.Source)
	}
	require.NotNil(t, summary.AggregateScore)

	ts.transcriber.mu.Lock()
	defer ts.transcriber.mu.Unlock()
	require.Len(t, ts.transcriber.sizes, 2)
	assert.Equal(t, int64(16000), ts.transcriber.sizes[0])

	// The same session is available over HTTP
	resp, err := http.Get(ts.url + "/v1/sessions/" + summary.Session.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Len(t, fetched.Session.Answers, 2)
}

func TestInterview_EndEarly(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "role=backend+engineer&count=3")
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))

		if msg.Event == EventAudio {
			require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventPlayed, Mark: msg.Audio.Mark}))
		}
		if msg.Event == EventStatus && msg.Update.Status == interview.StatusListening {
			require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventEnd}))
		}
		if msg.Event == EventCompleted {
			require.NotNil(t, msg.Summary)
			assert.Equal(t, interview.StatusCompleted, msg.Summary.Session.Status)
			assert.Empty(t, msg.Summary.Session.Answers)
			assert.Nil(t, msg.Summary.AggregateScore)
			return
		}
	}
}

func TestInterview_ClientDisconnect(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "count=1")
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var sessionID string
	for sessionID == "" {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == EventAudio {
			require.NoError(t, conn.WriteJSON(ClientMessage{Event: EventPlayed, Mark: msg.Audio.Mark}))
		}
		if msg.Event == EventStatus && msg.Update.Status == interview.StatusListening {
			sessionID = msg.SessionID
		}
	}
	conn.Close()

	assert.Eventually(t, func() bool {
		s, err := ts.store.GetSession(context.Background(), sessionID)
		return err == nil && s.Status == interview.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHandleInterview_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	for _, count := range []string{"0", "abc", "21"} {
		resp, err := http.Get(ts.url + "/v1/interview?count=" + count)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "count=%s", count)
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.url + "/v1/sessions/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSPlayer(t *testing.T) {
	var mu sync.Mutex
	var sent []ServerMessage
	player := newWSPlayer(func(msg ServerMessage) error {
		mu.Lock()
		sent = append(sent, msg)
		mu.Unlock()
		return nil
	}, 50*time.Millisecond)

	chunk := &tts.AudioChunk{Data: make([]byte, 320), Format: audio.DefaultCaptureFormat}

	t.Run("acknowledged", func(t *testing.T) {
		done := make(chan error, 1)
		go func() { done <- player.Play(context.Background(), chunk) }()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(sent) == 1
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		mark := sent[0].Audio.Mark
		mu.Unlock()
		assert.True(t, player.played(mark))
		assert.NoError(t, <-done)
		assert.False(t, player.played(mark), "marks resolve once")
	})

	t.Run("timeout", func(t *testing.T) {
		err := player.Play(context.Background(), chunk)
		assert.ErrorIs(t, err, errPlaybackTimeout)
	})

	t.Run("send failure is a device error", func(t *testing.T) {
		broken := newWSPlayer(func(ServerMessage) error { return websocket.ErrCloseSent }, time.Second)
		err := broken.Play(context.Background(), chunk)
		assert.ErrorIs(t, err, capture.ErrDeviceUnavailable)
	})
}

func TestSession_HandleMediaResamples(t *testing.T) {
	s := &session{
		srv:    &Server{cfg: &config.Config{CaptureSampleRate: 16000}},
		source: capture.NewChannelSource(captureBuffer, captureBuffer),
		logger: zerolog.Nop(),
	}
	stream, err := s.source.Open(context.Background(), audio.DefaultCaptureFormat)
	require.NoError(t, err)
	defer stream.Close()

	pcm := base64.StdEncoding.EncodeToString(audio.SamplesToBytes(make([]int16, 800))) // 100ms at 8kHz
	s.handleMedia(&Media{Payload: pcm, SampleRate: 8000})
	s.handleMedia(&Media{Payload: pcm}) // already at the capture rate
	s.handleMedia(&Media{Payload: "not base64"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, err := stream.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Len(t, frame, 1600*2+800*2)
}
