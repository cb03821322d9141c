package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/audio"
	"github.com/lexiqai/voice-interview/internal/capture"
	"github.com/lexiqai/voice-interview/internal/interview"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/prompt"
)

const (
	writeWait         = 10 * time.Second
	maxMessageSize    = 1 << 20
	captureBuffer     = 10 * 16000 * 2 // 10s at 16kHz mono
	playbackGrace     = 10 * time.Second
	amplitudeInterval = 100 * time.Millisecond
)

// session runs one interview over one websocket connection
type session struct {
	srv    *Server
	conn   *websocket.Conn
	role   string
	logger zerolog.Logger

	writeMu sync.Mutex

	source *capture.ChannelSource
	player *wsPlayer
	ctrl   *interview.Controller
}

func newSession(srv *Server, conn *websocket.Conn, role string) *session {
	s := &session{
		srv:    srv,
		conn:   conn,
		role:   role,
		logger: observability.WithCorrelationID(observability.NewCorrelationID()).With().Str("role", role).Logger(),
		source: capture.NewChannelSource(captureBuffer, 0),
	}
	s.player = newWSPlayer(s.send, playbackGrace)

	recorder := capture.NewRecorder(s.source, capture.ConfigFrom(srv.cfg), s.logger)
	s.ctrl = interview.NewController(interview.Deps{
		Speaker:     prompt.NewPrompter(srv.deps.Synthesizer, s.player, s.logger),
		Capture:     recorder,
		Transcriber: srv.deps.Transcriber,
		Analyzer:    srv.analyzer,
		Scorer:      srv.deps.Scorer,
		Store:       srv.deps.Store,
		Logger:      s.logger,
	}, interview.OptionsFromConfig(srv.cfg, role))
	return s
}

// send writes one event. gorilla connections allow a single writer.
func (s *session) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *session) run(questions []interview.Question) {
	defer s.conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsubscribe := s.ctrl.Subscribe(32)
	defer unsubscribe()

	var wg sync.WaitGroup
	streamCtx, stopStreams := context.WithCancel(ctx)
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.forwardUpdates(streamCtx, updates, questions)
	}()
	go func() {
		defer wg.Done()
		s.streamAmplitude(streamCtx)
	}()
	defer func() {
		stopStreams()
		wg.Wait()
	}()

	readDone := make(chan struct{})
	go s.readLoop(readDone)

	id, err := s.ctrl.Start(ctx, questions)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to start interview")
		s.send(ServerMessage{Event: EventError, Error: err.Error()})
		return
	}
	logger := s.logger.With().Str("session_id", id).Logger()
	logger.Info().Int("questions", len(questions)).Msg("Interview connected")

	waitDone := make(chan error, 1)
	go func() { waitDone <- s.ctrl.Wait(ctx) }()

	var runErr error
	select {
	case runErr = <-waitDone:
	case <-readDone:
		logger.Info().Msg("Client disconnected, ending interview")
		s.source.Close()
		s.ctrl.End()
		<-waitDone
		return
	}

	stopStreams()
	wg.Wait()

	summary := s.summary(id)
	msg := ServerMessage{Event: EventCompleted, SessionID: id, Summary: summary}
	if runErr != nil {
		msg.Error = runErr.Error()
	}
	if err := s.send(msg); err != nil {
		logger.Warn().Err(err).Msg("Failed to send summary")
		return
	}

	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "interview complete"),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	s.source.Close()
}

// summary prefers the stored session and falls back to the live copy
func (s *session) summary(id string) *Summary {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored, err := s.srv.deps.Store.GetSession(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stored session unavailable, using live copy")
		return newSummary(s.ctrl.Snapshot())
	}
	return newSummary(stored)
}

// readLoop handles client events until the connection closes
func (s *session) readLoop(done chan struct{}) {
	defer close(done)
	s.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to parse client message")
			continue
		}

		switch msg.Event {
		case EventMedia:
			s.handleMedia(msg.Media)
		case EventStop:
			if !s.ctrl.RequestStop() {
				s.logger.Debug().Str("status", string(s.ctrl.Status())).Msg("Stop ignored outside listening")
			}
		case EventEnd:
			// End blocks until the loop exits; keep reading meanwhile
			go s.ctrl.End()
		case EventPlayed:
			if !s.player.played(msg.Mark) {
				s.logger.Debug().Str("mark", msg.Mark).Msg("Unknown playback mark")
			}
		default:
			s.logger.Debug().Str("event", msg.Event).Msg("Unknown client event")
		}
	}
}

func (s *session) handleMedia(media *Media) {
	if media == nil || media.Payload == "" {
		s.logger.Debug().Msg("Media event missing payload")
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(media.Payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode base64 audio")
		return
	}

	if rate := s.srv.cfg.CaptureSampleRate; media.SampleRate > 0 && media.SampleRate != rate {
		if pcm, err = audio.ResamplePCM(pcm, media.SampleRate, rate); err != nil {
			s.logger.Warn().Err(err).Int("sample_rate", media.SampleRate).Msg("Failed to resample audio")
			return
		}
	}

	// Audio outside an answer is expected and discarded
	if n := s.source.Push(pcm); n > 0 && n < len(pcm) {
		s.logger.Warn().Int("dropped", len(pcm)-n).Msg("Capture buffer full, dropping audio")
	}
}

// forwardUpdates relays controller status changes, naming the question
// when it is about to be asked
func (s *session) forwardUpdates(ctx context.Context, updates <-chan interview.Update, questions []interview.Question) {
	forward := func(u interview.Update) {
		msg := ServerMessage{Event: EventStatus, SessionID: u.SessionID, Update: &u}
		if u.Status == interview.StatusSpeaking && u.Index < len(questions) {
			msg.Question = questions[u.Index].Text
		}
		if err := s.send(msg); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to send status")
		}
	}

	for {
		select {
		case u := <-updates:
			forward(u)
		case <-ctx.Done():
			// Flush what the loop published before it finished
			for {
				select {
				case u := <-updates:
					forward(u)
				default:
					return
				}
			}
		}
	}
}

func (s *session) streamAmplitude(ctx context.Context) {
	ticker := time.NewTicker(amplitudeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ctrl.Status() != interview.StatusListening {
				continue
			}
			level := s.ctrl.Amplitude()
			if err := s.send(ServerMessage{Event: EventAmplitude, Amplitude: &level}); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to send amplitude")
			}
		}
	}
}
