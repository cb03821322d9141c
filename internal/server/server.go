// Package server exposes interviews over a websocket. The client is the
// microphone and the speaker: it streams captured PCM up and plays the
// prompt audio it is sent.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/interview"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/questions"
	"github.com/lexiqai/voice-interview/internal/speechmetrics"
	"github.com/lexiqai/voice-interview/internal/store"
	"github.com/lexiqai/voice-interview/internal/transcription"
	"github.com/lexiqai/voice-interview/internal/tts"
)

const (
	defaultRole  = "software engineer"
	maxQuestions = 20
)

// Dependencies are the shared services every interview uses
type Dependencies struct {
	Transcriber transcription.Transcriber
	Synthesizer tts.Synthesizer
	Scorer      interview.AnswerScorer
	Store       store.Store
	Questions   interview.QuestionSource
}

// Server handles interview websockets and session lookups
type Server struct {
	cfg      *config.Config
	deps     Dependencies
	analyzer *speechmetrics.Analyzer
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New creates a server
func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		deps:     deps,
		analyzer: speechmetrics.NewAnalyzer(nil),
		upgrader: websocket.Upgrader{
			// Browser clients are served from other origins during development
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
		},
		logger: observability.Component(logger, "server"),
	}
}

// Routes registers the interview endpoints
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/interview", s.HandleInterview)
	mux.HandleFunc("GET /v1/sessions/{id}", s.HandleGetSession)
}

// HandleInterview selects questions, upgrades to a websocket and runs one
// interview over it
func (s *Server) HandleInterview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	role := strings.TrimSpace(query.Get("role"))
	if role == "" {
		role = defaultRole
	}

	count := s.cfg.QuestionCount
	if raw := query.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQuestions {
			http.Error(w, "count must be between 1 and 20", http.StatusBadRequest)
			return
		}
		count = n
	}

	qs, err := s.deps.Questions.Questions(r.Context(), role, count)
	if err != nil {
		s.logger.Warn().Err(err).Str("role", role).Msg("No questions for interview")
		if errors.Is(err, questions.ErrNoQuestions) {
			http.Error(w, "no questions available for role", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load questions", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	newSession(s, conn, role).run(qs)
}

// HandleGetSession returns a stored session with its aggregate score
func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Store.GetSession(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		http.Error(w, "session not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to load session")
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSummary(session))
}
