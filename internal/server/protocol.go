package server

import (
	"github.com/lexiqai/voice-interview/internal/interview"
)

// Client to server events
const (
	EventMedia  = "media"  // captured PCM
	EventStop   = "stop"   // candidate finished answering
	EventEnd    = "end"    // end the interview early
	EventPlayed = "played" // an audio mark finished playing
)

// Server to client events
const (
	EventStatus    = "status"
	EventAudio     = "audio"
	EventAmplitude = "amplitude"
	EventCompleted = "completed"
	EventError     = "error"
)

// ClientMessage is one event from the interview client
type ClientMessage struct {
	Event string `json:"event"`
	Media *Media `json:"media,omitempty"`
	Mark  string `json:"mark,omitempty"`
}

// Media carries base64 PCM16 little-endian mono audio. SampleRate defaults
// to the capture rate; other rates are resampled on arrival.
type Media struct {
	Payload    string `json:"payload"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// ServerMessage is one event to the interview client
type ServerMessage struct {
	Event     string            `json:"event"`
	SessionID string            `json:"session_id,omitempty"`
	Update    *interview.Update `json:"update,omitempty"`
	Question  string            `json:"question,omitempty"`
	Audio     *Audio            `json:"audio,omitempty"`
	Amplitude *float64          `json:"amplitude,omitempty"`
	Summary   *Summary          `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Audio is prompt speech to play. The client replies with a played event
// carrying Mark once playback finishes.
type Audio struct {
	Mark       string `json:"mark"`
	Payload    string `json:"payload"`
	SampleRate int    `json:"sample_rate"`
}

// Summary is the final session report
type Summary struct {
	Session        *interview.Session `json:"session"`
	AggregateScore *float64           `json:"aggregate_score,omitempty"`
}

func newSummary(session *interview.Session) *Summary {
	summary := &Summary{Session: session}
	if score, ok := session.AggregateScore(); ok {
		summary.AggregateScore = &score
	}
	return summary
}
