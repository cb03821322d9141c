package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_active_sessions",
		Help: "Number of interview sessions currently running",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_total",
		Help: "Total number of interview sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_session_duration_seconds",
		Help:    "Wall-clock duration of interview sessions",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_state_transitions_total",
		Help: "State machine transitions by destination status",
	}, []string{"status"})

	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_answers_total",
		Help: "Answered question records by outcome",
	}, []string{"outcome"})

	// Transcription metrics
	transcriptionStepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_transcription_step_seconds",
		Help:    "Latency of each transcription protocol step",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15, 60, 180},
	}, []string{"step", "status"})

	pollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_transcription_poll_attempts",
		Help:    "Number of status polls needed per transcription job",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_tts_latency_seconds",
		Help:    "TTS synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Scorer metrics
	scorerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_scorer_requests_total",
		Help: "Total number of answer scoring requests",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" (captured) or "out" (synthesized)
)

// Metrics tracks metrics for a single interview session
type Metrics struct {
	sessionID string
	startTime time.Time
	ended     bool
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session. Repeated calls are ignored.
func (m *Metrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTransition records a state machine transition
func (m *Metrics) RecordTransition(status string) {
	stateTransitions.WithLabelValues(status).Inc()
}

// RecordAnswer records an appended answer record
func (m *Metrics) RecordAnswer(outcome string) {
	answersTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed by the session
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	ObserveAudioBytes(direction, bytes)
}

// ObserveAudioBytes records audio bytes captured ("in") or synthesized ("out")
func ObserveAudioBytes(direction string, bytes int64) {
	if bytes <= 0 {
		return
	}
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// ObserveTranscriptionStep records the latency of one protocol step
func ObserveTranscriptionStep(step string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	transcriptionStepLatency.WithLabelValues(step, status).Observe(time.Since(started).Seconds())
}

// ObservePollAttempts records how many polls a job needed
func ObservePollAttempts(attempts int) {
	pollAttempts.Observe(float64(attempts))
}

// ObserveTTS records a synthesis request
func ObserveTTS(started time.Time, success bool) {
	ttsLatency.Observe(time.Since(started).Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
}

// ObserveScorer records a scoring request
func ObserveScorer(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	scorerRequests.WithLabelValues(status).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
