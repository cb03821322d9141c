package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Transcription providers
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderDeepgram   = "deepgram"
)

// Session store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all configuration for the interview service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Transcription service configuration
	TranscriptionProvider    string        `envconfig:"TRANSCRIPTION_PROVIDER" default:"assemblyai"` // assemblyai, deepgram
	TranscriptionBaseURL     string        `envconfig:"TRANSCRIPTION_BASE_URL" default:"https://api.assemblyai.com/v2"`
	TranscriptionAPIKey      string        `envconfig:"TRANSCRIPTION_API_KEY" default:""`
	TranscriptionLanguage    string        `envconfig:"TRANSCRIPTION_LANGUAGE" default:"en"`
	TranscriptionPollEvery   time.Duration `envconfig:"TRANSCRIPTION_POLL_INTERVAL" default:"3s"`
	TranscriptionMaxPolls    int           `envconfig:"TRANSCRIPTION_POLL_MAX_ATTEMPTS" default:"60"`
	TranscriptionHTTPTimeout time.Duration `envconfig:"TRANSCRIPTION_HTTP_TIMEOUT" default:"30s"`

	// Deepgram prerecorded API configuration (TRANSCRIPTION_PROVIDER=deepgram)
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Cartesia TTS API configuration
	CartesiaAPIKey     string `envconfig:"CARTESIA_API_KEY" required:"true"`
	CartesiaVoiceID    string `envconfig:"CARTESIA_VOICE_ID" default:"a0e99841-438c-4a64-b679-ae501e7d6091"`
	CartesiaModelID    string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-2"`
	CartesiaSampleRate int    `envconfig:"CARTESIA_SAMPLE_RATE" default:"24000"`

	// Answer scorer (OpenAI compatible chat completions). Empty key selects the keyword scorer.
	ScorerAPIKey  string        `envconfig:"SCORER_API_KEY" default:""`
	ScorerBaseURL string        `envconfig:"SCORER_BASE_URL" default:"https://api.openai.com/v1"`
	ScorerModel   string        `envconfig:"SCORER_MODEL" default:"gpt-4o-mini"`
	ScoreWait     time.Duration `envconfig:"SCORE_WAIT" default:"10s"` // Best-effort wait before advancing

	// Session store configuration
	StoreBackend  string        `envconfig:"STORE_BACKEND" default:"memory"` // memory, redis
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string        `envconfig:"REDIS_PREFIX" default:"interview"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"168h"`

	// Audio capture configuration
	CaptureDir         string        `envconfig:"CAPTURE_DIR" default:""`          // Empty uses os.TempDir
	CaptureSampleRate  int           `envconfig:"CAPTURE_SAMPLE_RATE" default:"16000"`
	MinAnswerDuration  time.Duration `envconfig:"MIN_ANSWER_DURATION" default:"1s"`
	MinAnswerBytes     int64         `envconfig:"MIN_ANSWER_BYTES" default:"3200"`
	VADEnergyThreshold float64       `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int           `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Interview configuration
	QuestionsFile     string `envconfig:"QUESTIONS_FILE" default:""`
	QuestionCount     int    `envconfig:"QUESTION_COUNT" default:"5"`
	EnforceTimeLimits bool   `envconfig:"ENFORCE_TIME_LIMITS" default:"false"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	OTLPEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express
func (c *Config) Validate() error {
	switch c.TranscriptionProvider {
	case ProviderAssemblyAI:
		if c.TranscriptionAPIKey == "" {
			return fmt.Errorf("TRANSCRIPTION_API_KEY is required for provider %q", c.TranscriptionProvider)
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for provider %q", c.TranscriptionProvider)
		}
	default:
		return fmt.Errorf("unknown TRANSCRIPTION_PROVIDER %q", c.TranscriptionProvider)
	}

	if c.CartesiaAPIKey == "" {
		return fmt.Errorf("CARTESIA_API_KEY is required")
	}

	switch c.StoreBackend {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.TranscriptionPollEvery <= 0 {
		return fmt.Errorf("TRANSCRIPTION_POLL_INTERVAL must be positive")
	}
	if c.TranscriptionMaxPolls <= 0 {
		return fmt.Errorf("TRANSCRIPTION_POLL_MAX_ATTEMPTS must be positive")
	}
	if c.QuestionCount <= 0 {
		return fmt.Errorf("QUESTION_COUNT must be positive")
	}

	return nil
}
