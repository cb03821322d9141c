package config

import (
	"os"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TRANSCRIPTION_API_KEY", "test-transcription-key")
	t.Setenv("CARTESIA_API_KEY", "test-cartesia-key")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.TranscriptionAPIKey != "test-transcription-key" {
		t.Errorf("Expected TranscriptionAPIKey 'test-transcription-key', got '%s'", cfg.TranscriptionAPIKey)
	}

	if cfg.CartesiaAPIKey != "test-cartesia-key" {
		t.Errorf("Expected CartesiaAPIKey 'test-cartesia-key', got '%s'", cfg.CartesiaAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("TRANSCRIPTION_API_KEY")
	os.Unsetenv("CARTESIA_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.TranscriptionProvider != ProviderAssemblyAI {
		t.Errorf("Expected default TranscriptionProvider %q, got %q", ProviderAssemblyAI, cfg.TranscriptionProvider)
	}

	if cfg.TranscriptionPollEvery != 3*time.Second {
		t.Errorf("Expected default poll interval 3s, got %v", cfg.TranscriptionPollEvery)
	}

	if cfg.TranscriptionMaxPolls != 60 {
		t.Errorf("Expected default max polls 60, got %d", cfg.TranscriptionMaxPolls)
	}

	if cfg.CaptureSampleRate != 16000 {
		t.Errorf("Expected default CaptureSampleRate 16000, got %d", cfg.CaptureSampleRate)
	}

	if cfg.StoreBackend != StoreMemory {
		t.Errorf("Expected default StoreBackend %q, got %q", StoreMemory, cfg.StoreBackend)
	}

	if cfg.VADEnergyThreshold != 500.0 {
		t.Errorf("Expected default VADEnergyThreshold 500.0, got %f", cfg.VADEnergyThreshold)
	}

	if cfg.ScoreWait != 10*time.Second {
		t.Errorf("Expected default ScoreWait 10s, got %v", cfg.ScoreWait)
	}
}

func TestLoad_DeepgramRequiresKey(t *testing.T) {
	t.Setenv("CARTESIA_API_KEY", "test-cartesia-key")
	t.Setenv("TRANSCRIPTION_PROVIDER", ProviderDeepgram)
	os.Unsetenv("DEEPGRAM_API_KEY")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("Expected error when DEEPGRAM_API_KEY is missing")
	}

	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			TranscriptionProvider:  ProviderAssemblyAI,
			TranscriptionAPIKey:    "k",
			CartesiaAPIKey:         "c",
			StoreBackend:           StoreMemory,
			TranscriptionPollEvery: time.Second,
			TranscriptionMaxPolls:  1,
			QuestionCount:          1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.TranscriptionProvider = "whisper" }, true},
		{"unknown store", func(c *Config) { c.StoreBackend = "postgres" }, true},
		{"zero poll interval", func(c *Config) { c.TranscriptionPollEvery = 0 }, true},
		{"zero poll attempts", func(c *Config) { c.TranscriptionMaxPolls = 0 }, true},
		{"zero question count", func(c *Config) { c.QuestionCount = 0 }, true},
		{"redis store", func(c *Config) { c.StoreBackend = StoreRedis }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.ReconnectBackoff != 1000 {
		t.Errorf("Expected default ReconnectBackoff 1000, got %d", cfg.ReconnectBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	setRequired(t)
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
