package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/observability"
	"github.com/lexiqai/voice-interview/internal/questions"
	"github.com/lexiqai/voice-interview/internal/scoring"
	"github.com/lexiqai/voice-interview/internal/server"
	"github.com/lexiqai/voice-interview/internal/store"
	"github.com/lexiqai/voice-interview/internal/transcription"
	"github.com/lexiqai/voice-interview/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("transcription_provider", cfg.TranscriptionProvider).
		Str("store_backend", cfg.StoreBackend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice Interview Service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	sessions, err := store.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer sessions.Close()

	transcriber, err := transcription.NewTranscriber(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}

	scorer, err := scoring.NewScorer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scorer")
	}

	questionSource, err := questions.New(cfg.QuestionsFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load questions")
	}

	synth := tts.NewCartesiaClient(cfg, tts.WithLogger(logger))

	srv := server.New(cfg, server.Dependencies{
		Transcriber: transcriber,
		Synthesizer: synth,
		Scorer:      scorer,
		Store:       sessions,
		Questions:   questionSource,
	}, logger)

	mux := http.NewServeMux()
	srv.Routes(mux)

	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness checks are assembled here to avoid import cycles
	checks := map[string]observability.HealthCheckFunc{
		"store": sessions.Healthy,
		"tts":   synth.Breaker().Healthy,
	}
	if h, ok := transcriber.(interface {
		Healthy(context.Context) (bool, error)
	}); ok {
		checks["transcription"] = h.Healthy
	}
	if fb, ok := scorer.(scoring.Fallback); ok {
		if llm, ok := fb.Primary.(*scoring.LLMScorer); ok {
			checks["scorer"] = llm.Breaker().Healthy
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No write timeout: interview websockets stay open for the whole session
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/v1/interview", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush traces")
	}

	logger.Info().Msg("Server exited gracefully")
}
