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

	"github.com/jrtorrez31337/pyvs/internal/config"
	"github.com/jrtorrez31337/pyvs/internal/device"
	"github.com/jrtorrez31337/pyvs/internal/engine"
	"github.com/jrtorrez31337/pyvs/internal/gpu"
	"github.com/jrtorrez31337/pyvs/internal/jobcache"
	"github.com/jrtorrez31337/pyvs/internal/observability"
	"github.com/jrtorrez31337/pyvs/internal/server"
	"github.com/jrtorrez31337/pyvs/internal/stt"
)

const (
	serviceName    = "speech-server"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Int("sample_rate", cfg.SampleRate).
		Int("devices", cfg.DeviceCount).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech server starting")

	// Shared services, constructed once and injected
	cache := jobcache.New(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries, logger)
	devices := device.NewRegistry(cfg.DeviceCount)
	reporter := gpu.NewReporter(logger)
	events := server.NewHub(logger)

	var synth engine.Synthesizer
	var engineCheck observability.HealthCheckFunc
	if cfg.EngineURL != "" {
		remote := engine.NewRemoteSynthesizer(cfg, logger)
		synth = remote
		engineCheck = func(ctx context.Context) (bool, error) {
			if err := remote.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
		logger.Info().Str("engine_url", cfg.EngineURL).Msg("Using remote synthesis engine")
	} else {
		synth = engine.NewMockSynthesizer(cfg.SampleRate)
		engineCheck = func(ctx context.Context) (bool, error) { return true, nil }
		logger.Warn().Msg("ENGINE_URL not set, using built-in mock engine")
	}

	var transcriber stt.Transcriber
	if cfg.DeepgramAPIKey != "" {
		transcriber = stt.NewDeepgramTranscriber(cfg, logger)
		logger.Info().Str("model", cfg.DeepgramModel).Msg("Transcription enabled")
	} else {
		logger.Info().Msg("DEEPGRAM_API_KEY not set, transcription endpoint disabled")
	}

	srv := server.New(cfg, logger, cache, devices, synth, transcriber, reporter, events)

	mux := http.NewServeMux()
	srv.Register(mux)

	mux.HandleFunc("/health", observability.HealthCheckHandler(serviceName, serviceVersion))
	mux.HandleFunc("/ready", observability.ReadinessHandler(serviceName, serviceVersion,
		map[string]observability.HealthCheckFunc{
			"engine": engineCheck,
		}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No WriteTimeout: streaming responses stay open for the full
	// generation, bounded by the engine timeout instead.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
