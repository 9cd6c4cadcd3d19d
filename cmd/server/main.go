package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/assist-gateway/internal/api"
	"github.com/lexiqai/assist-gateway/internal/capability"
	"github.com/lexiqai/assist-gateway/internal/config"
	"github.com/lexiqai/assist-gateway/internal/llm"
	"github.com/lexiqai/assist-gateway/internal/objectstore"
	"github.com/lexiqai/assist-gateway/internal/observability"
	"github.com/lexiqai/assist-gateway/internal/ocr"
	"github.com/lexiqai/assist-gateway/internal/resilience"
	"github.com/lexiqai/assist-gateway/internal/translate"
	"github.com/lexiqai/assist-gateway/internal/tts"
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
		Str("summarization_provider", cfg.SummarizationProvider).
		Str("tts_provider", cfg.TTSProvider).
		Str("ocr_provider", cfg.OCRProvider).
		Str("translation_provider", cfg.TranslationProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Assist Gateway Service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readiness := map[string]observability.HealthCheckFunc{}

	// Optional synthesized audio cache
	var cache tts.AudioCache
	if cfg.NATSURL != "" {
		store, closeStore, err := openAudioCache(ctx, cfg)
		if err != nil {
			// The cache is an optimization; synthesis works without it
			logger.Warn().Err(err).Str("nats_url", cfg.NATSURL).Msg("Audio cache unavailable, continuing without it")
		} else {
			defer closeStore()
			cache = store
			readiness["nats"] = store.Ping
		}
	}

	guards := map[string]*resilience.Guard{}
	for _, name := range []string{capability.Summarization, capability.TTS, capability.OCR, capability.Translation} {
		guards[name] = newGuard(cfg, name)
	}

	translation, err := translate.NewFromConfig(cfg, guards[capability.Translation])
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure translation")
	}

	server := api.NewServer(api.Services{
		LLM:       llm.NewFromConfig(cfg, guards[capability.Summarization]),
		TTS:       tts.NewFromConfig(cfg, guards[capability.TTS], cache),
		OCR:       ocr.NewFromConfig(cfg, guards[capability.OCR]),
		Translate: translation,
	}, api.Options{
		Metrics:         cfg.MetricsEnabled,
		WSFrameSamples:  cfg.WSFrameSamples,
		ReadinessChecks: readiness,
	})
	registry := server.Registry()

	for name, st := range registry.Statuses() {
		event := logger.Info().Str("capability", name).Str("provider", st.Provider).Str("state", st.State)
		if st.Error != "" {
			event = event.Str("reason", st.Error)
		}
		event.Msg("Capability configured")
	}

	if cfg.EagerInit {
		initCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ProviderTimeout)*time.Second)
		for name, err := range registry.InitializeAll(initCtx) {
			logger.Warn().Err(err).Str("capability", name).Msg("Capability failed to initialize at startup")
		}
		cancel()
	}

	// Optional gRPC health service
	var grpcHealth *observability.HealthServer
	if cfg.GRPCHealthEnabled {
		grpcHealth = observability.NewHealthServer()
		go publishServingStatus(ctx, grpcHealth, registry)
		go func() {
			addr := fmt.Sprintf(":%s", cfg.GRPCHealthPort)
			logger.Info().Str("addr", addr).Msg("gRPC health service listening")
			if err := grpcHealth.Serve(addr); err != nil {
				logger.Error().Err(err).Msg("gRPC health service stopped")
			}
		}()
	}

	// Create HTTP server with timeouts. A request may pay for a first
	// initialization and then every guarded attempt of one provider call.
	var callBudget time.Duration
	for _, g := range guards {
		callBudget = max(callBudget, g.Budget())
	}
	providerTimeout := time.Duration(cfg.ProviderTimeout) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      providerTimeout + callBudget + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcHealth != nil {
		grpcHealth.Stop()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// newGuard builds the timeout, retry and circuit breaker policy for one capability
func newGuard(cfg *config.Config, name string) *resilience.Guard {
	breaker := resilience.NewCircuitBreaker(
		name,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	return resilience.NewGuard(breaker, retry, time.Duration(cfg.ProviderTimeout)*time.Second)
}

func openAudioCache(ctx context.Context, cfg *config.Config) (*objectstore.NatsObjectStore, func(), error) {
	reconnect := resilience.DefaultReconnectConfig()
	reconnect.MaxAttempts = cfg.ReconnectMaxAttempts
	reconnect.Backoff = time.Duration(cfg.ReconnectBackoff) * time.Millisecond

	conn, err := objectstore.Connect(ctx, cfg.NATSURL, reconnect)
	if err != nil {
		return nil, nil, err
	}
	store, err := objectstore.New(ctx, conn, cfg.AudioCacheBucket, time.Duration(cfg.AudioCacheTTL)*time.Hour)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, conn.Close, nil
}

// publishServingStatus mirrors capability states into the gRPC health
// service until ctx is done. The gateway itself ("") is always serving.
func publishServingStatus(ctx context.Context, hs *observability.HealthServer, registry *capability.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		hs.SetServing("", true)
		for _, name := range registry.Names() {
			svc, _ := registry.Get(name)
			state, _ := svc.State()
			hs.SetServing(name, state != capability.StateDisabled && state != capability.StateFailed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
