package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/biladesigns/brief-gateway/internal/config"
	"github.com/biladesigns/brief-gateway/internal/frontdoor"
	"github.com/biladesigns/brief-gateway/internal/metrics"
	"github.com/biladesigns/brief-gateway/internal/prompt"
	"github.com/biladesigns/brief-gateway/internal/ratelimit"
	"github.com/biladesigns/brief-gateway/internal/server"
	"github.com/biladesigns/brief-gateway/internal/telemetry"
	"github.com/biladesigns/brief-gateway/internal/tokens"
	"github.com/biladesigns/brief-gateway/internal/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: ./config.yaml if present)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("refusing to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
		Exporter:    cfg.Telemetry.Exporter,
		ServiceName: cfg.Telemetry.ServiceName,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	limiter := ratelimit.New(
		ratelimit.WithCapacity(cfg.RateLimit.Capacity),
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithMaxIdentities(cfg.RateLimit.MaxIdentities),
	)

	client := upstream.New(upstream.Config{
		APIKey:               cfg.Upstream.APIKey,
		BaseURL:              cfg.Upstream.BaseURL,
		Model:                cfg.Upstream.Model,
		MaxTokens:            cfg.Upstream.MaxTokens,
		Temperature:          cfg.Upstream.Temperature,
		DenyPrivateAddresses: cfg.Upstream.DenyPrivateAddresses,
	})

	handler := frontdoor.NewHandler(frontdoor.Config{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		ClientIPHeader:  cfg.Server.ClientIPHeader,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		MaxPromptTokens: cfg.Upstream.MaxPromptTokens,
		Model:           client.Model(),
	}, limiter, prompt.NewRenderer(cfg.Prompt.Language), client,
		frontdoor.WithTokenCounter(tokens.NewCounter()),
		frontdoor.WithMetrics(m),
	)

	srv := server.New(cfg.Server.Port, cfg.Telemetry.ServiceName, logger)
	srv.Mount(handler)

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("starting metrics listener", slog.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("brief gateway started",
		slog.String("model", client.Model()),
		slog.Int("rate_limit", cfg.RateLimit.Capacity),
		slog.Duration("rate_window", cfg.RateLimit.Window),
		slog.Int("allowed_origins", len(cfg.CORS.AllowedOrigins)),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping gateway...")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Gateway shutdown complete")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
