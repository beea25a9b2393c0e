package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"granolasync/internal/config"
	"granolasync/internal/extract"
	"granolasync/internal/granola"
	"granolasync/internal/httpapi"
	"granolasync/internal/hubspot"
	"granolasync/internal/observability"
	"granolasync/internal/processor"
	"granolasync/internal/social"
	"granolasync/internal/upstream/anthropic"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}

	anthropicClient := anthropic.New(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, httpClient, anthropic.WithObserver(metrics.ObserveUpstream))
	hubspotClient := hubspot.New(cfg.HubSpotBaseURL, cfg.HubSpotToken, cfg.HubSpotPortalID, httpClient,
		hubspot.WithObserver(metrics.ObserveCRM),
		hubspot.WithLogger(logger),
	)

	extractor := extract.New(anthropicClient, cfg.ExtractModel, cfg.ExtractTimeout)
	socialService := social.New(anthropicClient, cfg.ExtractModel, cfg.LookupTimeout, logger)
	meetingSource := granola.New(cfg.GranolaBaseURL, cfg.GranolaAPIToken, httpClient,
		granola.WithCachePath(cfg.GranolaCachePath),
		granola.WithLogger(logger),
	)
	processorService := processor.New(extractor, hubspotClient, processor.DefaultResolvers(hubspotClient), logger)

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Processor:      processorService,
		Meetings:       meetingSource,
		Social:         socialService,
		Upstream:       anthropicClient,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       35 * time.Second,
		WriteTimeout:      2 * cfg.ExtractTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
