package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopfront/ledger/internal/sweeper"
	"github.com/shopfront/ledger/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ledgerServiceURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerServiceURL == "" {
		logger.Error("LEDGER_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	operatorID := os.Getenv("OPERATOR_ID")
	if operatorID == "" {
		logger.Error("OPERATOR_ID environment variable is required")
		os.Exit(1)
	}

	interval := time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Error("invalid SWEEP_INTERVAL", "error", err)
			os.Exit(1)
		}
		interval = parsed
	}

	shutdownTracer, err := telemetry.InitTracerProvider(context.Background(), "sweeper", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	s := sweeper.New(ledgerServiceURL, operatorID, httpClient, interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting sweeper", "interval", interval, "operator_id", operatorID)

	if err := s.Run(ctx); err != nil && ctx.Err() != context.Canceled {
		logger.Error("sweeper error", "error", err)
		os.Exit(1)
	}
}
