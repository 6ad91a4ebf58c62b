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

	"github.com/shopfront/ledger/internal/gateway"
	"github.com/shopfront/ledger/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ledgerServiceURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerServiceURL == "" {
		logger.Error("LEDGER_SERVICE_URL is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	ledgerProxy := gateway.NewServiceProxy(ledgerServiceURL, httpClient)
	handler := gateway.NewHandler(ledgerProxy, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /shop/products", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/products", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/products/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("PATCH /shop/products/{id}/price", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("PATCH /shop/products/{id}/quantity", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("DELETE /shop/products/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/products/{id}/quote", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/products/{id}/buy", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/co-orders", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/co-orders", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/co-orders/{id}", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/co-orders/{id}/deposits", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/co-orders/{id}/withdraw", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/co-orders/{id}/release", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/co-orders/{id}/clean", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("GET /shop/treasury", telemetry.WithHTTPRoute(handler.HandleShop))
	mux.HandleFunc("POST /shop/treasury/withdraw", telemetry.WithHTTPRoute(handler.HandleShop))

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
