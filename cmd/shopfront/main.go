package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/shopfront/ledger/internal/catalog"
	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/escrow"
	"github.com/shopfront/ledger/internal/messaging"
	"github.com/shopfront/ledger/internal/purchase"
	"github.com/shopfront/ledger/internal/telemetry"
	"github.com/shopfront/ledger/internal/treasury"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	operatorID := os.Getenv("OPERATOR_ID")
	if operatorID == "" {
		logger.Error("OPERATOR_ID environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "shopfront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("shopfront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec("SET search_path TO shopfront"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, domain.EventsTopic, "shopfront")
		defer func() { _ = producer.Close() }()
	}

	catalogRepo := catalog.NewRepository(db)
	catalogHandler := catalog.NewHandler(catalogRepo, producer, operatorID, logger)

	purchaseRepo := purchase.NewRepository(db)
	purchaseHandler, err := purchase.NewHandler(purchaseRepo, producer, logger)
	if err != nil {
		logger.Error("failed to create purchase handler", "error", err)
		os.Exit(1)
	}

	escrowRepo := escrow.NewRepository(db)
	escrowHandler, err := escrow.NewHandler(escrowRepo, producer, operatorID, logger)
	if err != nil {
		logger.Error("failed to create escrow handler", "error", err)
		os.Exit(1)
	}

	treasuryRepo := treasury.NewRepository(db)
	treasuryHandler := treasury.NewHandler(treasuryRepo, producer, operatorID, logger)
	if err := treasury.RegisterMetrics(treasuryRepo); err != nil {
		logger.Error("failed to register ledger metrics", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)

	mux.HandleFunc("POST /products", catalogHandler.HandleCreate)
	mux.HandleFunc("GET /products", catalogHandler.HandleList)
	mux.HandleFunc("GET /products/{id}", catalogHandler.HandleGet)
	mux.HandleFunc("PATCH /products/{id}/price", catalogHandler.HandleUpdatePrice)
	mux.HandleFunc("PATCH /products/{id}/quantity", catalogHandler.HandleUpdateQuantity)
	mux.HandleFunc("DELETE /products/{id}", catalogHandler.HandleRemove)
	mux.HandleFunc("GET /products/{id}/quote", catalogHandler.HandleQuote)

	mux.HandleFunc("POST /products/{id}/buy", purchaseHandler.HandleBuy)

	mux.HandleFunc("POST /co-orders", escrowHandler.HandleCreate)
	mux.HandleFunc("GET /co-orders", escrowHandler.HandleList)
	mux.HandleFunc("GET /co-orders/{id}", escrowHandler.HandleGet)
	mux.HandleFunc("POST /co-orders/{id}/deposits", escrowHandler.HandleDeposit)
	mux.HandleFunc("POST /co-orders/{id}/withdraw", escrowHandler.HandleWithdraw)
	mux.HandleFunc("POST /co-orders/{id}/release", escrowHandler.HandleRelease)
	mux.HandleFunc("POST /co-orders/{id}/clean", escrowHandler.HandleClean)

	mux.HandleFunc("GET /treasury", treasuryHandler.HandleGet)
	mux.HandleFunc("POST /treasury/withdraw", treasuryHandler.HandleWithdraw)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "shopfront",
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
		logger.Info("starting shopfront service", "port", port, "operator_id", operatorID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
