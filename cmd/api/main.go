package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-checkout/internal/api"
	"github.com/example/ec-checkout/internal/app"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/checkout"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/observability"
	"github.com/example/ec-checkout/internal/payments"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[API] invalid configuration: %v", err)
	}
	if err := cfg.RequireAPI(); err != nil {
		log.Fatalf("[API] invalid configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := store.RunMigrations(db); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	m := metrics.New()
	pg := store.NewPostgresStore(db, logger.Named("store"), store.WithQueryObserver(m.ObserveQuery))

	provider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Stripe.SecretKey,
		Logger: logger.Named("stripe"),
	})
	if err != nil {
		logger.Fatal("failed to configure Stripe", zap.Error(err))
	}

	checkoutSvc := checkout.NewService(
		checkout.NewValidator(pg, cfg.Settlement.CallTimeout, logger.Named("checkout")),
		checkout.NewInitiator(provider, checkout.InitiatorConfig{
			PublicURL: cfg.Checkout.PublicURL,
			Currency:  cfg.Checkout.Currency,
			Timeout:   cfg.Settlement.CallTimeout,
		}, logger.Named("checkout")),
	)

	// Webhooks settle inline, or are queued for cmd/settler (Kafka) or the
	// settler Lambda (Kinesis).
	var sink api.SettlementSink
	switch cfg.Settlement.Mode {
	case config.SettlementModeKafka:
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic)
		defer producer.Close()
		sink = api.NewProducerSink(producer)
	case config.SettlementModeKinesis:
		producer, err := app.NewKinesisProducer(ctx, cfg, cfg.Kinesis.SettlementStream, logger)
		if err != nil {
			logger.Fatal("failed to configure Kinesis", zap.Error(err))
		}
		sink = api.NewProducerSink(producer)
	default:
		processor, closers, err := app.NewProcessor(ctx, cfg, pg, m, logger)
		if err != nil {
			logger.Fatal("failed to build settlement pipeline", zap.Error(err))
		}
		defer closers.Close()
		sink = api.NewProcessorSink(processor, logger.Named("settlement"))
	}

	router := api.NewRouter(api.RouterConfig{
		Checkout:         api.NewCheckoutHandlers(checkoutSvc, m, logger.Named("checkout")),
		Webhooks:         api.NewWebhookHandlers(cfg.Stripe.WebhookSecret, sink, logger.Named("webhook")),
		Orders:           api.NewOrderHandlers(order.NewService(pg, logger.Named("orders")), logger.Named("orders")),
		Products:         api.NewProductHandlers(pg, logger.Named("products")),
		Health:           api.NewHealthHandlers(pg, logger),
		JWTService:       auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, auth.WithIssuer(cfg.Auth.JWTIssuer)),
		Metrics:          m,
		MetricsTokenHash: cfg.Metrics.TokenHash,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("settlement_mode", cfg.Settlement.Mode))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
