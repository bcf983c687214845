package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-checkout/internal/app"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/observability"
	"github.com/example/ec-checkout/internal/settlement"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const defaultGroup = "order-settler"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[Settler] invalid configuration: %v", err)
	}
	group := cfg.Kafka.GroupID
	if group == "" {
		group = defaultGroup
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("[Settler] %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("settler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	m := metrics.New()
	pg := store.NewPostgresStore(db, logger.Named("store"), store.WithQueryObserver(m.ObserveQuery))

	processor, closers, err := app.NewProcessor(ctx, cfg, pg, m, logger)
	if err != nil {
		logger.Fatal("failed to build settlement pipeline", zap.Error(err))
	}
	defer closers.Close()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic, group, logger.Named("kafka"),
		kafka.WithRetryPolicy(settlement.IsRetryable))
	defer consumer.Close()

	logger.Info("consuming settlement events",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.SettlementTopic),
		zap.String("group", group))

	err = consumer.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		ev, err := settlement.DecodeEvent(value)
		if err != nil {
			logger.Error("undecodable settlement event, skipping", zap.ByteString("key", key), zap.Error(err))
			return err
		}
		_, err = processor.Settle(ctx, ev)
		return err
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
