package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-checkout/internal/app"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/infrastructure/kinesis"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/observability"
	"github.com/example/ec-checkout/internal/settlement"
	"go.uber.org/zap"
)

var (
	processor *settlement.Processor
	logger    *zap.Logger
)

func init() {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[Lambda Settler] invalid configuration: %v", err)
	}

	logger, err = observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("[Lambda Settler] %v", err)
	}
	logger = logger.Named("lambda-settler")

	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}

	m := metrics.New()
	pg := store.NewPostgresStore(db, logger.Named("store"), store.WithQueryObserver(m.ObserveQuery))

	// Clients live as long as the execution environment.
	processor, _, err = app.NewProcessor(context.Background(), cfg, pg, m, logger)
	if err != nil {
		logger.Fatal("failed to build settlement pipeline", zap.Error(err))
	}

	logger.Info("initialized")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.HandleBatch(ctx, processor, kinesisEvent, logger), nil
}

func main() {
	lambda.Start(handler)
}
