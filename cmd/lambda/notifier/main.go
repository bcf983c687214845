package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kinesis"
	"github.com/example/ec-checkout/internal/notification"
	"github.com/example/ec-checkout/internal/observability"
	"go.uber.org/zap"
)

var (
	notificationHandler *notification.Handler
	logger              *zap.Logger
)

func init() {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[Lambda Notifier] invalid configuration: %v", err)
	}

	logger, err = observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("[Lambda Notifier] %v", err)
	}
	logger = logger.Named("lambda-notifier")

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, logger.Named("email"))
	notificationHandler = notification.NewHandler(emailSvc, logger)

	logger.Info("initialized", zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port))
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.ForwardBatch(ctx, kinesisEvent, notificationHandler.HandleEvent, notification.IsRetryable, logger), nil
}

func main() {
	lambda.Start(handler)
}
