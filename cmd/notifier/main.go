package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/notification"
	"github.com/example/ec-checkout/internal/observability"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultGroup    = "email-notifier" // Dedicated consumer group for email notifications
	maxSendAttempts = 10
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("[Notifier] invalid configuration: %v", err)
	}
	group := cfg.Kafka.GroupID
	if group == "" {
		group = defaultGroup
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("[Notifier] %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("notifier")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, logger.Named("email"))
	handler := notification.NewHandler(emailSvc, logger)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, group, logger.Named("kafka"),
		kafka.WithRetryPolicy(notification.IsRetryable),
		kafka.WithMaxAttempts(maxSendAttempts))
	defer consumer.Close()

	logger.Info("consuming notification requests",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.NotificationTopic),
		zap.String("group", group),
		zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port))

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
