// Package app assembles the settlement pipeline from configuration. Every
// binary that settles or notifies shares it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awskinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/kinesis"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/example/ec-checkout/internal/notification"
	"github.com/example/ec-checkout/internal/settlement"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Closers releases clients in reverse order of creation.
type Closers []func() error

func (c Closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// NewLedger builds the claim ledger selected by LEDGER_BACKEND.
func NewLedger(ctx context.Context, cfg config.Config) (settlement.Ledger, func() error, error) {
	switch cfg.Settlement.LedgerBackend {
	case config.LedgerDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Dynamo.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Dynamo.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Dynamo.Endpoint)
			}
		})
		return store.NewDynamoLedger(client, cfg.Dynamo.Table), nop, nil

	case config.LedgerRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return store.NewRedisLedger(client), client.Close, nil

	default:
		return settlement.NopLedger{}, nop, nil
	}
}

// NewKinesisProducer writes to one stream with credentials from the default
// AWS chain. KINESIS_ENDPOINT points it at a local emulator.
func NewKinesisProducer(ctx context.Context, cfg config.Config, stream string, logger *zap.Logger) (*kinesis.Producer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Kinesis.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awskinesis.NewFromConfig(awsCfg, func(o *awskinesis.Options) {
		if cfg.Kinesis.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Kinesis.Endpoint)
		}
	})
	return kinesis.NewProducer(client, stream, logger.Named("kinesis")), nil
}

// NewNotifier sends confirmations inline over SMTP, or hands them to the
// notifier service over Kafka or the notifier Lambda over Kinesis.
func NewNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (settlement.Notifier, func() error, error) {
	switch cfg.Notify.Mode {
	case config.NotifyKafka:
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
		return notification.NewPublisher(producer), producer.Close, nil

	case config.NotifyKinesis:
		producer, err := NewKinesisProducer(ctx, cfg, cfg.Kinesis.NotificationStream, logger)
		if err != nil {
			return nil, nil, err
		}
		return notification.NewPublisher(producer), nop, nil

	default:
		return email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, logger.Named("email")), nop, nil
	}
}

// NewProcessor wires a settlement processor over the Postgres store.
func NewProcessor(ctx context.Context, cfg config.Config, pg *store.PostgresStore, m *metrics.Metrics, logger *zap.Logger) (*settlement.Processor, Closers, error) {
	var closers Closers

	ledger, closeLedger, err := NewLedger(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeLedger)

	notifier, closeNotifier, err := NewNotifier(ctx, cfg, logger)
	if err != nil {
		_ = closers.Close()
		return nil, nil, err
	}
	closers = append(closers, closeNotifier)

	processor := settlement.NewProcessor(pg, pg, pg, notifier,
		settlement.Config{
			CallTimeout: cfg.Settlement.CallTimeout,
			ClaimTTL:    cfg.Settlement.LedgerTTL,
		},
		logger.Named("settlement"),
		settlement.WithLedger(ledger),
		settlement.WithOutcomeHook(func(o settlement.Outcome) {
			m.Settlements.WithLabelValues(string(o)).Inc()
		}),
	)

	logger.Info("settlement pipeline ready",
		zap.String("ledger", cfg.Settlement.LedgerBackend),
		zap.String("notify", cfg.Notify.Mode))
	return processor, closers, nil
}

func nop() error { return nil }
