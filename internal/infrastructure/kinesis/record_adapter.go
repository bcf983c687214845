package kinesis

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-checkout/internal/settlement"
	"go.uber.org/zap"
)

// Settler is the settlement entry point a batch is fed into.
type Settler interface {
	Settle(ctx context.Context, ev settlement.Event) (settlement.Outcome, error)
}

// ConvertFromKinesisRecord decodes a record carrying a settlement event in the
// same JSON envelope used on the Kafka settlement topic.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (settlement.Event, error) {
	ev, err := settlement.DecodeEvent(record.Kinesis.Data)
	if err != nil {
		return settlement.Event{}, fmt.Errorf("record %s: %w", record.EventID, err)
	}
	return ev, nil
}

// HandleBatch settles records in shard order. Undecodable records and
// permanent settlement failures are logged and skipped; redelivery cannot fix
// them. The first retryable failure stops the batch and is reported so Lambda
// resumes the shard from that record.
func HandleBatch(ctx context.Context, settler Settler, batch events.KinesisEvent, logger *zap.Logger) events.KinesisEventResponse {
	logger.Info("received records", zap.Int("count", len(batch.Records)))

	var failures []events.KinesisBatchItemFailure
	processed := 0
	for _, record := range batch.Records {
		log := logger.With(zap.String("sequence_number", record.Kinesis.SequenceNumber))

		ev, err := ConvertFromKinesisRecord(record)
		if err != nil {
			log.Error("failed to decode record, skipping", zap.Error(err))
			processed++
			continue
		}

		outcome, err := settler.Settle(ctx, ev)
		if err != nil && settlement.IsRetryable(err) {
			log.Warn("retryable settlement failure, stopping batch",
				zap.String("session_id", ev.SessionID),
				zap.Error(err))
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			break
		}
		if err != nil {
			log.Error("settlement aborted",
				zap.String("session_id", ev.SessionID),
				zap.Error(err))
		}
		log.Debug("record settled",
			zap.String("session_id", ev.SessionID),
			zap.String("outcome", string(outcome)))
		processed++
	}

	logger.Info("processed records",
		zap.Int("processed", processed),
		zap.Int("total", len(batch.Records)))

	return events.KinesisEventResponse{BatchItemFailures: failures}
}

// ForwardBatch feeds raw record payloads to handler with the same ordering
// rules as HandleBatch: errors retryable reports as false are logged and
// skipped, the first retryable one stops the batch.
func ForwardBatch(ctx context.Context, batch events.KinesisEvent, handler func(ctx context.Context, key, value []byte) error, retryable func(error) bool, logger *zap.Logger) events.KinesisEventResponse {
	logger.Info("received records", zap.Int("count", len(batch.Records)))

	var failures []events.KinesisBatchItemFailure
	for _, record := range batch.Records {
		err := handler(ctx, []byte(record.Kinesis.PartitionKey), record.Kinesis.Data)
		if err == nil {
			continue
		}
		log := logger.With(zap.String("sequence_number", record.Kinesis.SequenceNumber), zap.Error(err))
		if retryable(err) {
			log.Warn("retryable failure, stopping batch")
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			break
		}
		log.Error("record failed permanently, skipping")
	}
	return events.KinesisEventResponse{BatchItemFailures: failures}
}
