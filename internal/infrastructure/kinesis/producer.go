package kinesis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awskinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"go.uber.org/zap"
)

// PutRecordAPI is the subset of the Kinesis client the producer uses.
type PutRecordAPI interface {
	PutRecord(ctx context.Context, params *awskinesis.PutRecordInput, optFns ...func(*awskinesis.Options)) (*awskinesis.PutRecordOutput, error)
}

// Producer writes JSON records to one stream. It is the Kinesis counterpart
// of the Kafka producer and carries the same envelopes.
type Producer struct {
	client PutRecordAPI
	stream string
	logger *zap.Logger
}

func NewProducer(client PutRecordAPI, stream string, logger *zap.Logger) *Producer {
	return &Producer{client: client, stream: stream, logger: logger}
}

// Publish writes value as JSON with key as the partition key, so one
// session's (or one order's) records stay on one shard in order.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	out, err := p.client.PutRecord(ctx, &awskinesis.PutRecordInput{
		StreamName:   aws.String(p.stream),
		PartitionKey: aws.String(key),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("put record to %s: %w", p.stream, err)
	}

	p.logger.Debug("record published",
		zap.String("stream", p.stream),
		zap.String("partition_key", key),
		zap.String("shard_id", aws.ToString(out.ShardId)),
		zap.String("sequence_number", aws.ToString(out.SequenceNumber)))
	return nil
}
