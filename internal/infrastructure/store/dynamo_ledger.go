package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	claimStatusClaimed   = "claimed"
	claimStatusCompleted = "completed"

	// completedRetention is how long a completed claim is kept before the
	// table's TTL attribute lets DynamoDB expire it.
	completedRetention = 7 * 24 * time.Hour
)

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoLedger keeps settlement claims in a DynamoDB table keyed by session_id.
type DynamoLedger struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
	newToken  func() string
}

// dynamoClaim represents the DynamoDB item structure
type dynamoClaim struct {
	SessionID string `dynamodbav:"session_id"`
	Status    string `dynamodbav:"status"`
	Token     string `dynamodbav:"token,omitempty"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func NewDynamoLedger(client DynamoAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

// Claim writes a claim unless an unexpired one exists or the session is
// already completed.
func (l *DynamoLedger) Claim(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	now := l.now()
	token := l.newToken()
	av, err := attributevalue.MarshalMap(dynamoClaim{
		SessionID: sessionID,
		Status:    claimStatusClaimed,
		Token:     token,
		ExpiresAt: now.Add(ttl).Unix(),
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal claim: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(session_id) OR (#status = :claimed AND expires_at < :now)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":claimed": &types.AttributeValueMemberS{Value: claimStatusClaimed},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", nil
		}
		return "", fmt.Errorf("failed to put claim: %w", err)
	}
	return token, nil
}

// Release drops the caller's in-progress claim so a redelivery can retry at
// once. Another worker's claim, or a completed session, is left in place.
func (l *DynamoLedger) Release(ctx context.Context, sessionID, token string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConditionExpression: aws.String("#status = :claimed AND #token = :token"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#token":  "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":claimed": &types.AttributeValueMemberS{Value: claimStatusClaimed},
			":token":   &types.AttributeValueMemberS{Value: token},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	return nil
}

// Complete marks the session settled; later claims are refused.
func (l *DynamoLedger) Complete(ctx context.Context, sessionID string) error {
	now := l.now()
	av, err := attributevalue.MarshalMap(dynamoClaim{
		SessionID: sessionID,
		Status:    claimStatusCompleted,
		ExpiresAt: now.Add(completedRetention).Unix(),
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal claim: %w", err)
	}

	// Overwrite whatever claim exists (no condition)
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to complete claim: %w", err)
	}
	return nil
}
