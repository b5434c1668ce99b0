package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/greenify/plant-store/internal/events"
)

// Attribute names of the event table. The Kinesis adapter reads the same names
// back from the table's stream.
const (
	AttrID        = "id"
	AttrType      = "event_type"
	AttrKey       = "event_key"
	AttrData      = "data"
	AttrCreatedAt = "created_at"
)

// PutItemAPI is the part of *dynamodb.Client the writer needs
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// EventWriter appends event envelopes to a DynamoDB table. The table's
// Kinesis stream delivers them to the Lambda consumers.
type EventWriter struct {
	client    PutItemAPI
	tableName string
}

// eventItem represents the DynamoDB item structure
type eventItem struct {
	ID        string `dynamodbav:"id"`
	Type      string `dynamodbav:"event_type"`
	Key       string `dynamodbav:"event_key"`
	Data      string `dynamodbav:"data"`
	CreatedAt string `dynamodbav:"created_at"`
}

func NewEventWriter(client PutItemAPI, tableName string) *EventWriter {
	return &EventWriter{client: client, tableName: tableName}
}

// Write stores one encoded envelope. Rewriting the same event id is rejected
// so that a retried publish never produces a second stream record.
func (w *EventWriter) Write(ctx context.Context, key string, value []byte) error {
	env, err := events.Decode(value)
	if err != nil {
		return err
	}
	if env.Key == "" {
		env.Key = key
	}

	av, err := attributevalue.MarshalMap(eventItem{
		ID:        env.ID,
		Type:      env.Type,
		Key:       env.Key,
		Data:      string(env.Data),
		CreatedAt: env.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = w.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(w.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("put event %s: %w", env.ID, err)
	}
	return nil
}
