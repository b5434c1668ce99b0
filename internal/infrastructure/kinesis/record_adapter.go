package kinesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	pubevents "github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/infrastructure/dynamo"
	"go.uber.org/zap"
)

// errSkip marks stream records that carry no new event (MODIFY, REMOVE)
var errSkip = errors.New("not an insert")

// MessageHandler has the same shape as the Kafka consumer callback so the
// same handler serves both transports
type MessageHandler func(ctx context.Context, key, value []byte) error

// ConvertFromKinesisRecord decodes the event carried in a Kinesis record.
// Records come either as a plain envelope or, when the stream is fed by the
// DynamoDB event table, in DynamoDB Streams format. The latter yields nil for
// anything but INSERT. The partition key is used when the envelope has none.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*pubevents.Envelope, error) {
	var probe struct {
		EventName string          `json:"eventName"`
		Change    json.RawMessage `json:"dynamodb"`
	}
	if err := json.Unmarshal(record.Kinesis.Data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", pubevents.ErrMalformedEvent, err)
	}

	var (
		env *pubevents.Envelope
		err error
	)
	if probe.Change != nil {
		env, err = convertDynamoDBRecord(record.Kinesis.Data)
	} else {
		env, err = pubevents.Decode(record.Kinesis.Data)
	}
	if errors.Is(err, errSkip) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if env.Key == "" {
		env.Key = record.Kinesis.PartitionKey
	}
	return env, nil
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB Stream record to an envelope.
// This is used when directly consuming from DynamoDB Streams (e.g., in tests).
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*pubevents.Envelope, error) {
	if record.EventName != "INSERT" {
		return nil, nil
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

func convertDynamoDBRecord(data []byte) (*pubevents.Envelope, error) {
	var record events.DynamoDBEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: dynamodb record: %v", pubevents.ErrMalformedEvent, err)
	}
	if record.EventName != "INSERT" {
		return nil, errSkip
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

// convertDynamoDBImage reads an item written by dynamo.EventWriter
func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*pubevents.Envelope, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: dynamodb image is nil", pubevents.ErrMalformedEvent)
	}

	env := &pubevents.Envelope{}
	if v, ok := image[dynamo.AttrID]; ok {
		env.ID = v.String()
	}
	if v, ok := image[dynamo.AttrType]; ok {
		env.Type = v.String()
	}
	if v, ok := image[dynamo.AttrKey]; ok {
		env.Key = v.String()
	}
	if v, ok := image[dynamo.AttrData]; ok {
		env.Data = json.RawMessage(v.String())
	}
	if v, ok := image[dynamo.AttrCreatedAt]; ok {
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return nil, fmt.Errorf("%w: created_at: %v", pubevents.ErrMalformedEvent, err)
		}
		env.Timestamp = t
	}

	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: missing required fields: id=%q, event_type=%q",
			pubevents.ErrMalformedEvent, env.ID, env.Type)
	}
	return env, nil
}

// BatchConvertFromKinesisEvent converts all records of a Kinesis event.
// Returns successfully converted envelopes and any errors encountered.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*pubevents.Envelope, []error) {
	var envelopes []*pubevents.Envelope
	var errs []error

	for _, record := range kinesisEvent.Records {
		env, err := ConvertFromKinesisRecord(record)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", record.EventID, err))
			continue
		}
		if env != nil {
			envelopes = append(envelopes, env)
		}
	}

	return envelopes, errs
}

// ProcessBatch hands every record to handler and reports the failed ones as
// batch item failures so that Lambda retries only those
func ProcessBatch(ctx context.Context, kinesisEvent events.KinesisEvent, handler MessageHandler, logger *zap.Logger) events.KinesisEventResponse {
	var failures []events.KinesisBatchItemFailure

	for _, record := range kinesisEvent.Records {
		env, err := ConvertFromKinesisRecord(record)
		if err != nil {
			// redelivery cannot fix a malformed payload
			logger.Warn("dropping malformed record", zap.String("event_id", record.EventID), zap.Error(err))
			continue
		}
		if env == nil {
			continue
		}

		value, err := json.Marshal(env)
		if err != nil {
			logger.Warn("dropping unencodable record", zap.String("event_id", record.EventID), zap.Error(err))
			continue
		}

		if err := handler(ctx, []byte(env.Key), value); err != nil {
			logger.Error("failed to process record",
				zap.String("event_id", env.ID),
				zap.String("type", env.Type),
				zap.Error(err))
			failures = append(failures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
		}
	}

	logger.Info("processed kinesis batch",
		zap.Int("records", len(kinesisEvent.Records)),
		zap.Int("failed", len(failures)))

	return events.KinesisEventResponse{BatchItemFailures: failures}
}
