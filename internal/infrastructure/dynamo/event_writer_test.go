package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/greenify/plant-store/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	inputs []*dynamodb.PutItemInput
	err    error
}

func (c *fakeClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.inputs = append(c.inputs, params)
	return &dynamodb.PutItemOutput{}, nil
}

func encoded(t *testing.T, key string) (*events.Envelope, []byte) {
	t.Helper()

	env, err := events.NewEnvelope(events.TypeOrderPlaced, key, events.OrderPlaced{OrderID: "order-1", Total: 300})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return env, raw
}

func TestEventWriter_Write(t *testing.T) {
	client := &fakeClient{}
	w := NewEventWriter(client, "greenify-events")
	env, raw := encoded(t, "order-1")

	require.NoError(t, w.Write(context.Background(), "order-1", raw))
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "greenify-events", *input.TableName)
	assert.Equal(t, "attribute_not_exists(id)", *input.ConditionExpression)

	var item eventItem
	require.NoError(t, attributevalue.UnmarshalMap(input.Item, &item))
	assert.Equal(t, env.ID, item.ID)
	assert.Equal(t, events.TypeOrderPlaced, item.Type)
	assert.Equal(t, "order-1", item.Key)
	assert.JSONEq(t, string(env.Data), item.Data)
	assert.NotEmpty(t, item.CreatedAt)
}

func TestEventWriter_UsesMessageKeyWhenEnvelopeHasNone(t *testing.T) {
	client := &fakeClient{}
	w := NewEventWriter(client, "t")
	_, raw := encoded(t, "")

	require.NoError(t, w.Write(context.Background(), "plant-7", raw))

	var item eventItem
	require.NoError(t, attributevalue.UnmarshalMap(client.inputs[0].Item, &item))
	assert.Equal(t, "plant-7", item.Key)
}

func TestEventWriter_Errors(t *testing.T) {
	t.Run("malformed envelope", func(t *testing.T) {
		client := &fakeClient{}
		err := NewEventWriter(client, "t").Write(context.Background(), "k", []byte("nope"))
		assert.ErrorIs(t, err, events.ErrMalformedEvent)
		assert.Empty(t, client.inputs)
	})

	t.Run("put failure", func(t *testing.T) {
		throttled := errors.New("throttled")
		_, raw := encoded(t, "k")
		err := NewEventWriter(&fakeClient{err: throttled}, "t").Write(context.Background(), "k", raw)
		assert.ErrorIs(t, err, throttled)
	})
}
