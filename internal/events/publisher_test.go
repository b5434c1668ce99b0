package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	calls    int
	messages map[string][]byte
}

func (w *fakeWriter) Write(ctx context.Context, key string, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	if w.messages == nil {
		w.messages = make(map[string][]byte)
	}
	w.messages[key] = value
	return nil
}

func TestBreakerPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	p := NewBreakerPublisher("kafka", writer, zap.NewNop())

	err := p.Publish(context.Background(), TypeOrderCancelled, "order-1", OrderCancelled{OrderID: "order-1", UserID: "u1"})
	require.NoError(t, err)

	raw, ok := writer.messages["order-1"]
	require.True(t, ok)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeOrderCancelled, env.Type)
	assert.Equal(t, "order-1", env.Key)
	assert.False(t, env.Timestamp.IsZero())

	var payload OrderCancelled
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "u1", payload.UserID)
}

func TestBreakerPublisher_CancelledRequestStillPublishes(t *testing.T) {
	writer := &fakeWriter{}
	p := NewBreakerPublisher("kafka", writer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Publish(ctx, TypeOrderPlaced, "order-2", OrderPlaced{OrderID: "order-2"}))
	assert.Contains(t, writer.messages, "order-2")
}

func TestBreakerPublisher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	brokerDown := errors.New("broker unreachable")
	writer := &fakeWriter{err: brokerDown}
	p := NewBreakerPublisher("kafka", writer, zap.NewNop())

	for i := 0; i < 3; i++ {
		err := p.Publish(context.Background(), TypeOrderPlaced, "k", OrderPlaced{})
		assert.ErrorIs(t, err, brokerDown)
	}

	err := p.Publish(context.Background(), TypeOrderPlaced, "k", OrderPlaced{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, writer.calls, "open breaker must not reach the writer")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"id":"1","type":"OrderPlaced","key":"k","data":{}}`, false},
		{"not json", `nope`, true},
		{"missing id", `{"type":"OrderPlaced"}`, true},
		{"missing type", `{"id":"1"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEvent)
				return
			}
			assert.NoError(t, err)
		})
	}
}
