package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// MessageWriter is implemented by kafka.Producer and dynamo.EventWriter
type MessageWriter interface {
	Write(ctx context.Context, key string, value []byte) error
}

// BreakerPublisher publishes envelopes through a circuit breaker so that an
// unreachable broker fails fast instead of holding requests
type BreakerPublisher struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewBreakerPublisher names the breaker after the transport, e.g. "kafka"
func NewBreakerPublisher(name string, writer MessageWriter, logger *zap.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:    name + "-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerPublisher{
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

func (p *BreakerPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	env, err := NewEnvelope(eventType, key, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	_, err = ExecuteWithBreaker(p.breaker, func() (struct{}, error) {
		// detached from the request: the caller already committed
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return struct{}{}, p.writer.Write(writeCtx, key, value)
	})
	if err != nil {
		return err
	}

	p.logger.Debug("event published", zap.String("type", eventType), zap.String("key", key), zap.String("id", env.ID))
	return nil
}

// ExecuteWithBreaker runs fn through cb and keeps its result type
func ExecuteWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		return *new(T), err
	}

	return res.(T), nil
}
