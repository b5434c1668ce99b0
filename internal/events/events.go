package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenify/plant-store/internal/model"
)

const (
	TypeOrderPlaced        = "OrderPlaced"
	TypeOrderCancelled     = "OrderCancelled"
	TypeOrderStatusChanged = "OrderStatusChanged"
	TypeRatingSubmitted    = "RatingSubmitted"
)

var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the wire format of every published event
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope wraps data with a fresh id and timestamp
func NewEnvelope(eventType, key string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Key:       key,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode parses an envelope and checks its required fields
func Decode(value []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" || env.ID == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return &env, nil
}

// Publisher delivers domain events after their transaction committed
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data any) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

type OrderPlaced struct {
	OrderID       string            `json:"orderId"`
	UserID        string            `json:"userId"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	Items         []model.OrderItem `json:"items"`
	Total         int               `json:"total"`
	PlacedAt      time.Time         `json:"placedAt"`
}

type OrderCancelled struct {
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type OrderStatusChanged struct {
	OrderID string            `json:"orderId"`
	From    model.OrderStatus `json:"from"`
	To      model.OrderStatus `json:"to"`
}

type RatingSubmitted struct {
	RatingID string `json:"ratingId"`
	UserID   string `json:"userId"`
	PlantID  string `json:"plantId"`
	OrderID  string `json:"orderId"`
	Score    int    `json:"score"`
	IsUpdate bool   `json:"isUpdate"`
}
