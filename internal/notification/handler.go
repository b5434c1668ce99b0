package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/greenify/plant-store/internal/email"
	"github.com/greenify/plant-store/internal/events"
	"go.uber.org/zap"
)

// Mailer is implemented by email.Service
type Mailer interface {
	SendOrderConfirmation(to string, c email.OrderConfirmation) error
}

// Handler sends customer emails for order events
type Handler struct {
	mailer Mailer
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, logger *zap.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		logger: logger,
	}
}

// HandleMessage processes one event envelope from Kafka or Kinesis
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	env, err := events.Decode(value)
	if err != nil {
		return err
	}

	// Only OrderPlaced triggers an email
	if env.Type != events.TypeOrderPlaced {
		return nil
	}

	var placed events.OrderPlaced
	if err := json.Unmarshal(env.Data, &placed); err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformedEvent, err)
	}
	return h.handleOrderPlaced(placed)
}

func (h *Handler) handleOrderPlaced(e events.OrderPlaced) error {
	if e.CustomerEmail == "" {
		h.logger.Warn("order has no customer email, skipping confirmation", zap.String("order_id", e.OrderID))
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			PlantID:  item.PlantID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
	}

	err := h.mailer.SendOrderConfirmation(e.CustomerEmail, email.OrderConfirmation{
		OrderID:      e.OrderID,
		CustomerName: e.CustomerName,
		Items:        items,
		Total:        e.Total,
	})
	if err != nil {
		return err
	}

	h.logger.Info("order confirmation sent",
		zap.String("order_id", e.OrderID),
		zap.String("user_id", e.UserID))
	return nil
}
