package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"github.com/greenify/plant-store/internal/validation"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidAddress    = errors.New("invalid delivery address")
	ErrForbidden         = errors.New("not allowed to access this order")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// CannotCancelError is returned when an order has left the pending state
type CannotCancelError struct {
	Status model.OrderStatus
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("cannot cancel order with status %s", e.Status)
}

// validTransitions defines allowed state transitions
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:    {model.StatusProcessing, model.StatusCancelled},
	model.StatusProcessing: {model.StatusShipped},
	model.StatusShipped:    {model.StatusDelivered},
	model.StatusDelivered:  {}, // terminal state
	model.StatusCancelled:  {}, // terminal state
}

// CanTransition checks if an order in status from may move to status to
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Requester is the authenticated caller of an order operation
type Requester struct {
	UserID string
	Admin  bool
}

func (r Requester) canSee(o *model.Order) bool {
	return r.Admin || o.UserID == r.UserID
}

type Service struct {
	store       store.Store
	publisher   events.Publisher
	invalidator catalog.Invalidator
	logger      *zap.Logger
}

func NewService(s store.Store, publisher events.Publisher, invalidator catalog.Invalidator, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if invalidator == nil {
		invalidator = catalog.NopInvalidator{}
	}
	return &Service{
		store:       s,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Place turns the user's cart into a pending COD order. Stock decrement,
// order creation and cart removal commit together or not at all.
func (s *Service) Place(ctx context.Context, userID string, address model.Address) (*model.Order, error) {
	if err := validation.Struct(address); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	var placed *model.Order
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		// the lock makes a second Place on the same cart wait, then see it gone
		cart, err := tx.Carts().GetForUpdate(ctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		// validate every line before touching anything
		items := make([]model.OrderItem, 0, len(cart.Items))
		total := 0
		for _, line := range cart.Items {
			p, err := tx.Plants().Get(ctx, line.PlantID)
			if errors.Is(err, store.ErrNotFound) {
				return &catalog.InsufficientStockError{PlantName: line.PlantID}
			}
			if err != nil {
				return err
			}
			if !p.IsActive || p.Stock < line.Quantity {
				return &catalog.InsufficientStockError{PlantName: p.Name}
			}
			items = append(items, model.OrderItem{
				PlantID:  p.ID,
				Name:     p.Name,
				Quantity: line.Quantity,
				Price:    p.Price,
			})
			total += p.Price * line.Quantity
		}

		now := time.Now().UTC()
		o := &model.Order{
			ID:            uuid.New().String(),
			UserID:        userID,
			Items:         items,
			Address:       address,
			Status:        model.StatusPending,
			PaymentMethod: model.PaymentCOD,
			Total:         total,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if u, err := tx.Users().Get(ctx, userID); err == nil {
			o.CustomerName = u.Name
			o.CustomerEmail = u.Email
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for _, item := range items {
			// conditional decrement: a concurrent order may have won the stock
			if err := tx.Plants().DecrementStock(ctx, item.PlantID, item.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return &catalog.InsufficientStockError{PlantName: item.Name}
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
		}
		if err := tx.Carts().Delete(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrEmptyCart
			}
			return fmt.Errorf("delete cart: %w", err)
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.String("user_id", userID),
		zap.Int("total", placed.Total))

	s.invalidator.Invalidate(ctx, plantIDs(placed)...)
	s.publish(ctx, events.TypeOrderPlaced, placed.ID, events.OrderPlaced{
		OrderID:       placed.ID,
		UserID:        placed.UserID,
		CustomerName:  placed.CustomerName,
		CustomerEmail: placed.CustomerEmail,
		Items:         placed.Items,
		Total:         placed.Total,
		PlacedAt:      placed.CreatedAt,
	})
	return placed, nil
}

// Cancel lets the owner cancel a pending order and puts its stock back
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (*model.Order, error) {
	var cancelled *model.Order
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		o, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		if o.Status != model.StatusPending {
			return &CannotCancelError{Status: o.Status}
		}
		if err := cancelAndRestock(ctx, tx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	s.afterCancel(ctx, cancelled)
	return cancelled, nil
}

// UpdateStatus is the admin path. Transitions are monotonic; cancelling a
// pending order restores stock exactly like Cancel.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var (
		updated *model.Order
		from    model.OrderStatus
	)
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		o, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(o.Status, status) {
			return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, status)
		}

		if status == model.StatusCancelled {
			if err := cancelAndRestock(ctx, tx, o); err != nil {
				return err
			}
		} else {
			now := time.Now().UTC()
			if err := transition(ctx, tx, o, status, now); err != nil {
				return err
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	if status == model.StatusCancelled {
		s.afterCancel(ctx, updated)
	}
	s.publish(ctx, events.TypeOrderStatusChanged, orderID, events.OrderStatusChanged{
		OrderID: orderID,
		From:    from,
		To:      status,
	})
	return updated, nil
}

// Get returns the order to its owner or an admin
func (s *Service) Get(ctx context.Context, orderID string, requester Requester) (*model.Order, error) {
	o, err := getOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.canSee(o) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.store.Orders().ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context, filter model.OrderFilter) ([]*model.Order, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	filter.Limit = max(filter.Limit, 0)
	filter.Offset = max(filter.Offset, 0)
	return s.store.Orders().List(ctx, filter)
}

func (s *Service) Stats(ctx context.Context) (*model.OrderStats, error) {
	return s.store.Orders().Stats(ctx)
}

func (s *Service) afterCancel(ctx context.Context, o *model.Order) {
	s.invalidator.Invalidate(ctx, plantIDs(o)...)
	s.publish(ctx, events.TypeOrderCancelled, o.ID, events.OrderCancelled{
		OrderID:     o.ID,
		UserID:      o.UserID,
		CancelledAt: o.UpdatedAt,
	})
}

// publish is best effort: the order is already committed
func (s *Service) publish(ctx context.Context, eventType, key string, data any) {
	if err := s.publisher.Publish(ctx, eventType, key, data); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}

func getOrder(ctx context.Context, repos store.Repositories, orderID string) (*model.Order, error) {
	o, err := repos.Orders().Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// transition moves o to status with a compare-and-swap on its current status
func transition(ctx context.Context, tx store.Repositories, o *model.Order, status model.OrderStatus, at time.Time) error {
	err := tx.Orders().TransitionStatus(ctx, o.ID, o.Status, status, at)
	if errors.Is(err, store.ErrConflict) {
		// someone else moved the order after we read it
		current, getErr := getOrder(ctx, tx, o.ID)
		if getErr != nil {
			return getErr
		}
		if status == model.StatusCancelled {
			return &CannotCancelError{Status: current.Status}
		}
		return fmt.Errorf("%w: order is now %s", ErrInvalidTransition, current.Status)
	}
	if err != nil {
		return err
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

func cancelAndRestock(ctx context.Context, tx store.Repositories, o *model.Order) error {
	if err := transition(ctx, tx, o, model.StatusCancelled, time.Now().UTC()); err != nil {
		return err
	}
	for _, item := range o.Items {
		if err := tx.Plants().IncrementStock(ctx, item.PlantID, item.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", item.PlantID, err)
		}
	}
	return nil
}

func plantIDs(o *model.Order) []string {
	ids := make([]string, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.PlantID
	}
	return ids
}
