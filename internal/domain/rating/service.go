package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"go.uber.org/zap"
)

var (
	ErrInvalidScore  = errors.New("rating must be an integer between 1 and 5")
	ErrInvalidID     = errors.New("invalid plant or order id")
	ErrNotEligible   = errors.New("order not found, not delivered or does not contain this plant")
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("not allowed to access this order")
)

const (
	MinScore = 1
	MaxScore = 5
)

// Scheduler queues recomputation of a plant's aggregate rating. It must
// not block on the recomputation itself.
type Scheduler interface {
	Schedule(ctx context.Context, submitted events.RatingSubmitted) error
}

type nopScheduler struct{}

func (nopScheduler) Schedule(context.Context, events.RatingSubmitted) error { return nil }

type Service struct {
	store     store.Store
	scheduler Scheduler
	logger    *zap.Logger
}

func NewService(s store.Store, scheduler Scheduler, logger *zap.Logger) *Service {
	if scheduler == nil {
		scheduler = nopScheduler{}
	}
	return &Service{store: s, scheduler: scheduler, logger: logger}
}

// Submit creates or updates the user's rating of a plant bought in a
// delivered order. isUpdate reports whether an existing rating was changed.
func (s *Service) Submit(ctx context.Context, userID, plantID, orderID string, score int) (*model.Rating, bool, error) {
	if score < MinScore || score > MaxScore {
		return nil, false, ErrInvalidScore
	}
	if !validID(plantID) || !validID(orderID) {
		return nil, false, ErrInvalidID
	}

	rating, isUpdate, err := s.upsert(ctx, userID, plantID, orderID, score)
	if errors.Is(err, store.ErrDuplicate) {
		// a concurrent submit created the row first; ours becomes an update
		rating, isUpdate, err = s.upsert(ctx, userID, plantID, orderID, score)
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("rating submitted",
		zap.String("rating_id", rating.ID),
		zap.String("plant_id", plantID),
		zap.Int("score", score),
		zap.Bool("is_update", isUpdate))

	submitted := events.RatingSubmitted{
		RatingID: rating.ID,
		UserID:   userID,
		PlantID:  plantID,
		OrderID:  orderID,
		Score:    score,
		IsUpdate: isUpdate,
	}
	if err := s.scheduler.Schedule(ctx, submitted); err != nil {
		// the aggregate converges on the next successful recompute
		s.logger.Warn("failed to schedule rating recompute", zap.String("plant_id", plantID), zap.Error(err))
	}
	return rating, isUpdate, nil
}

func (s *Service) upsert(ctx context.Context, userID, plantID, orderID string, score int) (*model.Rating, bool, error) {
	var (
		result   *model.Rating
		isUpdate bool
	)
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotEligible
		}
		if err != nil {
			return err
		}
		if o.UserID != userID || o.Status != model.StatusDelivered {
			return ErrNotEligible
		}
		if _, ok := o.Item(plantID); !ok {
			return ErrNotEligible
		}

		now := time.Now().UTC()
		existing, err := tx.Ratings().Find(ctx, userID, plantID, orderID)
		switch {
		case err == nil:
			if err := tx.Ratings().UpdateScore(ctx, existing.ID, score, now); err != nil {
				return fmt.Errorf("update rating: %w", err)
			}
			existing.Score = score
			existing.UpdatedAt = now
			result, isUpdate = existing, true
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		r := &model.Rating{
			ID:        uuid.New().String(),
			UserID:    userID,
			PlantID:   plantID,
			OrderID:   orderID,
			Score:     score,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Ratings().Create(ctx, r); err != nil {
			return err
		}
		if err := tx.Orders().MarkItemRated(ctx, orderID, plantID); err != nil {
			return fmt.Errorf("mark item rated: %w", err)
		}
		result, isUpdate = r, false
		return nil
	})
	return result, isUpdate, err
}

func (s *Service) ListForPlant(ctx context.Context, plantID string) ([]*model.Rating, error) {
	if !validID(plantID) {
		return nil, ErrInvalidID
	}
	return s.store.Ratings().ListByPlant(ctx, plantID)
}

// Eligible lists the unrated items of the user's order. Orders that are not
// delivered yet have nothing to rate.
func (s *Service) Eligible(ctx context.Context, orderID, userID string) ([]model.EligibleItem, model.OrderStatus, error) {
	if !validID(orderID) {
		return nil, "", ErrInvalidID
	}
	o, err := s.store.Orders().Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrOrderNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if o.UserID != userID {
		return nil, "", ErrForbidden
	}

	items := make([]model.EligibleItem, 0, len(o.Items))
	if o.Status != model.StatusDelivered {
		return items, o.Status, nil
	}
	for _, item := range o.Items {
		if item.Rated {
			continue
		}
		eligible := model.EligibleItem{
			PlantID:  item.PlantID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
		if p, err := s.store.Plants().Get(ctx, item.PlantID); err == nil {
			eligible.Name = p.Name
			eligible.Image = p.ImageURL
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, "", err
		}
		items = append(items, eligible)
	}
	return items, o.Status, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
