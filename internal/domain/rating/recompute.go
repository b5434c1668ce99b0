package rating

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/events"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"go.uber.org/zap"
)

// Recomputer rebuilds a plant's rating and review count from all of its
// ratings. Running it twice gives the same result.
type Recomputer struct {
	store       store.Store
	invalidator catalog.Invalidator
	logger      *zap.Logger
}

func NewRecomputer(s store.Store, invalidator catalog.Invalidator, logger *zap.Logger) *Recomputer {
	if invalidator == nil {
		invalidator = catalog.NopInvalidator{}
	}
	return &Recomputer{store: s, invalidator: invalidator, logger: logger}
}

func (r *Recomputer) Recompute(ctx context.Context, plantID string) error {
	mean, count, err := r.store.Ratings().Aggregate(ctx, plantID)
	if err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	rating := model.DefaultRating
	if count > 0 {
		rating = RoundOneDecimal(mean)
	}
	if err := r.store.Plants().SetRating(ctx, plantID, rating, count); err != nil {
		return fmt.Errorf("set rating of %s: %w", plantID, err)
	}
	r.invalidator.Invalidate(ctx, plantID)

	r.logger.Debug("plant rating recomputed",
		zap.String("plant_id", plantID),
		zap.Float64("rating", rating),
		zap.Int("review_count", count))
	return nil
}

// RoundOneDecimal rounds half away from zero, e.g. 4.25 -> 4.3
func RoundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// HandleMessage consumes RatingSubmitted envelopes from the event stream.
// Other event types are skipped.
func (r *Recomputer) HandleMessage(ctx context.Context, key, value []byte) error {
	env, err := events.Decode(value)
	if err != nil {
		return err
	}
	if env.Type != events.TypeRatingSubmitted {
		return nil
	}

	var submitted events.RatingSubmitted
	if err := json.Unmarshal(env.Data, &submitted); err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformedEvent, err)
	}
	if submitted.PlantID == "" {
		return fmt.Errorf("%w: missing plant id", events.ErrMalformedEvent)
	}
	return r.Recompute(ctx, submitted.PlantID)
}

// EventScheduler hands recomputation to an out-of-process consumer by
// publishing RatingSubmitted events
type EventScheduler struct {
	publisher events.Publisher
}

func NewEventScheduler(publisher events.Publisher) *EventScheduler {
	return &EventScheduler{publisher: publisher}
}

func (s *EventScheduler) Schedule(ctx context.Context, submitted events.RatingSubmitted) error {
	return s.publisher.Publish(ctx, events.TypeRatingSubmitted, submitted.PlantID, submitted)
}
