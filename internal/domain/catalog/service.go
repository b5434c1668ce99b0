package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"github.com/greenify/plant-store/internal/validation"
	"go.uber.org/zap"
)

var (
	ErrPlantNotFound = errors.New("plant not found")
	ErrInvalidPlant  = errors.New("invalid plant")
)

// Catalog is the read/write surface used by the HTTP layer
type Catalog interface {
	Create(ctx context.Context, in PlantInput) (*model.Plant, error)
	Update(ctx context.Context, id string, in PlantInput) (*model.Plant, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Plant, error)
	List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error)
}

// Invalidator drops cached views of plants whose stock or rating changed
type Invalidator interface {
	Invalidate(ctx context.Context, plantIDs ...string)
}

// NopInvalidator is used when no cache is configured
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context, ...string) {}

// PlantInput is the admin-editable part of a plant
type PlantInput struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description" validate:"max=5000"`
	Price         int      `json:"price" validate:"gt=0"`
	OriginalPrice *int     `json:"originalPrice" validate:"omitempty,gt=0"`
	Categories    []string `json:"categories" validate:"dive,required"`
	Stock         int      `json:"stock" validate:"gte=0"`
	ImageURL      string   `json:"image" validate:"omitempty,max=2048"`
}

func (in PlantInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlant, err)
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < in.Price {
		return fmt.Errorf("%w: original price must not be below price", ErrInvalidPlant)
	}
	return nil
}

type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logger}
}

func (s *Service) Create(ctx context.Context, in PlantInput) (*model.Plant, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Plant{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Categories:    normalizeCategories(in.Categories),
		Stock:         in.Stock,
		Rating:        model.DefaultRating,
		ReviewCount:   0,
		IsActive:      true,
		ImageURL:      in.ImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Plants().Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("plant created", zap.String("plant_id", p.ID), zap.String("code", p.Code))
	return p, nil
}

// Update replaces the editable fields. Rating, review count and the
// active flag are owned by other flows and stay untouched.
func (s *Service) Update(ctx context.Context, id string, in PlantInput) (*model.Plant, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *model.Plant
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		p, err := tx.Plants().Get(ctx, id)
		if err != nil {
			return mapNotFound(err)
		}
		p.Name = strings.TrimSpace(in.Name)
		p.Description = in.Description
		p.Price = in.Price
		p.OriginalPrice = in.OriginalPrice
		p.Categories = normalizeCategories(in.Categories)
		p.Stock = in.Stock
		p.ImageURL = in.ImageURL
		p.UpdatedAt = time.Now().UTC()
		if err := tx.Plants().Update(ctx, p); err != nil {
			return mapNotFound(err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete hides the plant from the storefront. Orders keep their snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Plants().SetActive(ctx, id, false); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("plant deactivated", zap.String("plant_id", id))
	return nil
}

// Get returns an active plant; inactive ones are reported as not found
func (s *Service) Get(ctx context.Context, id string) (*model.Plant, error) {
	p, err := s.store.Plants().Get(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !p.IsActive {
		return nil, ErrPlantNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.store.Plants().List(ctx, filter)
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrPlantNotFound
	}
	return err
}

func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// InsufficientStockError names the plant whose stock cannot cover a request
type InsufficientStockError struct {
	PlantName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s", e.PlantName)
}

func (e *InsufficientStockError) Unwrap() error {
	return store.ErrInsufficientStock
}
