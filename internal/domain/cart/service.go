package cart

import (
	"context"
	"errors"
	"time"

	"github.com/greenify/plant-store/internal/domain/catalog"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("item not in cart")
)

type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// Get returns the user's cart with live plant data. A user without a cart
// gets an empty one.
func (s *Service) Get(ctx context.Context, userID string) (*model.Cart, error) {
	c, err := loadCart(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, c)
}

// AddItem puts quantity units of a plant into the cart. Adding a plant that
// is already there increases its quantity.
func (s *Service) AddItem(ctx context.Context, userID, plantID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(tx store.Repositories, c *model.Cart) error {
		p, err := activePlant(ctx, tx, plantID)
		if err != nil {
			return err
		}
		want := quantity
		idx := c.IndexOf(plantID)
		if idx >= 0 {
			want += c.Items[idx].Quantity
		}
		if want > p.Stock {
			return &catalog.InsufficientStockError{PlantName: p.Name}
		}
		if idx >= 0 {
			c.Items[idx].Quantity = want
		} else {
			c.Items = append(c.Items, model.CartItem{PlantID: plantID, Quantity: want})
		}
		return nil
	})
}

// UpdateItem sets the quantity of a plant already in the cart
func (s *Service) UpdateItem(ctx context.Context, userID, plantID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(tx store.Repositories, c *model.Cart) error {
		idx := c.IndexOf(plantID)
		if idx < 0 {
			return ErrItemNotInCart
		}
		p, err := activePlant(ctx, tx, plantID)
		if err != nil {
			return err
		}
		if quantity > p.Stock {
			return &catalog.InsufficientStockError{PlantName: p.Name}
		}
		c.Items[idx].Quantity = quantity
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, plantID string) (*model.Cart, error) {
	return s.mutate(ctx, userID, func(_ store.Repositories, c *model.Cart) error {
		idx := c.IndexOf(plantID)
		if idx < 0 {
			return ErrItemNotInCart
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Carts().Delete(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// mutate applies fn to the stored cart inside one transaction
func (s *Service) mutate(ctx context.Context, userID string, fn func(tx store.Repositories, c *model.Cart) error) (*model.Cart, error) {
	var saved *model.Cart
	err := s.store.WithTx(ctx, func(tx store.Repositories) error {
		c, err := tx.Carts().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if c.Items == nil {
			c.Items = []model.CartItem{}
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		if err := tx.Carts().Save(ctx, c); err != nil {
			return err
		}
		saved = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, saved)
}

func (s *Service) annotate(ctx context.Context, c *model.Cart) (*model.Cart, error) {
	items := make([]model.CartItem, 0, len(c.Items))
	total := 0
	for _, item := range c.Items {
		p, err := s.store.Plants().Get(ctx, item.PlantID)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("cart references unknown plant", zap.String("user_id", c.UserID), zap.String("plant_id", item.PlantID))
			continue
		}
		if err != nil {
			return nil, err
		}
		item.Plant = p
		total += p.Price * item.Quantity
		items = append(items, item)
	}
	c.Items = items
	c.Total = total
	return c, nil
}

func loadCart(ctx context.Context, repos store.Repositories, userID string) (*model.Cart, error) {
	c, err := repos.Carts().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return c, nil
}

func activePlant(ctx context.Context, tx store.Repositories, plantID string) (*model.Plant, error) {
	p, err := tx.Plants().Get(ctx, plantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, catalog.ErrPlantNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, catalog.ErrPlantNotFound
	}
	return p, nil
}
