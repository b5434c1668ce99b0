package store

import (
	"context"
	"time"

	"github.com/greenify/plant-store/internal/model"
)

// PlantRepository persists catalog entries
type PlantRepository interface {
	// Create stores a new plant and assigns its sequence code
	Create(ctx context.Context, p *model.Plant) error
	Get(ctx context.Context, id string) (*model.Plant, error)
	List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error)
	Update(ctx context.Context, p *model.Plant) error
	SetActive(ctx context.Context, id string, active bool) error

	// DecrementStock subtracts quantity only when the plant is active and has
	// at least quantity units left, otherwise it returns ErrInsufficientStock
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error
	SetRating(ctx context.Context, id string, rating float64, reviewCount int) error
}

// CartRepository persists one cart per user
type CartRepository interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)

	// GetForUpdate loads the cart and locks it until the transaction ends.
	// A user without a cart gets an empty one.
	GetForUpdate(ctx context.Context, userID string) (*model.Cart, error)
	Save(ctx context.Context, c *model.Cart) error

	// Delete returns ErrNotFound when the user has no cart
	Delete(ctx context.Context, userID string) error
}

// OrderRepository persists orders. Orders are never deleted.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter) ([]*model.Order, int, error)

	// TransitionStatus moves the order from one status to another and
	// returns ErrConflict if the order is no longer in status from
	TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error
	MarkItemRated(ctx context.Context, orderID, plantID string) error
	Stats(ctx context.Context) (*model.OrderStats, error)
}

// RatingRepository persists ratings, unique per (user, plant, order)
type RatingRepository interface {
	Find(ctx context.Context, userID, plantID, orderID string) (*model.Rating, error)
	Create(ctx context.Context, r *model.Rating) error
	UpdateScore(ctx context.Context, id string, score int, at time.Time) error
	ListByPlant(ctx context.Context, plantID string) ([]*model.Rating, error)

	// Aggregate returns the mean score and number of ratings of a plant
	Aggregate(ctx context.Context, plantID string) (float64, int, error)
}

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories interface {
	Plants() PlantRepository
	Carts() CartRepository
	Orders() OrderRepository
	Ratings() RatingRepository
	Users() UserRepository
}

// Store is the persistence boundary of the application
type Store interface {
	Repositories

	// WithTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
}
