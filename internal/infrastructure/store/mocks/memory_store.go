package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/infrastructure/store/memory"
	"github.com/greenify/plant-store/internal/model"
)

// MemoryStore wraps memory.Store with seeding helpers and fault injection
// on write operations
type MemoryStore struct {
	*memory.Store

	mu       sync.Mutex
	failures map[string]error

	// TxCalls counts transactions started
	TxCalls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Store:    memory.NewStore(),
		failures: make(map[string]error),
	}
}

// FailOn makes the next call of op (e.g. "Carts.Delete") return err
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *MemoryStore) injected(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[op]; ok {
		delete(m.failures, op)
		return err
	}
	return nil
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	m.mu.Lock()
	m.TxCalls++
	m.mu.Unlock()

	return m.Store.WithTx(ctx, func(tx store.Repositories) error {
		return fn(faultyRepositories{next: tx, f: m})
	})
}

func (m *MemoryStore) Plants() store.PlantRepository   { return m.wrap(m.Store).Plants() }
func (m *MemoryStore) Carts() store.CartRepository     { return m.wrap(m.Store).Carts() }
func (m *MemoryStore) Orders() store.OrderRepository   { return m.wrap(m.Store).Orders() }
func (m *MemoryStore) Ratings() store.RatingRepository { return m.wrap(m.Store).Ratings() }
func (m *MemoryStore) Users() store.UserRepository     { return m.wrap(m.Store).Users() }

func (m *MemoryStore) wrap(next store.Repositories) faultyRepositories {
	return faultyRepositories{next: next, f: m}
}

// Seeding

// SeedPlant stores a plant with a sequence code and returns it
func (m *MemoryStore) SeedPlant(p model.Plant) *model.Plant {
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if err := m.Store.Plants().Create(context.Background(), &p); err != nil {
		panic(err)
	}
	return &p
}

func (m *MemoryStore) SeedOrder(o model.Order) {
	if err := m.Store.Orders().Create(context.Background(), &o); err != nil {
		panic(err)
	}
}

func (m *MemoryStore) SeedCart(c model.Cart) {
	if err := m.Store.Carts().Save(context.Background(), &c); err != nil {
		panic(err)
	}
}

// Fault injection

type faultyRepositories struct {
	next store.Repositories
	f    *MemoryStore
}

func (r faultyRepositories) Plants() store.PlantRepository {
	return faultyPlants{PlantRepository: r.next.Plants(), f: r.f}
}
func (r faultyRepositories) Carts() store.CartRepository {
	return faultyCarts{CartRepository: r.next.Carts(), f: r.f}
}
func (r faultyRepositories) Orders() store.OrderRepository {
	return faultyOrders{OrderRepository: r.next.Orders(), f: r.f}
}
func (r faultyRepositories) Ratings() store.RatingRepository {
	return faultyRatings{RatingRepository: r.next.Ratings(), f: r.f}
}
func (r faultyRepositories) Users() store.UserRepository {
	return faultyUsers{UserRepository: r.next.Users(), f: r.f}
}

type faultyPlants struct {
	store.PlantRepository
	f *MemoryStore
}

func (p faultyPlants) Create(ctx context.Context, plant *model.Plant) error {
	if err := p.f.injected("Plants.Create"); err != nil {
		return err
	}
	return p.PlantRepository.Create(ctx, plant)
}

func (p faultyPlants) Update(ctx context.Context, plant *model.Plant) error {
	if err := p.f.injected("Plants.Update"); err != nil {
		return err
	}
	return p.PlantRepository.Update(ctx, plant)
}

func (p faultyPlants) SetActive(ctx context.Context, id string, active bool) error {
	if err := p.f.injected("Plants.SetActive"); err != nil {
		return err
	}
	return p.PlantRepository.SetActive(ctx, id, active)
}

func (p faultyPlants) DecrementStock(ctx context.Context, id string, quantity int) error {
	if err := p.f.injected("Plants.DecrementStock"); err != nil {
		return err
	}
	return p.PlantRepository.DecrementStock(ctx, id, quantity)
}

func (p faultyPlants) IncrementStock(ctx context.Context, id string, quantity int) error {
	if err := p.f.injected("Plants.IncrementStock"); err != nil {
		return err
	}
	return p.PlantRepository.IncrementStock(ctx, id, quantity)
}

func (p faultyPlants) SetRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	if err := p.f.injected("Plants.SetRating"); err != nil {
		return err
	}
	return p.PlantRepository.SetRating(ctx, id, rating, reviewCount)
}

type faultyCarts struct {
	store.CartRepository
	f *MemoryStore
}

func (c faultyCarts) Save(ctx context.Context, cart *model.Cart) error {
	if err := c.f.injected("Carts.Save"); err != nil {
		return err
	}
	return c.CartRepository.Save(ctx, cart)
}

func (c faultyCarts) Delete(ctx context.Context, userID string) error {
	if err := c.f.injected("Carts.Delete"); err != nil {
		return err
	}
	return c.CartRepository.Delete(ctx, userID)
}

type faultyOrders struct {
	store.OrderRepository
	f *MemoryStore
}

func (o faultyOrders) Create(ctx context.Context, order *model.Order) error {
	if err := o.f.injected("Orders.Create"); err != nil {
		return err
	}
	return o.OrderRepository.Create(ctx, order)
}

func (o faultyOrders) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	if err := o.f.injected("Orders.TransitionStatus"); err != nil {
		return err
	}
	return o.OrderRepository.TransitionStatus(ctx, id, from, to, at)
}

func (o faultyOrders) MarkItemRated(ctx context.Context, orderID, plantID string) error {
	if err := o.f.injected("Orders.MarkItemRated"); err != nil {
		return err
	}
	return o.OrderRepository.MarkItemRated(ctx, orderID, plantID)
}

type faultyRatings struct {
	store.RatingRepository
	f *MemoryStore
}

func (r faultyRatings) Create(ctx context.Context, rating *model.Rating) error {
	if err := r.f.injected("Ratings.Create"); err != nil {
		return err
	}
	return r.RatingRepository.Create(ctx, rating)
}

func (r faultyRatings) UpdateScore(ctx context.Context, id string, score int, at time.Time) error {
	if err := r.f.injected("Ratings.UpdateScore"); err != nil {
		return err
	}
	return r.RatingRepository.UpdateScore(ctx, id, score, at)
}

type faultyUsers struct {
	store.UserRepository
	f *MemoryStore
}

func (u faultyUsers) Create(ctx context.Context, user *model.User) error {
	if err := u.f.injected("Users.Create"); err != nil {
		return err
	}
	return u.UserRepository.Create(ctx, user)
}
