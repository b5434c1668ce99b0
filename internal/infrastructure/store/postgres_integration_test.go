//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/greenify/plant-store/internal/domain/cart"
	"github.com/greenify/plant-store/internal/domain/order"
	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type PostgresSuite struct {
	suite.Suite
	PgContainer *postgres.PostgresContainer
	DB          *sql.DB
	Store       *store.PostgresStore
	Ctx         context.Context
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.Ctx = context.Background()

	var err error
	s.PgContainer, err = postgres.Run(
		s.Ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.PgContainer.ConnectionString(s.Ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.DB, err = store.ConnectPostgres(connStr)
	s.Require().NoError(err)
	s.Require().NoError(store.Migrate(s.Ctx, s.DB))
	s.Store = store.NewPostgresStore(s.DB, zap.NewNop())
}

func (s *PostgresSuite) TearDownSuite() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
	if s.PgContainer != nil {
		if err := s.PgContainer.Terminate(s.Ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.DB.ExecContext(s.Ctx, `TRUNCATE plants, carts, orders, ratings, users`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) seedPlant(stock int, active bool) *model.Plant {
	now := time.Now().UTC()
	p := &model.Plant{
		ID:         uuid.NewString(),
		Name:       "Monstera",
		Price:      450,
		Categories: []string{"indoor"},
		Stock:      stock,
		Rating:     model.DefaultRating,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.Require().NoError(s.Store.Plants().Create(s.Ctx, p))
	return p
}

func (s *PostgresSuite) seedOrder(userID string, plant *model.Plant, status model.OrderStatus) *model.Order {
	now := time.Now().UTC()
	o := &model.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         []model.OrderItem{{PlantID: plant.ID, Name: plant.Name, Quantity: 1, Price: plant.Price}},
		Address:       model.Address{Street: "4 MG Road", City: "Bengaluru", State: "KA", Zip: "560001", Phone: "9800000000"},
		Status:        status,
		PaymentMethod: model.PaymentCOD,
		Total:         plant.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.Store.Orders().Create(s.Ctx, o))
	return o
}

func (s *PostgresSuite) stockOf(id string) int {
	p, err := s.Store.Plants().Get(s.Ctx, id)
	s.Require().NoError(err)
	return p.Stock
}

func testAddress() model.Address {
	return model.Address{Street: "4 MG Road", City: "Bengaluru", State: "KA", Zip: "560001", Phone: "9800000000"}
}

// ============================================
// Repositories
// ============================================

func (s *PostgresSuite) TestPlants_CodeSequence() {
	first := s.seedPlant(1, true)
	second := s.seedPlant(1, true)

	s.Regexp(`^GRN-\d{6}$`, first.Code)
	s.NotEqual(first.Code, second.Code)
}

func (s *PostgresSuite) TestPlants_DecrementStockIsConditional() {
	p := s.seedPlant(2, true)
	inactive := s.seedPlant(5, false)

	s.ErrorIs(s.Store.Plants().DecrementStock(s.Ctx, p.ID, 3), store.ErrInsufficientStock)
	s.ErrorIs(s.Store.Plants().DecrementStock(s.Ctx, inactive.ID, 1), store.ErrInsufficientStock)
	s.Require().NoError(s.Store.Plants().DecrementStock(s.Ctx, p.ID, 2))
	s.Equal(0, s.stockOf(p.ID))
}

func (s *PostgresSuite) TestOrders_TransitionStatusIsCompareAndSet() {
	p := s.seedPlant(1, true)
	o := s.seedOrder("user-1", p, model.StatusPending)
	now := time.Now().UTC()

	s.Require().NoError(s.Store.Orders().TransitionStatus(s.Ctx, o.ID, model.StatusPending, model.StatusProcessing, now))
	err := s.Store.Orders().TransitionStatus(s.Ctx, o.ID, model.StatusPending, model.StatusCancelled, now)

	s.ErrorIs(err, store.ErrConflict)
	got, err := s.Store.Orders().Get(s.Ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusProcessing, got.Status)
}

func (s *PostgresSuite) TestOrders_MarkItemRated() {
	p := s.seedPlant(1, true)
	o := s.seedOrder("user-1", p, model.StatusDelivered)

	err := s.Store.WithTx(s.Ctx, func(tx store.Repositories) error {
		return tx.Orders().MarkItemRated(s.Ctx, o.ID, p.ID)
	})
	s.Require().NoError(err)

	got, err := s.Store.Orders().Get(s.Ctx, o.ID)
	s.Require().NoError(err)
	s.True(got.Items[0].Rated)
	s.ErrorIs(s.Store.Orders().MarkItemRated(s.Ctx, o.ID, uuid.NewString()), store.ErrNotFound)
}

func (s *PostgresSuite) TestUniqueViolationsMapToDuplicate() {
	now := time.Now().UTC()
	u := &model.User{ID: uuid.NewString(), Email: "fern@example.com", PasswordHash: "x", Name: "Fern",
		Role: model.RoleCustomer, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.Store.Users().Create(s.Ctx, u))

	u2 := *u
	u2.ID = uuid.NewString()
	s.ErrorIs(s.Store.Users().Create(s.Ctx, &u2), store.ErrDuplicate)

	p := s.seedPlant(1, true)
	o := s.seedOrder(u.ID, p, model.StatusDelivered)
	r := &model.Rating{ID: uuid.NewString(), UserID: u.ID, PlantID: p.ID, OrderID: o.ID, Score: 4, CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.Store.Ratings().Create(s.Ctx, r))
	r2 := *r
	r2.ID = uuid.NewString()
	s.ErrorIs(s.Store.Ratings().Create(s.Ctx, &r2), store.ErrDuplicate)
}

func (s *PostgresSuite) TestCarts_DeleteAndLock() {
	s.ErrorIs(s.Store.Carts().Delete(s.Ctx, "user-1"), store.ErrNotFound)

	// the placeholder row of a missing cart disappears with the rollback
	errRollback := errors.New("rollback")
	err := s.Store.WithTx(s.Ctx, func(tx store.Repositories) error {
		c, err := tx.Carts().GetForUpdate(s.Ctx, "user-1")
		s.Require().NoError(err)
		s.Empty(c.Items)
		return errRollback
	})
	s.ErrorIs(err, errRollback)
	_, err = s.Store.Carts().Get(s.Ctx, "user-1")
	s.ErrorIs(err, store.ErrNotFound)
}

// ============================================
// Concurrency
// ============================================

func (s *PostgresSuite) TestPlace_SameCartTwice() {
	p := s.seedPlant(5, true)
	s.Require().NoError(s.Store.Carts().Save(s.Ctx, &model.Cart{
		UserID: "user-1", Items: []model.CartItem{{PlantID: p.ID, Quantity: 1}}, UpdatedAt: time.Now().UTC(),
	}))
	service := order.NewService(s.Store, nil, nil, zap.NewNop())

	var (
		wg   sync.WaitGroup
		errs = make([]error, 4)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Place(s.Ctx, "user-1", testAddress())
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		s.ErrorIs(err, order.ErrEmptyCart)
	}
	s.Equal(1, successes)
	s.Equal(4, s.stockOf(p.ID))
	orders, err := s.Store.Orders().ListByUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Len(orders, 1)
}

func (s *PostgresSuite) TestPlace_NoOversell() {
	p := s.seedPlant(3, true)
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	for _, u := range users {
		s.Require().NoError(s.Store.Carts().Save(s.Ctx, &model.Cart{
			UserID: u, Items: []model.CartItem{{PlantID: p.ID, Quantity: 1}}, UpdatedAt: time.Now().UTC(),
		}))
	}
	service := order.NewService(s.Store, nil, nil, zap.NewNop())

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(users))
	)
	for i, u := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = service.Place(s.Ctx, userID, testAddress())
		}(i, u)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		s.ErrorIs(err, store.ErrInsufficientStock)
	}
	s.Equal(3, successes)
	s.Equal(0, s.stockOf(p.ID))
}

func (s *PostgresSuite) TestCart_ConcurrentAddsAccumulate() {
	p := s.seedPlant(10, true)
	service := cart.NewService(s.Store, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddItem(s.Ctx, "user-1", p.ID, 1)
			s.NoError(err)
		}()
	}
	wg.Wait()

	c, err := service.Get(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(c.Items, 1)
	s.Equal(5, c.Items[0].Quantity)
}
