package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/greenify/plant-store/internal/infrastructure/store"
	"github.com/greenify/plant-store/internal/model"
)

// Store is an in-memory implementation of store.Store. Transactions are
// serialized and applied copy-on-write, so a failed transaction leaves no trace.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	plants   map[string]*model.Plant
	plantSeq int
	carts    map[string]*model.Cart
	orders   map[string]*model.Order
	ratings  map[string]*model.Rating
	users    map[string]*model.User
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		data: &dataset{
			plants:  make(map[string]*model.Plant),
			carts:   make(map[string]*model.Cart),
			orders:  make(map[string]*model.Order),
			ratings: make(map[string]*model.Rating),
			users:   make(map[string]*model.User),
		},
	}
}

func (m *Store) Plants() store.PlantRepository   { return &plantRepo{repo{m: m}} }
func (m *Store) Carts() store.CartRepository     { return &cartRepo{repo{m: m}} }
func (m *Store) Orders() store.OrderRepository   { return &orderRepo{repo{m: m}} }
func (m *Store) Ratings() store.RatingRepository { return &ratingRepo{repo{m: m}} }
func (m *Store) Users() store.UserRepository     { return &userRepo{repo{m: m}} }

// WithTx runs fn against a private copy of the data and publishes it on success
func (m *Store) WithTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.data.clone()
	if err := fn(txRepositories{repo{m: m, tx: work}}); err != nil {
		return err
	}
	m.data = work
	return nil
}

type txRepositories struct {
	r repo
}

func (t txRepositories) Plants() store.PlantRepository   { return &plantRepo{t.r} }
func (t txRepositories) Carts() store.CartRepository     { return &cartRepo{t.r} }
func (t txRepositories) Orders() store.OrderRepository   { return &orderRepo{t.r} }
func (t txRepositories) Ratings() store.RatingRepository { return &ratingRepo{t.r} }
func (t txRepositories) Users() store.UserRepository     { return &userRepo{t.r} }

// repo runs operations either inside a transaction or under the store lock
type repo struct {
	m  *Store
	tx *dataset
}

func (r repo) do(fn func(d *dataset) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return fn(r.m.data)
}

// Plant operations

type plantRepo struct{ repo }

func (r *plantRepo) Create(ctx context.Context, p *model.Plant) error {
	return r.do(func(d *dataset) error {
		if _, ok := d.plants[p.ID]; ok {
			return store.ErrDuplicate
		}
		d.plantSeq++
		p.Code = fmt.Sprintf("GRN-%06d", d.plantSeq)
		d.plants[p.ID] = clonePlant(p)
		return nil
	})
}

func (r *plantRepo) Get(ctx context.Context, id string) (*model.Plant, error) {
	var out *model.Plant
	err := r.do(func(d *dataset) error {
		p, ok := d.plants[id]
		if !ok {
			return store.ErrNotFound
		}
		out = clonePlant(p)
		return nil
	})
	return out, err
}

func (r *plantRepo) List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error) {
	out := make([]*model.Plant, 0)
	err := r.do(func(d *dataset) error {
		search := strings.ToLower(filter.Search)
		for _, p := range d.plants {
			if !filter.IncludeInactive && !p.IsActive {
				continue
			}
			if filter.Category != "" && !contains(p.Categories, filter.Category) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
				!strings.Contains(strings.ToLower(p.Description), search) {
				continue
			}
			out = append(out, clonePlant(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *plantRepo) Update(ctx context.Context, p *model.Plant) error {
	return r.do(func(d *dataset) error {
		cur, ok := d.plants[p.ID]
		if !ok {
			return store.ErrNotFound
		}
		next := clonePlant(p)
		next.Code = cur.Code
		next.Rating = cur.Rating
		next.ReviewCount = cur.ReviewCount
		next.IsActive = cur.IsActive
		next.CreatedAt = cur.CreatedAt
		d.plants[p.ID] = next
		return nil
	})
}

func (r *plantRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.do(func(d *dataset) error {
		p, ok := d.plants[id]
		if !ok {
			return store.ErrNotFound
		}
		p.IsActive = active
		p.UpdatedAt = time.Now()
		return nil
	})
}

func (r *plantRepo) DecrementStock(ctx context.Context, id string, quantity int) error {
	return r.do(func(d *dataset) error {
		p, ok := d.plants[id]
		if !ok || !p.IsActive || p.Stock < quantity {
			return store.ErrInsufficientStock
		}
		p.Stock -= quantity
		p.UpdatedAt = time.Now()
		return nil
	})
}

func (r *plantRepo) IncrementStock(ctx context.Context, id string, quantity int) error {
	return r.do(func(d *dataset) error {
		p, ok := d.plants[id]
		if !ok {
			return store.ErrNotFound
		}
		p.Stock += quantity
		p.UpdatedAt = time.Now()
		return nil
	})
}

func (r *plantRepo) SetRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	return r.do(func(d *dataset) error {
		p, ok := d.plants[id]
		if !ok {
			return store.ErrNotFound
		}
		p.Rating = rating
		p.ReviewCount = reviewCount
		return nil
	})
}

// Cart operations

type cartRepo struct{ repo }

func (r *cartRepo) Get(ctx context.Context, userID string) (*model.Cart, error) {
	var out *model.Cart
	err := r.do(func(d *dataset) error {
		c, ok := d.carts[userID]
		if !ok {
			return store.ErrNotFound
		}
		out = cloneCart(c)
		return nil
	})
	return out, err
}

// GetForUpdate needs no locking here: transactions are already serialized
func (r *cartRepo) GetForUpdate(ctx context.Context, userID string) (*model.Cart, error) {
	c, err := r.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	return c, err
}

func (r *cartRepo) Save(ctx context.Context, c *model.Cart) error {
	return r.do(func(d *dataset) error {
		saved := cloneCart(c)
		for i := range saved.Items {
			saved.Items[i].Plant = nil
		}
		saved.Total = 0
		d.carts[c.UserID] = saved
		return nil
	})
}

func (r *cartRepo) Delete(ctx context.Context, userID string) error {
	return r.do(func(d *dataset) error {
		if _, ok := d.carts[userID]; !ok {
			return store.ErrNotFound
		}
		delete(d.carts, userID)
		return nil
	})
}

// Order operations

type orderRepo struct{ repo }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.do(func(d *dataset) error {
		if _, ok := d.orders[o.ID]; ok {
			return store.ErrDuplicate
		}
		d.orders[o.ID] = cloneOrder(o)
		return nil
	})
}

func (r *orderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	var out *model.Order
	err := r.do(func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	out := make([]*model.Order, 0)
	err := r.do(func(d *dataset) error {
		for _, o := range d.orders {
			if o.UserID == userID {
				out = append(out, cloneOrder(o))
			}
		}
		return nil
	})
	sortOrders(out)
	return out, err
}

func (r *orderRepo) List(ctx context.Context, filter model.OrderFilter) ([]*model.Order, int, error) {
	all := make([]*model.Order, 0)
	err := r.do(func(d *dataset) error {
		for _, o := range d.orders {
			if filter.Status == "" || o.Status == filter.Status {
				all = append(all, cloneOrder(o))
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortOrders(all)
	total := len(all)
	if filter.Limit > 0 {
		start := min(filter.Offset, total)
		end := min(start+filter.Limit, total)
		all = all[start:end]
	}
	return all, total, nil
}

func (r *orderRepo) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	return r.do(func(d *dataset) error {
		o, ok := d.orders[id]
		if !ok || o.Status != from {
			return store.ErrConflict
		}
		o.Status = to
		o.UpdatedAt = at
		return nil
	})
}

func (r *orderRepo) MarkItemRated(ctx context.Context, orderID, plantID string) error {
	return r.do(func(d *dataset) error {
		o, ok := d.orders[orderID]
		if !ok {
			return store.ErrNotFound
		}
		item, ok := o.Item(plantID)
		if !ok {
			return store.ErrNotFound
		}
		item.Rated = true
		return nil
	})
}

func (r *orderRepo) Stats(ctx context.Context) (*model.OrderStats, error) {
	stats := &model.OrderStats{ByStatus: make(map[model.OrderStatus]int)}
	for _, s := range model.OrderStatuses {
		stats.ByStatus[s] = 0
	}
	err := r.do(func(d *dataset) error {
		for _, o := range d.orders {
			stats.TotalOrders++
			stats.ByStatus[o.Status]++
			if o.Status != model.StatusCancelled {
				stats.Revenue += o.Total
			}
		}
		return nil
	})
	return stats, err
}

// Rating operations

type ratingRepo struct{ repo }

func (r *ratingRepo) Find(ctx context.Context, userID, plantID, orderID string) (*model.Rating, error) {
	var out *model.Rating
	err := r.do(func(d *dataset) error {
		for _, rt := range d.ratings {
			if rt.UserID == userID && rt.PlantID == plantID && rt.OrderID == orderID {
				c := *rt
				out = &c
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r *ratingRepo) Create(ctx context.Context, rating *model.Rating) error {
	return r.do(func(d *dataset) error {
		for _, rt := range d.ratings {
			if rt.UserID == rating.UserID && rt.PlantID == rating.PlantID && rt.OrderID == rating.OrderID {
				return store.ErrDuplicate
			}
		}
		c := *rating
		d.ratings[rating.ID] = &c
		return nil
	})
}

func (r *ratingRepo) UpdateScore(ctx context.Context, id string, score int, at time.Time) error {
	return r.do(func(d *dataset) error {
		rt, ok := d.ratings[id]
		if !ok {
			return store.ErrNotFound
		}
		rt.Score = score
		rt.UpdatedAt = at
		return nil
	})
}

func (r *ratingRepo) ListByPlant(ctx context.Context, plantID string) ([]*model.Rating, error) {
	out := make([]*model.Rating, 0)
	err := r.do(func(d *dataset) error {
		for _, rt := range d.ratings {
			if rt.PlantID == plantID {
				c := *rt
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *ratingRepo) Aggregate(ctx context.Context, plantID string) (float64, int, error) {
	var sum, count int
	err := r.do(func(d *dataset) error {
		for _, rt := range d.ratings {
			if rt.PlantID == plantID {
				sum += rt.Score
				count++
			}
		}
		return nil
	})
	if err != nil || count == 0 {
		return 0, 0, err
	}
	return float64(sum) / float64(count), count, nil
}

// User operations

type userRepo struct{ repo }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.do(func(d *dataset) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return store.ErrDuplicate
			}
		}
		c := *u
		d.users[u.ID] = &c
		return nil
	})
}

func (r *userRepo) Get(ctx context.Context, id string) (*model.User, error) {
	var out *model.User
	err := r.do(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return store.ErrNotFound
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.do(func(d *dataset) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				c := *u
				out = &c
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

// copying

func (d *dataset) clone() *dataset {
	c := &dataset{
		plants:   make(map[string]*model.Plant, len(d.plants)),
		plantSeq: d.plantSeq,
		carts:    make(map[string]*model.Cart, len(d.carts)),
		orders:   make(map[string]*model.Order, len(d.orders)),
		ratings:  make(map[string]*model.Rating, len(d.ratings)),
		users:    make(map[string]*model.User, len(d.users)),
	}
	for k, v := range d.plants {
		c.plants[k] = clonePlant(v)
	}
	for k, v := range d.carts {
		c.carts[k] = cloneCart(v)
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range d.ratings {
		r := *v
		c.ratings[k] = &r
	}
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	return c
}

func clonePlant(p *model.Plant) *model.Plant {
	c := *p
	c.Categories = append([]string{}, p.Categories...)
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		c.OriginalPrice = &v
	}
	return &c
}

func cloneCart(cart *model.Cart) *model.Cart {
	c := *cart
	c.Items = append([]model.CartItem{}, cart.Items...)
	return &c
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem{}, o.Items...)
	return &c
}

func sortOrders(orders []*model.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
