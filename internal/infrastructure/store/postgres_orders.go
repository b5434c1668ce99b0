package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/greenify/plant-store/internal/model"
)

// Cart operations

type pgCartRepo struct {
	q querier
}

func (r *pgCartRepo) Get(ctx context.Context, userID string) (*model.Cart, error) {
	return r.get(ctx, `SELECT user_id, items, updated_at FROM carts WHERE user_id = $1`, userID)
}

// GetForUpdate inserts an empty row first so that writers racing on a
// missing cart queue up on the same lock. A rollback removes it again.
// The row can vanish while waiting for the lock when a concurrent order
// consumed the cart; the insert is then simply repeated.
func (r *pgCartRepo) GetForUpdate(ctx context.Context, userID string) (*model.Cart, error) {
	for attempt := 0; ; attempt++ {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO carts (user_id, items, updated_at)
			VALUES ($1, '[]', NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, userID); err != nil {
			return nil, fmt.Errorf("ensure cart of %s: %w", userID, err)
		}
		c, err := r.get(ctx, `SELECT user_id, items, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID)
		if errors.Is(err, ErrNotFound) && attempt < 2 {
			continue
		}
		return c, err
	}
}

func (r *pgCartRepo) get(ctx context.Context, query, userID string) (*model.Cart, error) {
	var (
		c         model.Cart
		itemsJSON []byte
	)
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &itemsJSON, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cart of %s: %w", userID, err)
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return &c, nil
}

func (r *pgCartRepo) Save(ctx context.Context, c *model.Cart) error {
	// only references are persisted; plant data is always read live
	items := make([]model.CartItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = model.CartItem{PlantID: item.PlantID, Quantity: item.Quantity}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO carts (user_id, items, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at
	`, c.UserID, itemsJSON, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart of %s: %w", c.UserID, err)
	}
	return nil
}

func (r *pgCartRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete cart of %s: %w", userID, err)
	}
	return expectOne(res)
}

// Order operations

type pgOrderRepo struct {
	q querier
}

const orderColumns = `id, user_id, customer_name, customer_email, items, address, status,
	payment_method, total, created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o           model.Order
		itemsJSON   []byte
		addressJSON []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.CustomerEmail, &itemsJSON, &addressJSON,
		&o.Status, &o.PaymentMethod, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return nil, fmt.Errorf("decode order address: %w", err)
	}
	return &o, nil
}

func (r *pgOrderRepo) Create(ctx context.Context, o *model.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.UserID, o.CustomerName, o.CustomerEmail, itemsJSON, addressJSON, o.Status,
		o.PaymentMethod, o.Total, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *pgOrderRepo) List(ctx context.Context, filter model.OrderFilter) ([]*model.Order, int, error) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	orders, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *pgOrderRepo) query(ctx context.Context, query string, args ...any) ([]*model.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) TransitionStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, at)
	if err != nil {
		return fmt.Errorf("transition order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *pgOrderRepo) MarkItemRated(ctx context.Context, orderID, plantID string) error {
	var itemsJSON []byte
	err := r.q.QueryRowContext(ctx,
		`SELECT items FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&itemsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}

	var items []model.OrderItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return fmt.Errorf("decode order items: %w", err)
	}
	found := false
	for i := range items {
		if items[i].PlantID == plantID {
			items[i].Rated = true
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}

	itemsJSON, err = json.Marshal(items)
	if err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx,
		`UPDATE orders SET items = $2, updated_at = NOW() WHERE id = $1`, orderID, itemsJSON); err != nil {
		return fmt.Errorf("mark item rated: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) Stats(ctx context.Context) (*model.OrderStats, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := &model.OrderStats{ByStatus: make(map[model.OrderStatus]int)}
	for _, s := range model.OrderStatuses {
		stats.ByStatus[s] = 0
	}
	for rows.Next() {
		var (
			status model.OrderStatus
			count  int
			sum    int
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan order stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalOrders += count
		if status != model.StatusCancelled {
			stats.Revenue += sum
		}
	}
	return stats, rows.Err()
}
