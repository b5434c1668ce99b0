package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenify/plant-store/internal/model"
	"github.com/lib/pq"
)

type pgPlantRepo struct {
	q querier
}

const plantColumns = `id, code, name, description, price, original_price, categories, stock,
	rating, review_count, is_active, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlant(row rowScanner) (*model.Plant, error) {
	var (
		p             model.Plant
		originalPrice sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Price, &originalPrice,
		pq.Array(&p.Categories), &p.Stock, &p.Rating, &p.ReviewCount, &p.IsActive, &p.ImageURL,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if originalPrice.Valid {
		v := int(originalPrice.Int64)
		p.OriginalPrice = &v
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	return &p, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func (r *pgPlantRepo) Create(ctx context.Context, p *model.Plant) error {
	var seq int64
	if err := r.q.QueryRowContext(ctx, `SELECT nextval('plant_code_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next plant code: %w", err)
	}
	p.Code = fmt.Sprintf("GRN-%06d", seq)

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO plants (`+plantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.Code, p.Name, p.Description, p.Price, nullableInt(p.OriginalPrice),
		pq.Array(p.Categories), p.Stock, p.Rating, p.ReviewCount, p.IsActive, p.ImageURL,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert plant: %w", err)
	}
	return nil
}

func (r *pgPlantRepo) Get(ctx context.Context, id string) (*model.Plant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+plantColumns+` FROM plants WHERE id = $1`, id)
	p, err := scanPlant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plant %s: %w", id, err)
	}
	return p, nil
}

func (r *pgPlantRepo) List(ctx context.Context, filter model.PlantFilter) ([]*model.Plant, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.IncludeInactive {
		conds = append(conds, "is_active")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("$%d = ANY(categories)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + plantColumns + ` FROM plants`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	plants := make([]*model.Plant, 0)
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

func (r *pgPlantRepo) Update(ctx context.Context, p *model.Plant) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE plants SET
			name = $2,
			description = $3,
			price = $4,
			original_price = $5,
			categories = $6,
			stock = $7,
			image_url = $8,
			updated_at = $9
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, nullableInt(p.OriginalPrice), pq.Array(p.Categories),
		p.Stock, p.ImageURL, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update plant %s: %w", p.ID, err)
	}
	return expectOne(res)
}

func (r *pgPlantRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE plants SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set plant %s active=%t: %w", id, active, err)
	}
	return expectOne(res)
}

func (r *pgPlantRepo) DecrementStock(ctx context.Context, id string, quantity int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE plants
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1
			AND stock >= $2
			AND is_active
	`, id, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *pgPlantRepo) IncrementStock(ctx context.Context, id string, quantity int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE plants SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("increment stock of %s: %w", id, err)
	}
	return expectOne(res)
}

func (r *pgPlantRepo) SetRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE plants SET rating = $2, review_count = $3, updated_at = $4 WHERE id = $1`,
		id, rating, reviewCount, time.Now())
	if err != nil {
		return fmt.Errorf("set rating of %s: %w", id, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
