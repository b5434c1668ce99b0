package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/greenify/plant-store/internal/model"
)

// Rating operations

type pgRatingRepo struct {
	q querier
}

const ratingColumns = `id, user_id, plant_id, order_id, score, created_at, updated_at`

func scanRating(row rowScanner) (*model.Rating, error) {
	var r model.Rating
	if err := row.Scan(&r.ID, &r.UserID, &r.PlantID, &r.OrderID, &r.Score, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *pgRatingRepo) Find(ctx context.Context, userID, plantID, orderID string) (*model.Rating, error) {
	rating, err := scanRating(r.q.QueryRowContext(ctx, `
		SELECT `+ratingColumns+` FROM ratings
		WHERE user_id = $1 AND plant_id = $2 AND order_id = $3
	`, userID, plantID, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find rating: %w", err)
	}
	return rating, nil
}

func (r *pgRatingRepo) Create(ctx context.Context, rating *model.Rating) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ratings (`+ratingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rating.ID, rating.UserID, rating.PlantID, rating.OrderID, rating.Score, rating.CreatedAt, rating.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (r *pgRatingRepo) UpdateScore(ctx context.Context, id string, score int, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE ratings SET score = $2, updated_at = $3 WHERE id = $1`, id, score, at)
	if err != nil {
		return fmt.Errorf("update rating %s: %w", id, err)
	}
	return expectOne(res)
}

func (r *pgRatingRepo) ListByPlant(ctx context.Context, plantID string) ([]*model.Rating, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+ratingColumns+` FROM ratings
		WHERE plant_id = $1
		ORDER BY created_at DESC
	`, plantID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]*model.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func (r *pgRatingRepo) Aggregate(ctx context.Context, plantID string) (float64, int, error) {
	var (
		mean  sql.NullFloat64
		count int
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT AVG(score)::float8, COUNT(*) FROM ratings WHERE plant_id = $1`, plantID,
	).Scan(&mean, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate ratings of %s: %w", plantID, err)
	}
	return mean.Float64, count, nil
}

// User operations

type pgUserRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, name, role, is_active, created_at, updated_at`

func (r *pgUserRepo) scan(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *pgUserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *pgUserRepo) Get(ctx context.Context, id string) (*model.User, error) {
	return r.scan(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scan(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}
