package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on top of PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	pgRepositories
}

// NewPostgresStore creates a new PostgreSQL-based store
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:             db,
		logger:         logger,
		pgRepositories: pgRepositories{q: db},
	}
}

// WithTx runs fn in a read-committed transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(pgRepositories{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgRepositories struct {
	q querier
}

func (r pgRepositories) Plants() PlantRepository   { return &pgPlantRepo{q: r.q} }
func (r pgRepositories) Carts() CartRepository     { return &pgCartRepo{q: r.q} }
func (r pgRepositories) Orders() OrderRepository   { return &pgOrderRepo{q: r.q} }
func (r pgRepositories) Ratings() RatingRepository { return &pgRatingRepo{q: r.q} }
func (r pgRepositories) Users() UserRepository     { return &pgUserRepo{q: r.q} }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

const schema = `
CREATE SEQUENCE IF NOT EXISTS plant_code_seq;

CREATE TABLE IF NOT EXISTS plants (
	id             UUID PRIMARY KEY,
	code           TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	price          INTEGER NOT NULL CHECK (price > 0),
	original_price INTEGER,
	categories     TEXT[] NOT NULL DEFAULT '{}',
	stock          INTEGER NOT NULL CHECK (stock >= 0),
	rating         DOUBLE PRECISION NOT NULL DEFAULT 5,
	review_count   INTEGER NOT NULL DEFAULT 0,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	image_url      TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	CHECK (original_price IS NULL OR original_price >= price)
);

CREATE TABLE IF NOT EXISTS carts (
	user_id    TEXT PRIMARY KEY,
	items      JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	customer_name  TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	items          JSONB NOT NULL,
	address        JSONB NOT NULL,
	status         TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	total          INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);

CREATE TABLE IF NOT EXISTS ratings (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	plant_id   UUID NOT NULL,
	order_id   UUID NOT NULL,
	score      SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 5),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, plant_id, order_id)
);
CREATE INDEX IF NOT EXISTS ratings_plant_id_idx ON ratings (plant_id);

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the schema if it does not exist yet
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
