package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"dental-storefront/internal/domain"
)

// Schema creates the tables used by PostgresStore. Tags and images are kept
// as TEXT[] since they are only ever read back whole.
const Schema = `
CREATE SCHEMA IF NOT EXISTS storefront;

CREATE TABLE IF NOT EXISTS storefront.products (
	seq              BIGSERIAL,
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL,
	price            DOUBLE PRECISION NOT NULL CHECK (price > 0),
	discounted_price DOUBLE PRECISION,
	image            TEXT,
	images           TEXT[] NOT NULL DEFAULT '{}',
	category         TEXT NOT NULL DEFAULT 'General',
	tags             TEXT[] NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS storefront.admin_users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT admin_users_username_key UNIQUE (username)
);
`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
	newID  func() string
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, newID: uuid.NewString}
}

// EnsureSchema applies Schema. It is safe to run on every start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO storefront.products
			(id, name, description, price, discounted_price, image, images, category, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, name, description, price, discounted_price, image, images, category, tags, created_at, updated_at;
	`
	category := product.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}

	row := s.db.QueryRowContext(ctx, query,
		s.newID(), product.Name, product.Description, product.Price, product.DiscountedPrice,
		product.Image, pq.Array(images), category, pq.Array(tags),
	)

	created, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, name, description, price, discounted_price, image, images, category, tags, created_at, updated_at
		FROM storefront.products
		ORDER BY seq ASC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var discounted sql.NullFloat64
	var image sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &discounted, &image,
		pq.Array(&p.Images), &p.Category, pq.Array(&p.Tags),
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if discounted.Valid {
		v := discounted.Float64
		p.DiscountedPrice = &v
	}
	if image.Valid && image.String != "" {
		v := image.String
		p.Image = &v
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// --- UserStorer Implementation ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.AdminUser) (*domain.AdminUser, error) {
	query := `
		INSERT INTO storefront.admin_users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, created_at, updated_at;
	`
	var created domain.AdminUser
	err := s.db.QueryRowContext(ctx, query, s.newID(), user.Username, user.PasswordHash).Scan(
		&created.ID, &created.Username, &created.PasswordHash, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Unique violation
			if strings.Contains(pqErr.Constraint, "admin_users_username_key") || strings.Contains(pqErr.Detail, "Key (username)") {
				return nil, ErrUsernameExists
			}
		}
		return nil, fmt.Errorf("store: CreateUser failed to scan row: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	query := `
		SELECT id, username, password_hash, created_at, updated_at
		FROM storefront.admin_users
		WHERE username = $1;
	`
	var user domain.AdminUser
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: GetUserByUsername failed to scan row: %w", err)
	}
	return &user, nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing database connection pool")
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database connection pool", zap.Error(err))
		return err
	}
	s.logger.Info("database connection pool closed")
	return nil
}
