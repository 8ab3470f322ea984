package store

import (
	"context"
	"errors"

	"dental-storefront/internal/domain"
)

// Predefined errors for store operations
var (
	ErrUserNotFound   = errors.New("store: user not found")
	ErrUsernameExists = errors.New("store: username already exists")
)

// ProductStorer defines the operations on the product collection.
// Products are immutable once created; ListProducts returns them in
// insertion order.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// UserStorer defines the operations on admin accounts.
type UserStorer interface {
	CreateUser(ctx context.Context, user *domain.AdminUser) (*domain.AdminUser, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.AdminUser, error)
}

// Store is implemented by every backing store the server can run on.
type Store interface {
	ProductStorer
	UserStorer
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
