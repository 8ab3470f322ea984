package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"dental-storefront/internal/domain"
)

const (
	productsTable = "products"
	usersTable    = "users"
)

// productRecord wraps a product with a zero-padded sequence key so the "seq"
// index iterates in insertion order.
type productRecord struct {
	ID      string
	Seq     string
	Product domain.Product
}

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		productsTable: {
			Name: productsTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id":  {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				"seq": {Name: "seq", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Seq"}},
			},
		},
		usersTable: {
			Name: usersTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id":       {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				"username": {Name: "username", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Username"}},
			},
		},
	},
}

// MemoryStore implements Store on an in-process go-memdb database. Nothing
// survives a restart.
type MemoryStore struct {
	db    *memdb.MemDB
	seq   atomic.Uint64
	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, fmt.Errorf("store: NewMemoryStore failed to build schema: %w", err)
	}
	return &MemoryStore{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created := copyProduct(*product)
	created.ID = s.newID()
	if created.Category == "" {
		created.Category = domain.DefaultCategory
	}
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt

	txn := s.db.Txn(true)
	defer txn.Abort()
	rec := &productRecord{
		ID:      created.ID,
		Seq:     fmt.Sprintf("%020d", s.seq.Add(1)),
		Product: created,
	}
	if err := txn.Insert(productsTable, rec); err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to insert: %w", err)
	}
	txn.Commit()

	out := copyProduct(created)
	return &out, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(productsTable, "seq")
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to iterate: %w", err)
	}
	products := []domain.Product{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		products = append(products, copyProduct(obj.(*productRecord).Product))
	}
	return products, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *domain.AdminUser) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(usersTable, "username", user.Username)
	if err != nil {
		return nil, fmt.Errorf("store: CreateUser failed to look up username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	created := *user
	created.ID = s.newID()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	if err := txn.Insert(usersTable, &created); err != nil {
		return nil, fmt.Errorf("store: CreateUser failed to insert: %w", err)
	}
	txn.Commit()

	out := created
	return &out, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(usersTable, "username", username)
	if err != nil {
		return nil, fmt.Errorf("store: GetUserByUsername failed to look up username: %w", err)
	}
	if raw == nil {
		return nil, ErrUserNotFound
	}
	user := *raw.(*domain.AdminUser)
	return &user, nil
}

// Ping always succeeds; the database lives in process.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

// copyProduct detaches the slices and pointers of p so callers cannot mutate
// records held by the database.
func copyProduct(p domain.Product) domain.Product {
	out := p
	out.Tags = append([]string{}, p.Tags...)
	if p.Images != nil {
		out.Images = append([]string{}, p.Images...)
	}
	if p.DiscountedPrice != nil {
		v := *p.DiscountedPrice
		out.DiscountedPrice = &v
	}
	if p.Image != nil {
		v := *p.Image
		out.Image = &v
	}
	return out
}
