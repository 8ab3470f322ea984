// Package storefront holds the browsing session shared by the shop front
// ends: the loaded catalog, the active filters and the cart.
package storefront

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"dental-storefront/internal/cart"
	"dental-storefront/internal/catalog"
	"dental-storefront/internal/checkout"
	"dental-storefront/internal/domain"
)

// ProductSource loads the catalog. *client.Client satisfies it.
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// View is a snapshot of everything a front end renders.
type View struct {
	Criteria   catalog.Criteria
	Result     catalog.Result
	Categories []string
	Tags       []string
	Cart       cart.State
	Loading    bool
	Err        error
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithMessenger(m *checkout.Messenger) Option {
	return func(s *Session) { s.messenger = m }
}

// WithProducts preloads the catalog, e.g. for offline use.
func WithProducts(products []domain.Product) Option {
	return func(s *Session) { s.products = products }
}

type Session struct {
	source    ProductSource
	cart      *cart.Container
	messenger *checkout.Messenger
	logger    *zap.Logger

	mu       sync.RWMutex
	products []domain.Product
	criteria catalog.Criteria
	seq      uint64
	loading  bool
	lastErr  error
}

func NewSession(source ProductSource, opts ...Option) *Session {
	s := &Session{
		source:    source,
		cart:      cart.NewContainer(),
		messenger: checkout.New(""),
		logger:    zap.NewNop(),
		criteria:  catalog.DefaultCriteria(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cart exposes the session's cart container.
func (s *Session) Cart() *cart.Container {
	return s.cart
}

// Refresh reloads the catalog from the source. Only the most recently
// started refresh may apply its result; older responses are dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	s.mu.Unlock()

	products, err := s.source.ListProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.logger.Debug("storefront: dropping stale catalog response",
			zap.Uint64("seq", seq), zap.Uint64("latest", s.seq))
		return nil
	}
	s.loading = false
	if err != nil {
		s.lastErr = fmt.Errorf("storefront: load products: %w", err)
		s.logger.Warn("storefront: catalog refresh failed", zap.Error(err))
		return s.lastErr
	}
	s.lastErr = nil
	s.products = products
	s.logger.Debug("storefront: catalog refreshed", zap.Int("products", len(products)))
	return nil
}

// View derives the current page from the loaded catalog and criteria.
func (s *Session) View() View {
	s.mu.RLock()
	products := s.products
	criteria := s.criteria
	v := View{Criteria: criteria, Loading: s.loading, Err: s.lastErr}
	s.mu.RUnlock()

	v.Result = catalog.Filter(products, criteria)
	v.Categories = catalog.Categories(products)
	v.Tags = catalog.Tags(products)
	v.Cart = s.cart.State()
	return v
}

// AddProduct puts a newly created product at the front of the catalog.
func (s *Session) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make([]domain.Product, 0, len(s.products)+1)
	products = append(products, p)
	s.products = append(products, s.products...)
}

func (s *Session) update(fn func(catalog.Criteria) catalog.Criteria) catalog.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = fn(s.criteria)
	return s.criteria
}

func (s *Session) SetSearch(term string) catalog.Criteria {
	return s.update(func(c catalog.Criteria) catalog.Criteria { return c.WithSearch(term) })
}

func (s *Session) SetCategory(category string) catalog.Criteria {
	return s.update(func(c catalog.Criteria) catalog.Criteria { return c.WithCategory(category) })
}

func (s *Session) ToggleTag(tag string) catalog.Criteria {
	return s.update(func(c catalog.Criteria) catalog.Criteria { return c.ToggleTag(tag) })
}

func (s *Session) SetPage(page int) catalog.Criteria {
	return s.update(func(c catalog.Criteria) catalog.Criteria { return c.WithPage(page) })
}

func (s *Session) ClearFilters() catalog.Criteria {
	return s.update(func(c catalog.Criteria) catalog.Criteria { return c.Reset() })
}

// Checkout hands the cart to the messenger and empties it on success.
func (s *Session) Checkout(c checkout.Customer) (checkout.Order, error) {
	return s.messenger.Checkout(s.cart, c)
}

// EnquiryLink returns the general chat link.
func (s *Session) EnquiryLink() string {
	return s.messenger.EnquiryLink()
}

// ContactLink returns the chat link for a contact form submission.
func (s *Session) ContactLink(f checkout.ContactForm) (string, error) {
	return s.messenger.ContactLink(f)
}
