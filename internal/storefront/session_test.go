package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dental-storefront/internal/checkout"
	"dental-storefront/internal/domain"
)

type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

// gatedSource answers each call only once its gate is released.
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	answers [][]domain.Product
	started chan int
}

func (g *gatedSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()
	g.started <- i
	<-g.gates[i]
	return g.answers[i], nil
}

func products(prefix string, n int) []domain.Product {
	out := make([]domain.Product, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Product{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Name:        fmt.Sprintf("%s Forceps %d", prefix, i),
			Description: "Extraction forceps",
			Price:       100,
			Category:    "Forceps",
			Tags:        []string{"Steel"},
		})
	}
	return out
}

func TestSession_RefreshAndView(t *testing.T) {
	src := new(MockProductSource)
	src.On("ListProducts", mock.Anything).Return(products("p", 25), nil).Once()

	s := NewSession(src)
	require.NoError(t, s.Refresh(context.Background()))

	v := s.View()
	assert.False(t, v.Loading)
	assert.NoError(t, v.Err)
	assert.Equal(t, 25, v.Result.Total())
	assert.Len(t, v.Result.Products, 20)
	assert.Equal(t, []string{"Forceps"}, v.Categories)
	assert.Equal(t, []string{"Steel"}, v.Tags)
	src.AssertExpectations(t)
}

func TestSession_RefreshError(t *testing.T) {
	src := new(MockProductSource)
	src.On("ListProducts", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	s := NewSession(src, WithProducts(products("old", 2)))
	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	v := s.View()
	assert.Error(t, v.Err)
	assert.Equal(t, 2, v.Result.Total(), "a failed refresh keeps the previous catalog")
}

func TestSession_StaleRefreshIsDropped(t *testing.T) {
	src := &gatedSource{
		gates:   []chan struct{}{make(chan struct{}), make(chan struct{})},
		answers: [][]domain.Product{products("old", 3), products("new", 5)},
		started: make(chan int, 2),
	}
	s := NewSession(src)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Refresh(context.Background()))
	}()
	require.Equal(t, 0, <-src.started)

	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Refresh(context.Background()))
	}()
	require.Equal(t, 1, <-src.started)

	close(src.gates[1])
	close(src.gates[0])
	wg.Wait()

	v := s.View()
	require.Equal(t, 5, v.Result.Total())
	for _, p := range v.Result.Filtered {
		assert.True(t, strings.HasPrefix(p.ID, "new-"), p.ID)
	}
	assert.False(t, v.Loading)
}

func TestSession_CriteriaResetPage(t *testing.T) {
	s := NewSession(new(MockProductSource), WithProducts(products("p", 45)))

	assert.Equal(t, 3, s.SetPage(3).Page)
	assert.Equal(t, 1, s.SetSearch("forceps 4").Page)

	v := s.View()
	// "forceps 4" plus forceps 40 to 45
	assert.Equal(t, 7, v.Result.Total())

	s.SetPage(2)
	assert.Equal(t, 1, s.SetCategory("Forceps").Page)
	s.SetPage(2)
	assert.Equal(t, 1, s.ToggleTag("Steel").Page)
	assert.Equal(t, []string{"Steel"}, s.View().Criteria.Tags)
	assert.Empty(t, s.ToggleTag("Steel").Tags)

	cleared := s.ClearFilters()
	assert.False(t, cleared.HasActiveFilters())
	assert.Equal(t, 45, s.View().Result.Total())
}

func TestSession_AddProductPrepends(t *testing.T) {
	s := NewSession(new(MockProductSource), WithProducts(products("p", 2)))
	s.AddProduct(domain.Product{ID: "fresh", Name: "Mirror", Description: "d", Category: "Mirrors", Price: 50})

	v := s.View()
	require.Equal(t, 3, v.Result.Total())
	assert.Equal(t, "fresh", v.Result.Products[0].ID)
	assert.Equal(t, []string{"Mirrors", "Forceps"}, v.Categories)
}

func TestSession_Checkout(t *testing.T) {
	s := NewSession(new(MockProductSource), WithMessenger(checkout.New("919876543210")))
	require.NoError(t, s.Cart().AddToCart(products("p", 1)[0], 2))
	assert.Equal(t, 2, s.View().Cart.TotalItems())

	order, err := s.Checkout(checkout.Customer{Name: "Dr. Rao", Phone: "98765", Address: "Pune"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(order.Link, "https://wa.me/919876543210?text=Order%20Details"))
	assert.True(t, strings.HasPrefix(order.Message, "Order Details:\n- "))
	assert.True(t, s.View().Cart.IsEmpty())

	_, err = s.Checkout(checkout.Customer{Name: "Dr. Rao", Phone: "98765", Address: "Pune"})
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Contains(t, s.EnquiryLink(), "https://wa.me/919876543210?text=Hi%21")

	link, err := s.ContactLink(checkout.ContactForm{Name: "Asha", Email: "asha@example.com", Message: "Stock?"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "https://wa.me/919876543210?text=%2ANew%20Contact"), link)
}
