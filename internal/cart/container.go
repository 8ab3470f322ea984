package cart

import (
	"sync"

	"dental-storefront/internal/domain"
)

// Container is the single owner of a cart State. All mutations go through
// Dispatch, which serializes them; subscribers run after each change with a
// snapshot of the new state.
type Container struct {
	mu      sync.Mutex
	state   State
	version uint64
	subs    []subscription
	nextID  int
}

type subscription struct {
	id int
	fn func(State)
}

// NewContainer returns an empty, closed cart.
func NewContainer() *Container {
	return &Container{}
}

// Dispatch applies a and returns the resulting state.
func (c *Container) Dispatch(a Action) State {
	c.mu.Lock()
	next, subs := c.applyLocked(a)
	c.mu.Unlock()
	return c.notify(next, subs)
}

// ClearIfUnchanged empties the cart only if its version is still version,
// i.e. nothing changed since the matching Snapshot. It reports whether the
// cart was cleared.
func (c *Container) ClearIfUnchanged(version uint64) bool {
	c.mu.Lock()
	if c.version != version {
		c.mu.Unlock()
		return false
	}
	next, subs := c.applyLocked(Action{Type: ActionClear})
	c.mu.Unlock()
	c.notify(next, subs)
	return true
}

func (c *Container) applyLocked(a Action) (State, []subscription) {
	next, changed := Reduce(c.state, a)
	c.state = next
	if !changed {
		return next, nil
	}
	c.version++
	return next, append([]subscription(nil), c.subs...)
}

func (c *Container) notify(next State, subs []subscription) State {
	for _, sub := range subs {
		sub.fn(next.clone())
	}
	return next.clone()
}

// Subscribe registers fn to be called after every state change. The returned
// func removes the subscription.
func (c *Container) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns a copy of the current state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Snapshot returns a copy of the current state with its version. The
// version moves on every change.
func (c *Container) Snapshot() (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone(), c.version
}

// AddToCart adds quantity units of product, merging with an existing line.
func (c *Container) AddToCart(product domain.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c.Dispatch(Action{Type: ActionAdd, Product: product, Quantity: quantity})
	return nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (c *Container) UpdateQuantity(productID string, quantity int) {
	c.Dispatch(Action{Type: ActionUpdateQuantity, ProductID: productID, Quantity: quantity})
}

// RemoveFromCart drops the line for productID, if any.
func (c *Container) RemoveFromCart(productID string) {
	c.Dispatch(Action{Type: ActionRemove, ProductID: productID})
}

// ClearCart empties the cart without touching visibility.
func (c *Container) ClearCart() {
	c.Dispatch(Action{Type: ActionClear})
}

// ToggleCart flips the panel between open and closed.
func (c *Container) ToggleCart() { c.Dispatch(Action{Type: ActionToggle}) }

// OpenCart shows the cart panel.
func (c *Container) OpenCart() { c.Dispatch(Action{Type: ActionOpen}) }

// CloseCart hides the cart panel.
func (c *Container) CloseCart() { c.Dispatch(Action{Type: ActionClose}) }

// TotalItems is the sum of all line quantities.
func (c *Container) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TotalItems()
}

// TotalPrice is the sum of all line subtotals at effective prices.
func (c *Container) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TotalPrice()
}
