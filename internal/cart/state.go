// Package cart holds the storefront cart: a pure reducer over State and a
// Container that owns the current state and notifies its consumers.
package cart

import (
	"errors"

	"dental-storefront/internal/domain"
)

// ErrInvalidQuantity is returned when adding fewer than one unit.
var ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")

// LineItem is one product and how many units of it are in the cart.
type LineItem struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Subtotal is the effective unit price times the quantity.
func (li LineItem) Subtotal() float64 {
	return li.Product.EffectivePrice() * float64(li.Quantity)
}

// State is the cart contents in insertion order plus the panel visibility.
// At most one line item exists per product ID and every quantity is >= 1.
type State struct {
	Items  []LineItem `json:"items"`
	IsOpen bool       `json:"isOpen"`
}

// TotalItems is the sum of all quantities.
func (s State) TotalItems() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the sum of every line item's subtotal.
func (s State) TotalPrice() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.Subtotal()
	}
	return total
}

// Find returns the line item for productID.
func (s State) Find(productID string) (LineItem, bool) {
	if i := s.indexOf(productID); i >= 0 {
		return s.Items[i], true
	}
	return LineItem{}, false
}

// IsEmpty reports whether the cart has no line items.
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

func (s State) indexOf(productID string) int {
	for i, item := range s.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	out := State{IsOpen: s.IsOpen}
	if s.Items != nil {
		out.Items = make([]LineItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	return out
}
