package cart

import (
	"dental-storefront/internal/domain"
)

// ActionType names a cart mutation.
type ActionType string

const (
	ActionAdd            ActionType = "ADD_TO_CART"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionRemove         ActionType = "REMOVE_FROM_CART"
	ActionClear          ActionType = "CLEAR_CART"
	ActionToggle         ActionType = "TOGGLE_CART"
	ActionOpen           ActionType = "OPEN_CART"
	ActionClose          ActionType = "CLOSE_CART"
)

// Action is a request to change the cart. Product is read by ActionAdd,
// ProductID by ActionUpdateQuantity and ActionRemove, Quantity by ActionAdd
// and ActionUpdateQuantity.
type Action struct {
	Type      ActionType
	Product   domain.Product
	ProductID string
	Quantity  int
}

// Reduce applies a to s and returns the next state and whether anything
// changed. s is never modified. Unknown actions and no-ops return s as is.
func Reduce(s State, a Action) (State, bool) {
	switch a.Type {
	case ActionAdd:
		if a.Quantity < 1 {
			return s, false
		}
		next := s.clone()
		if i := next.indexOf(a.Product.ID); i >= 0 {
			next.Items[i].Quantity += a.Quantity
		} else {
			next.Items = append(next.Items, LineItem{Product: a.Product, Quantity: a.Quantity})
		}
		return next, true

	case ActionUpdateQuantity:
		i := s.indexOf(a.ProductID)
		if i < 0 {
			return s, false
		}
		if a.Quantity <= 0 {
			return removeAt(s, i), true
		}
		if s.Items[i].Quantity == a.Quantity {
			return s, false
		}
		next := s.clone()
		next.Items[i].Quantity = a.Quantity
		return next, true

	case ActionRemove:
		i := s.indexOf(a.ProductID)
		if i < 0 {
			return s, false
		}
		return removeAt(s, i), true

	case ActionClear:
		if len(s.Items) == 0 {
			return s, false
		}
		return State{IsOpen: s.IsOpen}, true

	case ActionToggle:
		next := s.clone()
		next.IsOpen = !s.IsOpen
		return next, true

	case ActionOpen, ActionClose:
		open := a.Type == ActionOpen
		if s.IsOpen == open {
			return s, false
		}
		next := s.clone()
		next.IsOpen = open
		return next, true
	}
	return s, false
}

func removeAt(s State, i int) State {
	next := State{IsOpen: s.IsOpen, Items: make([]LineItem, 0, len(s.Items)-1)}
	next.Items = append(next.Items, s.Items[:i]...)
	next.Items = append(next.Items, s.Items[i+1:]...)
	return next
}
