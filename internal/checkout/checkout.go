// Package checkout turns a cart into a pre-filled WhatsApp message.
// Nothing is sent to the backend; the caller opens the returned link.
package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"dental-storefront/internal/cart"
)

const (
	baseURL        = "https://wa.me/"
	enquiryMessage = "Hi! I'm interested in your dental tools. Can you help me?"
)

var (
	ErrEmptyCart      = errors.New("checkout: cart is empty")
	ErrMissingDetails = errors.New("checkout: missing customer details")
	ErrCartChanged    = errors.New("checkout: cart changed while checking out")
)

// Customer holds the details appended to every order message.
type Customer struct {
	Name    string `validate:"required"`
	Phone   string `validate:"required"`
	Address string `validate:"required"`
}

// ContactForm is the free-form enquiry sent from the contact page.
type ContactForm struct {
	Name    string `validate:"required"`
	Email   string `validate:"required,email"`
	Phone   string
	Subject string
	Message string `validate:"required"`
}

// ValidationError names the fields that failed validation.
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingDetails, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrMissingDetails, e.err}
}

// Messenger builds wa.me links. With an empty shop number the link lets the
// user pick the recipient.
type Messenger struct {
	shopNumber string
	validate   *validator.Validate
}

func New(shopNumber string) *Messenger {
	return &Messenger{
		shopNumber: strings.TrimPrefix(strings.TrimSpace(shopNumber), "+"),
		validate:   validator.New(),
	}
}

// BuildMessage renders the order text for state and customer.
func BuildMessage(state cart.State, c Customer) string {
	var b strings.Builder
	b.WriteString("Order Details:\n")
	for _, item := range state.Items {
		unit := item.Product.EffectivePrice()
		fmt.Fprintf(&b, "- %s x%d @ ₹%s = ₹%s\n",
			item.Product.Name, item.Quantity, formatPrice(unit), formatPrice(item.Subtotal()))
	}
	fmt.Fprintf(&b, "\nTotal = ₹%s\n\n", formatPrice(state.TotalPrice()))
	b.WriteString("Customer Details:\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Phone: %s\n", c.Phone)
	fmt.Fprintf(&b, "Address: %s", c.Address)
	return b.String()
}

// Order is the message sent for a cart and the deep link that carries it.
type Order struct {
	Message string
	Link    string
}

// Link validates the customer and returns the order deep link. The cart is
// left untouched.
func (m *Messenger) Link(state cart.State, c Customer) (string, error) {
	order, err := m.Order(state, c)
	if err != nil {
		return "", err
	}
	return order.Link, nil
}

// Order trims and validates the customer, then renders the message and its
// link from state.
func (m *Messenger) Order(state cart.State, c Customer) (Order, error) {
	if state.IsEmpty() {
		return Order{}, ErrEmptyCart
	}
	c = Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
	if err := m.check(c); err != nil {
		return Order{}, err
	}
	msg := BuildMessage(state, c)
	return Order{Message: msg, Link: m.link(msg)}, nil
}

// Checkout prices the container's current state, then clears and closes the
// cart. The cart is cleared only if it still holds exactly what was priced;
// otherwise ErrCartChanged is returned and the cart is left as is. On any
// error the cart is unchanged.
func (m *Messenger) Checkout(container *cart.Container, c Customer) (Order, error) {
	state, version := container.Snapshot()
	order, err := m.Order(state, c)
	if err != nil {
		return Order{}, err
	}
	if !container.ClearIfUnchanged(version) {
		return Order{}, ErrCartChanged
	}
	container.CloseCart()
	return order, nil
}

// EnquiryLink is the link behind the floating chat button.
func (m *Messenger) EnquiryLink() string {
	return m.link(enquiryMessage)
}

// ContactLink formats a contact form submission. Phone and subject lines
// are omitted when blank.
func (m *Messenger) ContactLink(f ContactForm) (string, error) {
	f = ContactForm{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		Subject: strings.TrimSpace(f.Subject),
		Message: strings.TrimSpace(f.Message),
	}
	if err := m.check(f); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("*New Contact Form Submission*\n\n")
	fmt.Fprintf(&b, "*Name:* %s\n", f.Name)
	fmt.Fprintf(&b, "*Email:* %s\n", f.Email)
	if f.Phone != "" {
		fmt.Fprintf(&b, "*Phone:* %s\n", f.Phone)
	}
	if f.Subject != "" {
		fmt.Fprintf(&b, "*Subject:* %s\n", f.Subject)
	}
	fmt.Fprintf(&b, "\n*Message:*\n%s\n\n", f.Message)
	b.WriteString("---\nSent from DentalMart Contact Form")
	return m.link(b.String()), nil
}

func (m *Messenger) check(v any) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("checkout: validate: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &ValidationError{Fields: fields, err: err}
}

func (m *Messenger) link(message string) string {
	return baseURL + m.shopNumber + "?text=" + encodeComponent(message)
}

// encodeComponent percent-encodes s so spaces become %20 rather than '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
