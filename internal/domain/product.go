package domain

import (
	"time"
)

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "General"

// Product represents a product in the catalog.
// The json tags correspond to the fields returned by GET /api/products.
type Product struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`                     // Base price in rupees
	DiscountedPrice *float64  `json:"discountedPrice,omitempty"` // Pointer for nullable fields
	Image           *string   `json:"image,omitempty"`           // Path of the uploaded image, if any
	Images          []string  `json:"images,omitempty"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EffectivePrice is the price a customer pays for one unit: the discounted
// price when it is set, positive and lower than the base price, otherwise the
// base price.
func (p Product) EffectivePrice() float64 {
	if p.DiscountedPrice != nil && *p.DiscountedPrice > 0 && *p.DiscountedPrice < p.Price {
		return *p.DiscountedPrice
	}
	return p.Price
}

// HasDiscount reports whether EffectivePrice differs from Price.
func (p Product) HasDiscount() bool {
	return p.EffectivePrice() < p.Price
}

// ImageURLs returns every image of the product, the uploaded one first.
func (p Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images)+1)
	if p.Image != nil && *p.Image != "" {
		urls = append(urls, *p.Image)
	}
	return append(urls, p.Images...)
}

// Valid reports whether the product carries the fields the storefront needs
// to render it. Externally loaded data is not trusted to have them.
func (p Product) Valid() bool {
	return p.Name != "" && p.Description != "" && p.Category != ""
}

// AdminUser is an account allowed to add products.
type AdminUser struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never serialized
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
