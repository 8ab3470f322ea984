package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"dental-storefront/internal/domain"
)

// PageSize is the number of products per page.
const PageSize = 20

// Result is the derived view for one Criteria.
type Result struct {
	// Filtered holds every matching product in catalog order.
	Filtered []domain.Product
	// Products is the current page of Filtered.
	Products   []domain.Product
	Page       int
	TotalPages int
}

// Total is the number of matching products across all pages.
func (r Result) Total() int {
	return len(r.Filtered)
}

// Empty signals "no products": nothing matched the criteria.
func (r Result) Empty() bool {
	return len(r.Filtered) == 0
}

// HasPrev reports whether a previous page exists.
func (r Result) HasPrev() bool { return r.Page > 1 }

// HasNext reports whether a next page exists.
func (r Result) HasNext() bool { return r.Page < r.TotalPages }

// PageWindow returns up to size consecutive page numbers around the current
// page, clamped to [1, TotalPages].
func (r Result) PageWindow(size int) []int {
	if size <= 0 {
		return nil
	}
	start := r.Page - size/2
	if start > r.TotalPages-size+1 {
		start = r.TotalPages - size + 1
	}
	if start < 1 {
		start = 1
	}
	var pages []int
	for p := start; p <= r.TotalPages && len(pages) < size; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Filter derives the page described by c from products. It has no side
// effects and never reorders products.
func Filter(products []domain.Product, c Criteria) Result {
	fold := cases.Fold()
	search := fold.String(c.Search)
	category := c.Category
	if category == "" {
		category = AllCategories
	}
	selected := make(map[string]bool, len(c.Tags))
	for _, t := range c.Tags {
		selected[t] = true
	}

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !p.Valid() {
			continue
		}
		if search != "" &&
			!strings.Contains(fold.String(p.Name), search) &&
			!strings.Contains(fold.String(p.Description), search) {
			continue
		}
		if category != AllCategories && p.Category != category {
			continue
		}
		if len(selected) > 0 && !hasAnyTag(p.Tags, selected) {
			continue
		}
		filtered = append(filtered, p)
	}

	return paginate(filtered, c.Page)
}

func hasAnyTag(tags []string, selected map[string]bool) bool {
	for _, t := range tags {
		if selected[t] {
			return true
		}
	}
	return false
}

func paginate(filtered []domain.Product, page int) Result {
	if page < 1 {
		page = 1
	}
	totalPages := (len(filtered) + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	res := Result{Filtered: filtered, Page: page, TotalPages: totalPages}
	// Past the last page; checked before multiplying so huge pages cannot overflow.
	if page > totalPages {
		res.Products = filtered[len(filtered):]
		return res
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	res.Products = filtered[start:end:end]
	return res
}

// Categories lists the distinct categories of products in first-seen order.
func Categories(products []domain.Product) []string {
	return distinct(products, func(p domain.Product) []string { return []string{p.Category} })
}

// Tags lists the distinct tags of products in first-seen order.
func Tags(products []domain.Product) []string {
	return distinct(products, func(p domain.Product) []string { return p.Tags })
}

func distinct(products []domain.Product, values func(domain.Product) []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range products {
		for _, v := range values(p) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
