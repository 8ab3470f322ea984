// Package catalog derives the visible, paginated product page from the full
// catalog and the shopper's filter criteria.
package catalog

// AllCategories is the category selection that matches every product.
const AllCategories = "all"

// Criteria is the shopper's current selection. Every mutator returns a new
// value; changing search, category or tags resets Page to 1.
type Criteria struct {
	Search   string   `json:"search"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Page     int      `json:"page"`
}

// DefaultCriteria matches the whole catalog, first page.
func DefaultCriteria() Criteria {
	return Criteria{Category: AllCategories, Page: 1}
}

// Reset clears every filter. It is the escape hatch offered when a
// selection matches nothing.
func (c Criteria) Reset() Criteria {
	return DefaultCriteria()
}

// WithSearch sets the free-text search term.
func (c Criteria) WithSearch(search string) Criteria {
	next := c.clone()
	next.Search = search
	next.Page = 1
	return next
}

// WithCategory selects a category; "" is treated as AllCategories.
func (c Criteria) WithCategory(category string) Criteria {
	if category == "" {
		category = AllCategories
	}
	next := c.clone()
	next.Category = category
	next.Page = 1
	return next
}

// ToggleTag selects tag if it is not selected, otherwise deselects it.
func (c Criteria) ToggleTag(tag string) Criteria {
	next := c.clone()
	next.Page = 1
	for i, t := range next.Tags {
		if t == tag {
			next.Tags = append(next.Tags[:i:i], next.Tags[i+1:]...)
			return next
		}
	}
	next.Tags = append(next.Tags, tag)
	return next
}

// WithTags replaces the selected tags, dropping duplicates.
func (c Criteria) WithTags(tags ...string) Criteria {
	next := c.clone()
	next.Page = 1
	next.Tags = nil
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		next.Tags = append(next.Tags, t)
	}
	return next
}

// WithPage changes only the page. Values below 1 become 1.
func (c Criteria) WithPage(page int) Criteria {
	next := c.clone()
	if page < 1 {
		page = 1
	}
	next.Page = page
	return next
}

// HasActiveFilters reports whether anything narrows the catalog.
func (c Criteria) HasActiveFilters() bool {
	return c.Search != "" || (c.Category != "" && c.Category != AllCategories) || len(c.Tags) > 0
}

func (c Criteria) clone() Criteria {
	next := c
	if c.Tags != nil {
		next.Tags = append([]string(nil), c.Tags...)
	}
	if next.Category == "" {
		next.Category = AllCategories
	}
	return next
}
