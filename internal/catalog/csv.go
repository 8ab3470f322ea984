package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"dental-storefront/internal/domain"
)

// Columns every catalog CSV must declare in its header. Extra columns are
// ignored; "id" is optional and "price" is accepted for "original_price".
var requiredColumns = []string{"name", "description", "original_price", "category"}

var (
	ErrMissingField = errors.New("catalog: required field is empty")
	ErrInvalidPrice = errors.New("catalog: price must be a positive number")
)

// RowError describes why one CSV row was rejected.
type RowError struct {
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("catalog: line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseCSV reads a catalog CSV. Well-formed rows become products in file
// order; malformed rows become RowErrors and are left out. The returned error
// is reserved for problems with the file as a whole (unreadable, bad header).
func ParseCSV(r io.Reader) ([]domain.Product, []*RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("catalog: empty CSV, header row required")
		}
		return nil, nil, fmt.Errorf("catalog: read header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("catalog: header is missing column %q", name)
		}
	}

	var products []domain.Product
	var rowErrs []*RowError
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return products, rowErrs, fmt.Errorf("catalog: read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		p, rowErr := parseRow(cols, record, line)
		if rowErr != nil {
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		products = append(products, p)
	}
	return products, rowErrs, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	if _, ok := cols["original_price"]; !ok {
		if i, ok := cols["price"]; ok {
			cols["original_price"] = i
		}
	}
	return cols
}

func parseRow(cols map[string]int, record []string, line int) (domain.Product, *RowError) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	p := domain.Product{
		ID:          get("id"),
		Name:        get("name"),
		Description: get("description"),
		Category:    get("category"),
		Tags:        splitList(get("tags")),
		Images:      splitList(get("images")),
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("csv-%d", line)
	}
	for _, f := range []struct{ name, value string }{
		{"name", p.Name}, {"description", p.Description}, {"category", p.Category},
	} {
		if f.value == "" {
			return domain.Product{}, &RowError{Line: line, Field: f.name, Err: ErrMissingField}
		}
	}

	price, err := parsePrice(get("original_price"))
	if err != nil {
		return domain.Product{}, &RowError{Line: line, Field: "original_price", Err: err}
	}
	p.Price = price

	if raw := get("discounted_price"); raw != "" {
		discounted, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(discounted) || math.IsInf(discounted, 0) || discounted < 0 {
			return domain.Product{}, &RowError{Line: line, Field: "discounted_price", Err: ErrInvalidPrice}
		}
		if discounted > 0 {
			p.DiscountedPrice = &discounted
		}
	}
	return p, nil
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, ErrMissingField
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidPrice
	}
	return v, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
