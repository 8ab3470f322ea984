package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"dental-storefront/internal/catalog"
	"dental-storefront/internal/store"
)

// seedCatalog imports products from a catalog CSV, but only into an empty
// store. It returns the number of products created.
func seedCatalog(ctx context.Context, ps store.ProductStorer, path string, logger *zap.Logger) (int, error) {
	existing, err := ps.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		logger.Info("store already has products, skipping catalog seed", zap.Int("products", len(existing)))
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	products, rowErrs, err := catalog.ParseCSV(f)
	if err != nil {
		return 0, err
	}
	for _, rowErr := range rowErrs {
		logger.Warn("skipping catalog row", zap.Int("line", rowErr.Line), zap.String("field", rowErr.Field), zap.Error(rowErr.Err))
	}

	for i := range products {
		if _, err := ps.CreateProduct(ctx, &products[i]); err != nil {
			return i, fmt.Errorf("create %q: %w", products[i].Name, err)
		}
	}
	return len(products), nil
}
