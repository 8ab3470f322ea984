package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dental-storefront/internal/api"
	"dental-storefront/internal/auth"
	"dental-storefront/internal/domain"
	"dental-storefront/internal/store"
	"dental-storefront/internal/upload"
)

func setupBackend(t *testing.T) *store.MemoryStore {
	t.Helper()
	ms, err := store.NewMemoryStore()
	require.NoError(t, err)
	images, err := upload.NewDiskStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	handler := api.NewHTTPHandler(ms, auth.NewService(ms, "cli-test-secret", time.Hour), images, 1<<20, zap.NewNop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router, images.Dir())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	t.Setenv("STOREFRONT_API_URL", srv.URL+"/api")
	t.Setenv("STOREFRONT_TOKEN_FILE", filepath.Join(t.TempDir(), "token"))
	t.Setenv("WHATSAPP_NUMBER", "")
	return ms
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLIWithStderr(t, args...)
	return out, err
}

func runCLIWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestCLI_AdminFlow(t *testing.T) {
	setupBackend(t)

	out, err := runCLI(t, "register", "-u", "admin", "-p", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered admin")

	_, err = runCLI(t, "add-product", "-name", "Mirror", "-description", "Front surface", "-price", "120")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storefront login")

	_, err = runCLI(t, "login", "-u", "admin", "-p", "s3cret")
	require.NoError(t, err)
	info, err := os.Stat(os.Getenv("STOREFRONT_TOKEN_FILE"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = runCLI(t, "add-product", "-name", "Mirror", "-description", "Front surface", "-price", "120",
		"-discounted", "99", "-category", "Mirrors", "-tags", "Steel, Reusable")
	require.NoError(t, err)
	assert.Contains(t, out, "Created Mirror")
	assert.Contains(t, out, "Catalog now lists 1 products")

	out, err = runCLI(t, "products", "-json")
	require.NoError(t, err)
	var products []domain.Product
	require.NoError(t, json.Unmarshal([]byte(out), &products))
	require.Len(t, products, 1)
	assert.Equal(t, 99.0, products[0].EffectivePrice())
	assert.Equal(t, []string{"Steel", "Reusable"}, products[0].Tags)

	_, err = runCLI(t, "logout")
	require.NoError(t, err)
	_, err = os.Stat(os.Getenv("STOREFRONT_TOKEN_FILE"))
	assert.True(t, os.IsNotExist(err))
}

func TestCLI_BrowseAndOrder(t *testing.T) {
	ms := setupBackend(t)
	ctx := context.Background()
	forceps, err := ms.CreateProduct(ctx, &domain.Product{Name: "Extraction Forceps", Description: "Upper molar", Price: 300, DiscountedPrice: ptr(250.0), Category: "Forceps", Tags: []string{"German Steel"},
		Image: ptr("/uploads/forceps.jpg"), Images: []string{"https://cdn.example.com/forceps-side.jpg"}})
	require.NoError(t, err)
	mirror, err := ms.CreateProduct(ctx, &domain.Product{Name: "Mouth Mirror", Description: "Front surface", Price: 100, Category: "Mirrors", Tags: []string{}})
	require.NoError(t, err)

	out, err := runCLI(t, "products", "-search", "FORCEPS")
	require.NoError(t, err)
	assert.Contains(t, out, "Extraction Forceps")
	assert.NotContains(t, out, "Mouth Mirror")
	assert.Contains(t, out, "₹250 (was ₹300)")
	assert.Contains(t, out, "Page 1 of 1, 1 products")
	assert.Contains(t, out, "    image: /uploads/forceps.jpg\n    image: https://cdn.example.com/forceps-side.jpg\n")
	assert.NotContains(t, out, "Pages:")

	out, err = runCLI(t, "products", "-tag", "Titanium")
	require.NoError(t, err)
	assert.Contains(t, out, "No products found")
	assert.Contains(t, out, "Try clearing the search, category or tag filters (2 products in the catalog).")

	out, errOut, err := runCLIWithStderr(t, "order", "-item", forceps.ID+":1", "-item", mirror.ID+":2",
		"-name", "  Dr. Rao", "-phone", "9876543210 ", "-address", "Pune")
	require.NoError(t, err)
	assert.Equal(t, "Cart: 1 items, ₹250\nCart: 3 items, ₹450\n", errOut)
	assert.Contains(t, out, "Name: Dr. Rao\nPhone: 9876543210\n")
	assert.Contains(t, out, "- Extraction Forceps x1 @ ₹250 = ₹250")
	assert.Contains(t, out, "- Mouth Mirror x2 @ ₹100 = ₹200")
	assert.Contains(t, out, "Total = ₹450")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	link := lines[len(lines)-1]
	require.True(t, strings.HasPrefix(link, "https://wa.me/?text="), link)
	text, err := url.QueryUnescape(strings.TrimPrefix(link, "https://wa.me/?text="))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(text, "Address: Pune"))
	assert.Equal(t, strings.Join(lines[:len(lines)-2], "\n"), text, "printed summary is the sent message")

	_, err = runCLI(t, "order", "-item", "missing:1", "-name", "a", "-phone", "b", "-address", "c")
	assert.ErrorContains(t, err, "unknown product")

	_, err = runCLI(t, "order", "-item", forceps.ID, "-name", "Dr. Rao")
	assert.ErrorContains(t, err, "missing customer details")
}

func TestCLI_ProductsPaging(t *testing.T) {
	ms := setupBackend(t)
	ctx := context.Background()
	for i := 1; i <= 45; i++ {
		_, err := ms.CreateProduct(ctx, &domain.Product{Name: fmt.Sprintf("Mirror %02d", i), Description: "Front surface", Price: 100, Category: "Mirrors", Tags: []string{}})
		require.NoError(t, err)
	}

	out, err := runCLI(t, "products", "-page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Mirror 21")
	assert.Contains(t, out, "Page 2 of 3, 45 products")
	assert.Contains(t, out, "Pages: 1 [2] 3\n")
	assert.Contains(t, out, "Previous: -page 1\n")
	assert.Contains(t, out, "Next: -page 3\n")

	out, err = runCLI(t, "products", "-page", "500000000000000000")
	require.NoError(t, err)
	assert.Contains(t, out, "No products on page 500000000000000000")
	assert.Contains(t, out, "Previous: -page 3\n")
	assert.NotContains(t, out, "Next:")
}

func TestCLI_Contact(t *testing.T) {
	setupBackend(t)
	t.Setenv("WHATSAPP_NUMBER", "+919876543210")

	out, err := runCLI(t, "contact", "-name", "Asha", "-email", "asha@example.com", "-subject", "Bulk order", "-message", "Do you ship to Goa?")
	require.NoError(t, err)
	link := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(link, "https://wa.me/919876543210?text="), link)
	text, err := url.QueryUnescape(strings.TrimPrefix(link, "https://wa.me/919876543210?text="))
	require.NoError(t, err)
	assert.Contains(t, text, "*Subject:* Bulk order\n")
	assert.True(t, strings.HasSuffix(text, "Sent from DentalMart Contact Form"))

	_, err = runCLI(t, "contact", "-name", "Asha", "-email", "nope", "-message", "hi")
	assert.ErrorContains(t, err, "email")
}

func TestCLI_Usage(t *testing.T) {
	setupBackend(t)
	_, err := runCLI(t)
	assert.ErrorIs(t, err, errUsage)
	_, err = runCLI(t, "bogus")
	assert.ErrorIs(t, err, errUsage)
	_, err = runCLI(t, "login", "-u", "admin")
	assert.ErrorIs(t, err, errUsage)

	out, err := runCLI(t, "enquiry")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "https://wa.me/?text=Hi%21"))
}

func TestParseItem(t *testing.T) {
	id, qty, err := parseItem("abc:3")
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, 3, qty)

	_, qty, err = parseItem("abc")
	require.NoError(t, err)
	assert.Equal(t, 1, qty)

	_, _, err = parseItem(":3")
	assert.Error(t, err)
	_, _, err = parseItem("abc:x")
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
