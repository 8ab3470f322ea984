// Package client talks to the storefront HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-storefront/internal/domain"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s (status %d)", e.Message, e.StatusCode)
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// ProductInput is the body of a create-product request.
type ProductInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty"`
	Category        string   `json:"category,omitempty"`
	Tags            []string `json:"tags"`
	Images          []string `json:"images,omitempty"`
}

// Image is a file sent along with a multipart create-product request.
type Image struct {
	Filename string
	Content  io.Reader
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore replaces the default in-memory token storage.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

// New returns a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  &MemoryTokenStore{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts returns the full catalog in server order.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.doJSON(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// CreateProduct sends the product as a JSON body. Requires a stored token.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if in.Tags == nil {
		in.Tags = []string{}
	}
	var created domain.Product
	if err := c.doJSON(ctx, http.MethodPost, "/products", in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateProductWithImage sends the product as a multipart form with the image
// attached under the "image" field. Tags are sent as a JSON array string.
func (c *Client) CreateProductWithImage(ctx context.Context, in ProductInput, img Image) (*domain.Product, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("client: encode tags: %w", err)
	}
	fields := [][2]string{
		{"name", in.Name},
		{"description", in.Description},
		{"price", strconv.FormatFloat(in.Price, 'f', -1, 64)},
		{"category", in.Category},
		{"tags", string(tagsJSON)},
	}
	if in.DiscountedPrice != nil {
		fields = append(fields, [2]string{"discountedPrice", strconv.FormatFloat(*in.DiscountedPrice, 'f', -1, 64)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("client: write field %s: %w", f[0], err)
		}
	}
	if img.Content != nil {
		part, err := mw.CreateFormFile("image", img.Filename)
		if err != nil {
			return nil, fmt.Errorf("client: create image part: %w", err)
		}
		if _, err := io.Copy(part, img.Content); err != nil {
			return nil, fmt.Errorf("client: copy image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/products", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created domain.Product
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentials{username, password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("client: login response carried no token")
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Register creates an admin account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) (*domain.AdminUser, error) {
	var user domain.AdminUser
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", credentials{username, password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout forgets the stored token. The server keeps no session to end.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// LoggedIn reports whether a token is stored.
func (c *Client) LoggedIn() bool {
	token, err := c.tokens.Token()
	return err == nil && token != ""
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &APIError{StatusCode: status, Message: payload.Message}
	}
	return &APIError{StatusCode: status, Message: fmt.Sprintf("HTTP error, status %d", status)}
}
