package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dental-storefront/internal/auth"
	"dental-storefront/internal/domain"
	"dental-storefront/internal/store"
	"dental-storefront/internal/upload"
)

const (
	// maxFormMemory is the part of a multipart body kept in memory; the rest
	// spills to temporary files.
	maxFormMemory = 8 << 20
	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 1 << 20
)

// ImageSaver persists an uploaded image and returns its public path. Remove
// deletes a saved image by that path.
type ImageSaver interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(publicPath string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	productStore store.ProductStorer
	auth         *auth.Service
	images       ImageSaver
	maxBodyBytes int64
	logger       *zap.Logger
	validate     *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies. maxUploadBytes
// bounds the whole request body of a product upload.
func NewHTTPHandler(ps store.ProductStorer, authSvc *auth.Service, images ImageSaver, maxUploadBytes int64, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		productStore: ps,
		auth:         authSvc,
		images:       images,
		maxBodyBytes: maxUploadBytes + 1<<20,
		logger:       logger,
		validate:     validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Message: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// --- Product Handlers ---

// ProductCreateInput is the create-product body, sent either as JSON or as
// multipart form fields.
type ProductCreateInput struct {
	Name            string   `json:"name" validate:"required,max=255"`
	Description     string   `json:"description" validate:"required"`
	Price           float64  `json:"price" validate:"gt=0"`
	DiscountedPrice *float64 `json:"discountedPrice" validate:"omitempty,gt=0"`
	Category        string   `json:"category" validate:"max=100"`
	Tags            []string `json:"tags" validate:"dive,required"`
	Images          []string `json:"images" validate:"omitempty,dive,url"`
}

func (in *ProductCreateInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = domain.DefaultCategory
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var (
		input ProductCreateInput
		image *string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid form payload: "+err.Error())
			return
		}
		defer r.MultipartForm.RemoveAll()

		var err error
		if input, err = productInputFromForm(r); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		input.normalize()
		if err := h.validate.Struct(input); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		if image, err = h.saveImage(r); err != nil {
			h.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		input.normalize()
		if err := h.validate.Struct(input); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
	}

	product := &domain.Product{
		Name:            input.Name,
		Description:     input.Description,
		Price:           input.Price,
		DiscountedPrice: input.DiscountedPrice,
		Image:           image,
		Images:          input.Images,
		Category:        input.Category,
		Tags:            input.Tags,
	}

	createdProduct, err := h.productStore.CreateProduct(r.Context(), product)
	if err != nil {
		h.logger.Error("CreateProduct store operation failed", zap.Error(err))
		if image != nil {
			if rmErr := h.images.Remove(*image); rmErr != nil {
				h.logger.Warn("failed to remove orphaned image", zap.String("image", *image), zap.Error(rmErr))
			}
		}
		h.respondWithError(w, http.StatusBadRequest, "Failed to create product")
		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		h.logger.Info("product created",
			zap.String("product_id", createdProduct.ID), zap.String("admin_id", claims.UserID))
	}
	h.respondWithJSON(w, http.StatusCreated, createdProduct)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.productStore.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("ListProducts store operation failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Failed to retrieve products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	h.respondWithJSON(w, http.StatusOK, products)
}

// productInputFromForm reads the multipart fields. Tags may be a JSON array
// string, one plain value or repeated fields.
func productInputFromForm(r *http.Request) (ProductCreateInput, error) {
	form := r.MultipartForm.Value
	first := func(key string) string {
		if v := form[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	input := ProductCreateInput{
		Name:        first("name"),
		Description: first("description"),
		Category:    first("category"),
		Tags:        parseTags(form["tags"]),
	}
	if raw := first("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, errors.New("price must be a number")
		}
		input.Price = price
	}
	if raw := first("discountedPrice"); raw != "" {
		discounted, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, errors.New("discountedPrice must be a number")
		}
		input.DiscountedPrice = &discounted
	}
	return input, nil
}

func parseTags(values []string) []string {
	tags := []string{}
	if len(values) == 1 {
		var parsed []string
		if err := json.Unmarshal([]byte(values[0]), &parsed); err == nil {
			values = parsed
		}
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			tags = append(tags, v)
		}
	}
	return tags
}

var (
	errImageTooLarge = errors.New("image is too large")
	errImageType     = errors.New("only jpg, png, gif and webp images are accepted")
	errImageStore    = errors.New("failed to store image")
)

func (h *HTTPHandler) saveImage(r *http.Request) (*string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid image upload: %w", err)
	}
	defer file.Close()

	path, err := h.images.Save(header.Filename, file)
	if err != nil {
		h.logger.Warn("image upload rejected", zap.String("filename", header.Filename), zap.Error(err))
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			return nil, errImageTooLarge
		case errors.Is(err, upload.ErrUnsupportedType):
			return nil, errImageType
		default:
			return nil, errImageStore
		}
	}
	return &path, nil
}

// --- Auth Handlers ---

// CredentialsInput is the body of register and login requests.
type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input CredentialsInput
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	user, err := h.auth.Register(r.Context(), input.Username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			h.respondWithError(w, http.StatusBadRequest, "Username and password are required")
		case errors.Is(err, store.ErrUsernameExists):
			h.respondWithError(w, http.StatusBadRequest, "Username already exists")
		default:
			h.logger.Error("Register failed", zap.Error(err))
			h.respondWithError(w, http.StatusBadRequest, "Registration failed")
		}
		return
	}
	h.respondWithJSON(w, http.StatusCreated, user)
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input CredentialsInput
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	token, err := h.auth.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("Login failed", zap.Error(err))
		}
		h.respondWithError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Healthz reports service health, including the store when it can be pinged.
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "store": "ok"}
	if p, ok := h.productStore.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("store ping failed", zap.Error(err))
			status["status"] = "degraded"
			status["store"] = "unavailable"
			h.respondWithJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	h.respondWithJSON(w, http.StatusOK, status)
}

// --- Route Registration ---

// RegisterRoutes mounts the API under /api and uploaded files under
// /uploads. uploadsDir may be empty to skip static serving.
func (h *HTTPHandler) RegisterRoutes(r chi.Router, uploadsDir string) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(h.auth.RequireBearer).Post("/", h.CreateProduct)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
	})

	if uploadsDir != "" {
		fs := http.StripPrefix(upload.PublicPrefix, http.FileServer(http.Dir(uploadsDir)))
		r.Get(upload.PublicPrefix+"*", fs.ServeHTTP)
	}
}
