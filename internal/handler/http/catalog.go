package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CatalogHandler handles the read-only catalog endpoints.
type CatalogHandler struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *catalog.Service, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: svc, logger: logger}
}

// ListProducts handles GET /api/products?q=&category=&brand=&page=&limit=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	q := r.URL.Query()

	result, err := h.catalog.Products(r.Context(), domain.ProductQuery{
		Page:     params.Page,
		Limit:    params.Limit,
		Search:   strings.TrimSpace(q.Get("q")),
		Category: q.Get("category"),
		Brand:    q.Get("brand"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseObjectID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	p, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, p)
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}

// ListBrands handles GET /api/brands
func (h *CatalogHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalog.Brands(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, brands)
}

// GetBrand handles GET /api/brands/{id}
func (h *CatalogHandler) GetBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseObjectID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	b, err := h.catalog.Brand(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, b)
}
