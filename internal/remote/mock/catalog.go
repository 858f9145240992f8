package mock

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

func (s *Server) seedCatalog() {
	s.categories = []domain.Category{
		{ID: newID(), Name: "Electronics", Slug: "electronics", Image: "https://img.test/electronics.png"},
		{ID: newID(), Name: "Women's Fashion", Slug: "women's-fashion", Image: "https://img.test/women.png"},
	}
	s.brands = []domain.Brand{
		{ID: newID(), Name: "Samsung", Slug: "samsung", Image: "https://img.test/samsung.png"},
		{ID: newID(), Name: "DeFacto", Slug: "defacto", Image: "https://img.test/defacto.png"},
	}

	seed := []struct {
		title    string
		price    float64
		category int
		brand    int
	}{
		{"Galaxy S23 Ultra", 42000, 0, 0},
		{"Galaxy Buds2 Pro", 5200, 0, 0},
		{"Galaxy Watch 6", 9800, 0, 0},
		{"Woman Shawl", 190, 1, 1},
		{"Woman Hoodie", 680, 1, 1},
		{"Linen Shirt", 540, 1, 1},
	}
	for _, p := range seed {
		c, b := s.categories[p.category], s.brands[p.brand]
		s.products = append(s.products, domain.Product{
			ID:              newID(),
			Title:           p.title,
			Slug:            strings.ToLower(strings.ReplaceAll(p.title, " ", "-")),
			Description:     p.title + " from the fake catalog",
			ImageCover:      "https://img.test/" + strings.ToLower(strings.ReplaceAll(p.title, " ", "-")) + ".jpeg",
			Price:           p.price,
			Quantity:        100,
			RatingsAverage:  4.5,
			RatingsQuantity: 10,
			Category:        domain.Ref{ID: c.ID, Name: c.Name, Slug: c.Slug, Image: c.Image},
			Brand:           domain.Ref{ID: b.ID, Name: b.Name, Slug: b.Slug, Image: b.Image},
		})
	}
}

// Products returns the seeded catalog.
func (s *Server) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...)
}

// Brands returns the seeded brands.
func (s *Server) Brands() []domain.Brand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Brand(nil), s.brands...)
}

// productJSON renders a product the way the API does.
func productJSON(p domain.Product) map[string]any {
	out := map[string]any{
		"_id":             p.ID,
		"id":              p.ID,
		"title":           p.Title,
		"slug":            p.Slug,
		"description":     p.Description,
		"imageCover":      p.ImageCover,
		"images":          p.Images,
		"price":           p.Price,
		"quantity":        p.Quantity,
		"sold":            p.Sold,
		"ratingsAverage":  p.RatingsAverage,
		"ratingsQuantity": p.RatingsQuantity,
		"category":        p.Category,
		"brand":           p.Brand,
	}
	if p.PriceAfterDiscount > 0 {
		out["priceAfterDiscount"] = p.PriceAfterDiscount
	}
	return out
}

func namedJSON(id, name, slug, image string) map[string]any {
	return map[string]any{"_id": id, "name": name, "slug": slug, "image": image}
}

// productLocked looks up a product. The caller holds s.mu.
func (s *Server) productLocked(id string) (domain.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	category := r.URL.Query().Get("category[in]")
	brand := r.URL.Query().Get("brand")

	s.mu.Lock()
	matched := make([]map[string]any, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category.ID != category {
			continue
		}
		if brand != "" && p.Brand.ID != brand {
			continue
		}
		matched = append(matched, productJSON(p))
	}
	s.mu.Unlock()

	page := pagination.Paginate(matched, params)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	p, ok := s.productLocked(id)
	s.mu.Unlock()

	if !ok {
		writeFail(w, http.StatusNotFound, fmt.Sprintf("No product for this id %s", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": productJSON(p)})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := make([]map[string]any, len(s.categories))
	for i, c := range s.categories {
		data[i] = namedJSON(c.ID, c.Name, c.Slug, c.Image)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, pagination.Paginate(data, pagination.Params{Page: 1, Limit: pagination.MaxLimit}))
}

func (s *Server) listBrands(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data := make([]map[string]any, len(s.brands))
	for i, b := range s.brands {
		data[i] = namedJSON(b.ID, b.Name, b.Slug, b.Image)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, pagination.Paginate(data, pagination.Params{Page: 1, Limit: pagination.MaxLimit}))
}

func (s *Server) getBrand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brands {
		if b.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"data": namedJSON(b.ID, b.Name, b.Slug, b.Image)})
			return
		}
	}
	writeFail(w, http.StatusNotFound, fmt.Sprintf("No brand for this id %s", id))
}
