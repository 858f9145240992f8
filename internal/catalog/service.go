// Package catalog serves product browsing: listings, title search, product
// and brand details.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// maxSearchPages bounds how much of the catalog a search walks.
const maxSearchPages = 20

// Remote is the part of the API client the catalog calls.
type Remote interface {
	ListProducts(ctx context.Context, token string, q domain.ProductQuery) (pagination.Result[domain.Product], error)
	GetProduct(ctx context.Context, token, id string) (domain.Product, error)
	ListCategories(ctx context.Context, token string) ([]domain.Category, error)
	ListBrands(ctx context.Context, token string) ([]domain.Brand, error)
	GetBrand(ctx context.Context, token, id string) (domain.Brand, error)
}

// TokenSource yields the current API token, or "" when anonymous.
type TokenSource interface {
	Token() string
}

// Service implements catalog browsing.
type Service struct {
	remote Remote
	tokens TokenSource
	logger *slog.Logger
}

// NewService creates a catalog service.
func NewService(r Remote, tokens TokenSource, logger *slog.Logger) *Service {
	return &Service{remote: r, tokens: tokens, logger: logger}
}

// Products lists one page of products. A non-empty q.Search keeps only
// products whose title contains it, ignoring case; the API has no search, so
// matching happens here over the whole catalog.
func (s *Service) Products(ctx context.Context, q domain.ProductQuery) (pagination.Result[domain.Product], error) {
	search := strings.TrimSpace(q.Search)
	if search == "" {
		return s.remote.ListProducts(ctx, s.tokens.Token(), q)
	}

	params := pagination.DefaultParams()
	if q.Page > 0 {
		params.Page = q.Page
	}
	if q.Limit > 0 {
		params.Limit = min(q.Limit, pagination.MaxLimit)
	}

	matches, err := s.search(ctx, q, search)
	if err != nil {
		return pagination.Result[domain.Product]{}, err
	}
	return pagination.Paginate(matches, params), nil
}

func (s *Service) search(ctx context.Context, q domain.ProductQuery, term string) ([]domain.Product, error) {
	token := s.tokens.Token()
	needle := strings.ToLower(term)

	var matches []domain.Product
	walk := domain.ProductQuery{Page: 1, Limit: pagination.MaxLimit, Category: q.Category, Brand: q.Brand}
	for range maxSearchPages {
		page, err := s.remote.ListProducts(ctx, token, walk)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			if MatchesTitle(p, needle) {
				matches = append(matches, p)
			}
		}
		if !page.HasNext() {
			return matches, nil
		}
		walk.Page++
	}

	s.logger.WarnContext(ctx, "product search stopped at page limit", slog.Int("pages", maxSearchPages))
	return matches, nil
}

// MatchesTitle reports whether p's title contains needle, which must already
// be lower case.
func MatchesTitle(p domain.Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Title), needle)
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, id string) (domain.Product, error) {
	return s.remote.GetProduct(ctx, s.tokens.Token(), id)
}

// Categories lists all categories.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.remote.ListCategories(ctx, s.tokens.Token())
}

// Brands lists all brands.
func (s *Service) Brands(ctx context.Context) ([]domain.Brand, error) {
	return s.remote.ListBrands(ctx, s.tokens.Token())
}

// Brand fetches one brand.
func (s *Service) Brand(ctx context.Context, id string) (domain.Brand, error) {
	return s.remote.GetBrand(ctx, s.tokens.Token(), id)
}
