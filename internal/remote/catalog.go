package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ListProducts fetches one page of products. The token is optional.
func (c *Client) ListProducts(ctx context.Context, token string, q domain.ProductQuery) (pagination.Result[domain.Product], error) {
	params := pagination.DefaultParams()
	if q.Page > 0 {
		params.Page = q.Page
	}
	if q.Limit > 0 {
		params.Limit = min(q.Limit, pagination.MaxLimit)
	}
	query := url.Values{}
	params.Encode(query)
	if q.Category != "" {
		query.Set("category[in]", q.Category)
	}
	if q.Brand != "" {
		query.Set("brand", q.Brand)
	}

	var env listEnvelope[productDTO]
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/products",
		route:  "/products",
		query:  query,
		token:  token,
		auth:   authOptionalBearer,
		out:    &env,
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, err
	}

	products := make([]domain.Product, len(env.Data))
	for i, p := range env.Data {
		products[i] = p.toDomain()
	}
	return pagination.Result[domain.Product]{
		Results:  env.Results,
		Metadata: env.Metadata,
		Data:     products,
	}, nil
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, token, id string) (domain.Product, error) {
	var env oneEnvelope[productDTO]
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/products/" + url.PathEscape(id),
		route:  "/products/:id",
		token:  token,
		auth:   authOptionalBearer,
		out:    &env,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return env.Data.toDomain(), nil
}

// ListCategories fetches all categories.
func (c *Client) ListCategories(ctx context.Context, token string) ([]domain.Category, error) {
	named, err := c.listNamed(ctx, token, "/categories")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, len(named))
	for i, n := range named {
		out[i] = domain.Category{ID: n.ID, Name: n.Name, Slug: n.Slug, Image: n.Image}
	}
	return out, nil
}

// ListBrands fetches all brands.
func (c *Client) ListBrands(ctx context.Context, token string) ([]domain.Brand, error) {
	named, err := c.listNamed(ctx, token, "/brands")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Brand, len(named))
	for i, n := range named {
		out[i] = domain.Brand{ID: n.ID, Name: n.Name, Slug: n.Slug, Image: n.Image}
	}
	return out, nil
}

// GetBrand fetches one brand.
func (c *Client) GetBrand(ctx context.Context, token, id string) (domain.Brand, error) {
	var env oneEnvelope[namedDTO]
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/brands/" + url.PathEscape(id),
		route:  "/brands/:id",
		token:  token,
		auth:   authOptionalBearer,
		out:    &env,
	})
	if err != nil {
		return domain.Brand{}, err
	}
	n := env.Data
	return domain.Brand{ID: n.ID, Name: n.Name, Slug: n.Slug, Image: n.Image}, nil
}

func (c *Client) listNamed(ctx context.Context, token, path string) ([]namedDTO, error) {
	var env listEnvelope[namedDTO]
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   path,
		route:  path,
		token:  token,
		auth:   authOptionalBearer,
		out:    &env,
	})
	return env.Data, err
}
