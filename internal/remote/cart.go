package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
)

// CartResult is the server's cart after a call. Partial is set when the
// payload did not carry product details, in which case the caller should
// re-fetch before rendering.
type CartResult struct {
	Cart    domain.Cart
	Partial bool
}

// GetCart fetches the user's cart. A user without a cart gets an empty one.
func (c *Client) GetCart(ctx context.Context, token string) (CartResult, error) {
	var env cartEnvelope
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/cart",
		route:  "/cart",
		token:  token,
		auth:   authTokenHeader,
		out:    &env,
	})
	if IsNotFound(err) {
		return CartResult{Cart: domain.Cart{Items: []domain.CartLine{}}}, nil
	}
	if err != nil {
		return CartResult{}, err
	}
	return env.toResult(), nil
}

// AddToCart adds one unit of productID. Adding a product already in the cart
// increments its quantity server-side.
func (c *Client) AddToCart(ctx context.Context, token, productID string) (CartResult, error) {
	return c.cartCall(ctx, call{
		method: http.MethodPost,
		path:   "/cart",
		route:  "/cart",
		token:  token,
		in:     map[string]string{"productId": productID},
	})
}

// UpdateCartItem sets the quantity of productID.
func (c *Client) UpdateCartItem(ctx context.Context, token, productID string, count int) (CartResult, error) {
	return c.cartCall(ctx, call{
		method: http.MethodPut,
		path:   "/cart/" + url.PathEscape(productID),
		route:  "/cart/:productId",
		token:  token,
		in:     map[string]string{"count": strconv.Itoa(count)},
	})
}

// RemoveCartItem deletes the line holding productID.
func (c *Client) RemoveCartItem(ctx context.Context, token, productID string) (CartResult, error) {
	return c.cartCall(ctx, call{
		method: http.MethodDelete,
		path:   "/cart/" + url.PathEscape(productID),
		route:  "/cart/:productId",
		token:  token,
	})
}

// ClearCart deletes the whole cart.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/cart",
		route:  "/cart",
		token:  token,
		auth:   authTokenHeader,
	})
}

func (c *Client) cartCall(ctx context.Context, cl call) (CartResult, error) {
	var env cartEnvelope
	cl.auth = authTokenHeader
	cl.out = &env
	if err := c.do(ctx, cl); err != nil {
		return CartResult{}, err
	}
	return env.toResult(), nil
}
