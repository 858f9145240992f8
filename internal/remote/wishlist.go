package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// WishlistResult is the server's wishlist after a call. Add and remove answer
// with product IDs only; Partial marks such results.
type WishlistResult struct {
	Entries []domain.WishlistEntry
	Partial bool
}

// GetWishlist fetches the user's wishlist with product details.
func (c *Client) GetWishlist(ctx context.Context, token string) (WishlistResult, error) {
	return c.wishlistCall(ctx, call{
		method: http.MethodGet,
		path:   "/wishlist",
		route:  "/wishlist",
		token:  token,
	})
}

// AddToWishlist favorites productID.
func (c *Client) AddToWishlist(ctx context.Context, token, productID string) (WishlistResult, error) {
	return c.wishlistCall(ctx, call{
		method: http.MethodPost,
		path:   "/wishlist",
		route:  "/wishlist",
		token:  token,
		in:     map[string]string{"productId": productID},
	})
}

// RemoveFromWishlist unfavorites productID.
func (c *Client) RemoveFromWishlist(ctx context.Context, token, productID string) (WishlistResult, error) {
	return c.wishlistCall(ctx, call{
		method: http.MethodDelete,
		path:   "/wishlist/" + url.PathEscape(productID),
		route:  "/wishlist/:productId",
		token:  token,
	})
}

func (c *Client) wishlistCall(ctx context.Context, cl call) (WishlistResult, error) {
	var env wishlistEnvelope
	cl.auth = authTokenHeader
	cl.out = &env
	if err := c.do(ctx, cl); err != nil {
		return WishlistResult{}, err
	}
	return env.toResult(), nil
}
