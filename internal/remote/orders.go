package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// CreateCheckoutSession opens a hosted payment page for cartID. The payment
// provider sends the customer back to returnURL.
func (c *Client) CreateCheckoutSession(ctx context.Context, token, cartID, returnURL string, addr domain.ShippingAddress) (domain.CheckoutSession, error) {
	var resp checkoutResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/orders/checkout-session/" + url.PathEscape(cartID),
		route:  "/orders/checkout-session/:cartId",
		query:  url.Values{"url": {returnURL}},
		token:  token,
		auth:   authTokenHeader,
		in:     map[string]domain.ShippingAddress{"shippingAddress": addr},
		out:    &resp,
	})
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	return domain.CheckoutSession{URL: resp.Session.URL}, nil
}

// ListOrders fetches the order history of userID, or of the token's owner
// when userID is empty.
func (c *Client) ListOrders(ctx context.Context, token, userID string) ([]domain.Order, error) {
	owner := userID
	if owner == "" {
		owner = "me"
	}
	var dtos []orderDTO
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/orders/user/" + url.PathEscape(owner),
		route:  "/orders/user/:userId",
		token:  token,
		auth:   authTokenHeader,
		out:    &dtos,
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, len(dtos))
	for i, o := range dtos {
		orders[i] = o.toDomain()
	}
	return orders, nil
}
