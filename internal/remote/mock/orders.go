package mock

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
)

// PlaceOrder turns the user's cart into a paid order, as the payment
// provider's webhook would after a completed checkout, and empties the cart.
func (s *Server) PlaceOrder(userID string, addr domain.ShippingAddress) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok || len(c.lines) == 0 {
		return domain.Order{}, false
	}

	order := domain.Order{
		ID:                newID(),
		PaymentMethodType: "card",
		IsPaid:            true,
		ShippingAddress:   addr,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
	for _, l := range c.lines {
		p, _ := s.productLocked(l.productID)
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			Image:     p.ImageCover,
			Price:     p.Price,
			Count:     l.count,
		})
		order.TotalOrderPrice += p.Price * float64(l.count)
	}
	s.orders[userID] = append(s.orders[userID], order)
	delete(s.carts, userID)
	return order, true
}

func (s *Server) checkoutSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	returnURL := r.URL.Query().Get("url")
	cartID := chi.URLParam(r, "cartId")

	s.mu.Lock()
	c, ok := s.carts[userID(r)]
	s.mu.Unlock()

	if !ok || c.id != cartID {
		writeFail(w, http.StatusNotFound, "There is no such cart with id "+cartID)
		return
	}

	session := "https://checkout.stripe.test/c/pay/cs_" + cartID + "?" + url.Values{"success_url": {returnURL}}.Encode()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"session": map[string]string{"url": session},
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "userId")
	if owner == "me" {
		owner = userID(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders[owner]
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		items := make([]map[string]any, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, map[string]any{
				"count": it.Count,
				"_id":   newID(),
				"price": it.Price,
				"product": map[string]any{
					"_id":        it.ProductID,
					"title":      it.Title,
					"imageCover": it.Image,
				},
			})
		}
		out = append(out, map[string]any{
			"_id":               o.ID,
			"totalOrderPrice":   o.TotalOrderPrice,
			"paymentMethodType": o.PaymentMethodType,
			"isPaid":            o.IsPaid,
			"isDelivered":       o.IsDelivered,
			"shippingAddress":   o.ShippingAddress,
			"createdAt":         o.CreatedAt,
			"cartItems":         items,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
