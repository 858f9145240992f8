package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/checkout"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CheckoutHandler handles checkout and order history.
type CheckoutHandler struct {
	checkout *checkout.Service
	activity activity.Recorder
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *checkout.Service, rec activity.Recorder, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, activity: rec, logger: logger}
}

// Checkout handles POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var addr domain.ShippingAddress
	if err := validator.Decode(r, &addr); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	sess, err := h.checkout.Checkout(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.activity.Record(r.Context(), activity.Activity{
		Domain: activity.DomainCheckout,
		Action: activity.ActionStarted,
		Data:   map[string]string{"city": addr.City},
	})
	httputil.WriteData(w, http.StatusCreated, sess)
}

// ListOrders handles GET /api/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.Orders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httputil.WriteData(w, http.StatusOK, orders)
}
