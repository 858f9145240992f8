package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	cart     *cart.Synchronizer
	activity activity.Recorder
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(c *cart.Synchronizer, rec activity.Recorder, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: c, activity: rec, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,len=24,hexadecimal"`
}

// SetQuantityRequest is the JSON request body for changing a line's quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// cartView adds the badge counters to a cart.
type cartView struct {
	domain.Cart
	NumItems int `json:"numOfCartItems"`
	Quantity int `json:"quantity"`
}

func newCartView(c domain.Cart) cartView {
	if c.Items == nil {
		c.Items = []domain.CartLine{}
	}
	return cartView{Cart: c, NumItems: c.NumItems(), Quantity: c.Quantity()}
}

// --- Handlers ---

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Load(r.Context())
	h.write(w, r, c, err, "", nil)
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.cart.AddItem(r.Context(), req.ProductID)
	h.write(w, r, c, err, activity.ActionItemAdded, lineData(c, req.ProductID))
}

// SetQuantity handles PUT /api/cart/items/{productId}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseObjectID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	c, err := h.cart.SetQuantity(r.Context(), productID, req.Quantity)
	h.write(w, r, c, err, activity.ActionItemUpdated, lineData(c, productID))
}

// RemoveItem handles DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseObjectID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	c, err := h.cart.RemoveItem(r.Context(), productID)
	h.write(w, r, c, err, activity.ActionItemRemoved, lineData(c, productID))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.cart.Clear(r.Context())
	h.write(w, r, c, err, activity.ActionCleared, lineData(c, ""))
}

// write renders c, recording action when it is set and the call succeeded.
func (h *CartHandler) write(w http.ResponseWriter, r *http.Request, c domain.Cart, err error, action string, data any) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if action != "" {
		h.activity.Record(r.Context(), activity.Activity{Domain: activity.DomainCart, Action: action, Data: data})
	}
	httputil.WriteData(w, http.StatusOK, newCartView(c))
}

type cartActivity struct {
	CartID     string  `json:"cartId,omitempty"`
	ProductID  string  `json:"productId,omitempty"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

func lineData(c domain.Cart, productID string) cartActivity {
	d := cartActivity{CartID: c.CartID, ProductID: productID, TotalPrice: c.TotalPrice}
	if line, ok := c.Line(productID); ok {
		d.Quantity = line.Quantity
	}
	return d
}
