package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/wishlist"
	"github.com/utafrali/storefront/pkg/httputil"
)

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	wishlist *wishlist.Synchronizer
	activity activity.Recorder
	logger   *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(w *wishlist.Synchronizer, rec activity.Recorder, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: w, activity: rec, logger: logger}
}

type toggleResponse struct {
	Favorited bool            `json:"favorited"`
	Wishlist  domain.Wishlist `json:"wishlist"`
}

// Get handles GET /api/wishlist
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, err := h.wishlist.Load(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, list)
}

// Toggle handles POST /api/wishlist/{productId}/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseObjectID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	favorited, list, err := h.wishlist.Toggle(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.activity.Record(r.Context(), activity.Activity{
		Domain: activity.DomainWishlist,
		Action: activity.ActionToggled,
		Data:   map[string]any{"productId": productID, "favorited": favorited},
	})
	httputil.WriteData(w, http.StatusOK, toggleResponse{Favorited: favorited, Wishlist: list})
}
