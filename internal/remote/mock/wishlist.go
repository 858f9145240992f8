package mock

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

// Wishlist returns the product IDs the user favorited.
func (s *Server) Wishlist(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.wishlists[userID])
}

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.wishlists[userID(r)]
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.productLocked(id); ok {
			data = append(data, productJSON(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "count": len(data), "data": data})
}

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	owner := userID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.productLocked(req.ProductID); !ok {
		writeFail(w, http.StatusNotFound, "No product for this id "+req.ProductID)
		return
	}
	if !slices.Contains(s.wishlists[owner], req.ProductID) {
		s.wishlists[owner] = append(s.wishlists[owner], req.ProductID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Product added successfully to your wishlist",
		"data":    slices.Clone(s.wishlists[owner]),
	})
}

func (s *Server) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	owner := userID(r)
	productID := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlists[owner] = slices.DeleteFunc(s.wishlists[owner], func(id string) bool { return id == productID })
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Product removed successfully to your wishlist",
		"data":    slices.Clone(s.wishlists[owner]),
	})
}
