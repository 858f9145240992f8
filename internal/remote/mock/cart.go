package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// CartQuantity returns how many units of productID the user's cart holds.
func (s *Server) CartQuantity(userID, productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return 0
	}
	for _, l := range c.lines {
		if l.productID == productID {
			return l.count
		}
	}
	return 0
}

// CartLines returns the number of lines in the user's cart.
func (s *Server) CartLines(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[userID]; ok {
		return len(c.lines)
	}
	return 0
}

// cartJSON renders a cart. populated selects between full product documents
// and bare IDs, mirroring the API's GET and POST answers. The caller holds s.mu.
func (s *Server) cartJSON(owner string, c *cart, populated bool, message string) map[string]any {
	products := make([]map[string]any, 0, len(c.lines))
	total := 0.0
	for _, l := range c.lines {
		p, _ := s.productLocked(l.productID)
		var product any = l.productID
		if populated {
			product = map[string]any{
				"_id":        p.ID,
				"id":         p.ID,
				"title":      p.Title,
				"imageCover": p.ImageCover,
				"category":   p.Category,
				"brand":      p.Brand,
				"quantity":   p.Quantity,
			}
		}
		products = append(products, map[string]any{
			"count":   l.count,
			"_id":     l.id,
			"product": product,
			"price":   p.Price,
		})
		total += p.Price * float64(l.count)
	}

	out := map[string]any{
		"status":         "success",
		"numOfCartItems": len(c.lines),
		"cartId":         c.id,
		"data": map[string]any{
			"_id":            c.id,
			"cartOwner":      owner,
			"products":       products,
			"totalCartPrice": total,
		},
	}
	if message != "" {
		out["message"] = message
	}
	return out
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	owner := userID(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		writeFail(w, http.StatusNotFound, "No cart exist for this user: "+owner)
		return
	}
	writeJSON(w, http.StatusOK, s.cartJSON(owner, c, true, ""))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
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
		writeFail(w, http.StatusNotFound, fmt.Sprintf("No product for this id %s", req.ProductID))
		return
	}
	c, ok := s.carts[owner]
	if !ok {
		c = &cart{id: newID()}
		s.carts[owner] = c
	}
	i := slices.IndexFunc(c.lines, func(l line) bool { return l.productID == req.ProductID })
	if i >= 0 {
		c.lines[i].count++
	} else {
		c.lines = append(c.lines, line{id: newID(), productID: req.ProductID, count: 1})
	}
	writeJSON(w, http.StatusOK, s.cartJSON(owner, c, false, "Product added successfully to your cart"))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count json.RawMessage `json:"count"`
	}
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := parseCount(req.Count)
	if err != nil || count < 1 {
		writeValidation(w, "count", "count must be a positive number")
		return
	}

	owner := userID(r)
	productID := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		writeFail(w, http.StatusNotFound, "No cart exist for this user: "+owner)
		return
	}
	i := slices.IndexFunc(c.lines, func(l line) bool { return l.productID == productID })
	if i < 0 {
		writeFail(w, http.StatusNotFound, "there is no item for this id: "+productID)
		return
	}
	c.lines[i].count = count
	writeJSON(w, http.StatusOK, s.cartJSON(owner, c, true, ""))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	owner := userID(r)
	productID := chi.URLParam(r, "productId")

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		writeFail(w, http.StatusNotFound, "No cart exist for this user: "+owner)
		return
	}
	c.lines = slices.DeleteFunc(c.lines, func(l line) bool { return l.productID == productID })
	writeJSON(w, http.StatusOK, s.cartJSON(owner, c, true, ""))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.carts, userID(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

// parseCount accepts the count as a JSON number or a numeric string; the
// API's own web client sends the latter.
func parseCount(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return strconv.Atoi(str)
}
