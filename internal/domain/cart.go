package domain

import "slices"

// ProductSnapshot is the product information a cart line carries for display.
type ProductSnapshot struct {
	Title     string  `json:"title"`
	Image     string  `json:"image"`
	UnitPrice float64 `json:"unitPrice"`
}

// CartLine is one product in the cart. Quantity is always at least 1.
type CartLine struct {
	LineID    string          `json:"lineId"`
	ProductID string          `json:"productId"`
	Product   ProductSnapshot `json:"product"`
	Quantity  int             `json:"quantity"`
}

// Cart is the locally mirrored server cart. TotalPrice is computed by the
// server and never recalculated locally.
type Cart struct {
	CartID     string     `json:"cartId,omitempty"`
	Items      []CartLine `json:"items"`
	TotalPrice float64    `json:"totalPrice"`

	Version uint64 `json:"-"`
}

// Seq returns the cart's publish counter.
func (c Cart) Seq() uint64 { return c.Version }

// Clone returns a copy that shares no memory with c.
func (c Cart) Clone() Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []CartLine{}
	}
	return c
}

// Line returns the line holding productID.
func (c Cart) Line(productID string) (CartLine, bool) {
	for _, l := range c.Items {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// NumItems is the number of distinct products in the cart, the figure shown on
// the cart badge.
func (c Cart) NumItems() int {
	return len(c.Items)
}

// Quantity is the total number of units across all lines.
func (c Cart) Quantity() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}
