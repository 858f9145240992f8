package domain

import "slices"

// WishlistEntry is one favorited product.
type WishlistEntry struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title,omitempty"`
	Image     string  `json:"image,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// HasDetails reports whether the entry carries display data beyond its ID.
func (e WishlistEntry) HasDetails() bool {
	return e.Title != ""
}

// Wishlist is the set of favorited products, keyed by ProductID, in server order.
type Wishlist struct {
	Entries []WishlistEntry `json:"entries"`

	Version uint64 `json:"-"`
}

// Seq returns the wishlist's publish counter.
func (w Wishlist) Seq() uint64 { return w.Version }

// Clone returns a copy that shares no memory with w.
func (w Wishlist) Clone() Wishlist {
	w.Entries = slices.Clone(w.Entries)
	if w.Entries == nil {
		w.Entries = []WishlistEntry{}
	}
	return w
}

// Contains reports whether productID is in the wishlist.
func (w Wishlist) Contains(productID string) bool {
	return slices.ContainsFunc(w.Entries, func(e WishlistEntry) bool { return e.ProductID == productID })
}

// ProductIDs returns the IDs of all entries in order.
func (w Wishlist) ProductIDs() []string {
	ids := make([]string, len(w.Entries))
	for i, e := range w.Entries {
		ids[i] = e.ProductID
	}
	return ids
}
