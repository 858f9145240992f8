package domain

// Ref is a named reference to a category, subcategory or brand embedded in a
// product.
type Ref struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Image string `json:"image,omitempty"`
}

// Product is a catalog item.
type Product struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Slug               string   `json:"slug,omitempty"`
	Description        string   `json:"description,omitempty"`
	ImageCover         string   `json:"imageCover"`
	Images             []string `json:"images,omitempty"`
	Price              float64  `json:"price"`
	PriceAfterDiscount float64  `json:"priceAfterDiscount,omitempty"`
	Quantity           int      `json:"quantity"`
	Sold               int      `json:"sold"`
	RatingsAverage     float64  `json:"ratingsAverage"`
	RatingsQuantity    int      `json:"ratingsQuantity"`
	Category           Ref      `json:"category"`
	Brand              Ref      `json:"brand"`
}

// EffectivePrice is what the customer pays per unit.
func (p Product) EffectivePrice() float64 {
	if p.PriceAfterDiscount > 0 && p.PriceAfterDiscount < p.Price {
		return p.PriceAfterDiscount
	}
	return p.Price
}

// Category is a top-level product category.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

// Brand is a product brand.
type Brand struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

// ProductQuery filters a product listing.
type ProductQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
	Brand    string
}
