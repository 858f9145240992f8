package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// productDTO is the API's product document.
type productDTO struct {
	ID                 string     `json:"_id"`
	Title              string     `json:"title"`
	Slug               string     `json:"slug"`
	Description        string     `json:"description"`
	ImageCover         string     `json:"imageCover"`
	Images             []string   `json:"images"`
	Price              float64    `json:"price"`
	PriceAfterDiscount float64    `json:"priceAfterDiscount"`
	Quantity           int        `json:"quantity"`
	Sold               int        `json:"sold"`
	RatingsAverage     float64    `json:"ratingsAverage"`
	RatingsQuantity    int        `json:"ratingsQuantity"`
	Category           domain.Ref `json:"category"`
	Brand              domain.Ref `json:"brand"`
}

func (p productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:                 p.ID,
		Title:              p.Title,
		Slug:               p.Slug,
		Description:        p.Description,
		ImageCover:         p.ImageCover,
		Images:             p.Images,
		Price:              p.Price,
		PriceAfterDiscount: p.PriceAfterDiscount,
		Quantity:           p.Quantity,
		Sold:               p.Sold,
		RatingsAverage:     p.RatingsAverage,
		RatingsQuantity:    p.RatingsQuantity,
		Category:           p.Category,
		Brand:              p.Brand,
	}
}

// productRef is a product field the API sends either populated or as a bare
// ID, depending on the endpoint.
type productRef struct {
	ID        string
	Populated bool
	Product   productDTO
}

func (r *productRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*r = productRef{}
		return json.Unmarshal(data, &r.ID)
	}
	var p productDTO
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode product: %w", err)
	}
	*r = productRef{ID: p.ID, Populated: true, Product: p}
	return nil
}

type cartLineDTO struct {
	ID      string     `json:"_id"`
	Count   int        `json:"count"`
	Price   float64    `json:"price"`
	Product productRef `json:"product"`
}

type cartEnvelope struct {
	Status         string `json:"status"`
	NumOfCartItems int    `json:"numOfCartItems"`
	CartID         string `json:"cartId"`
	Data           struct {
		ID             string        `json:"_id"`
		Products       []cartLineDTO `json:"products"`
		TotalCartPrice float64       `json:"totalCartPrice"`
	} `json:"data"`
}

// toResult maps a cart payload. Lines whose product came back as a bare ID
// have no snapshot, so the result is marked partial.
func (e cartEnvelope) toResult() CartResult {
	cart := domain.Cart{
		CartID:     e.CartID,
		TotalPrice: e.Data.TotalCartPrice,
		Items:      make([]domain.CartLine, 0, len(e.Data.Products)),
	}
	if cart.CartID == "" {
		cart.CartID = e.Data.ID
	}
	partial := false
	for _, l := range e.Data.Products {
		line := domain.CartLine{
			LineID:    l.ID,
			ProductID: l.Product.ID,
			Quantity:  l.Count,
			Product:   domain.ProductSnapshot{UnitPrice: l.Price},
		}
		if l.Product.Populated {
			line.Product.Title = l.Product.Product.Title
			line.Product.Image = l.Product.Product.ImageCover
		} else {
			partial = true
		}
		cart.Items = append(cart.Items, line)
	}
	return CartResult{Cart: cart, Partial: partial}
}

type wishlistEnvelope struct {
	Status string       `json:"status"`
	Count  int          `json:"count"`
	Data   []productRef `json:"data"`
}

func (e wishlistEnvelope) toResult() WishlistResult {
	res := WishlistResult{Entries: make([]domain.WishlistEntry, 0, len(e.Data))}
	for _, ref := range e.Data {
		entry := domain.WishlistEntry{ProductID: ref.ID}
		if ref.Populated {
			entry.Title = ref.Product.Title
			entry.Image = ref.Product.ImageCover
			entry.Price = ref.Product.Price
		} else {
			res.Partial = true
		}
		res.Entries = append(res.Entries, entry)
	}
	return res
}

type listEnvelope[T any] struct {
	Results  int                 `json:"results"`
	Metadata pagination.Metadata `json:"metadata"`
	Data     []T                 `json:"data"`
}

type oneEnvelope[T any] struct {
	Data T `json:"data"`
}

type namedDTO struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

type signinResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

type messageResponse struct {
	StatusMsg string `json:"statusMsg"`
	Message   string `json:"message"`
}

type checkoutResponse struct {
	Status  string `json:"status"`
	Session struct {
		URL string `json:"url"`
	} `json:"session"`
}

type orderDTO struct {
	ID                string                 `json:"_id"`
	TotalOrderPrice   float64                `json:"totalOrderPrice"`
	PaymentMethodType string                 `json:"paymentMethodType"`
	IsPaid            bool                   `json:"isPaid"`
	IsDelivered       bool                   `json:"isDelivered"`
	ShippingAddress   domain.ShippingAddress `json:"shippingAddress"`
	CreatedAt         time.Time              `json:"createdAt"`
	CartItems         []cartLineDTO          `json:"cartItems"`
}

func (o orderDTO) toDomain() domain.Order {
	order := domain.Order{
		ID:                o.ID,
		TotalOrderPrice:   o.TotalOrderPrice,
		PaymentMethodType: o.PaymentMethodType,
		IsPaid:            o.IsPaid,
		IsDelivered:       o.IsDelivered,
		ShippingAddress:   o.ShippingAddress,
		CreatedAt:         o.CreatedAt,
		Items:             make([]domain.OrderItem, 0, len(o.CartItems)),
	}
	for _, l := range o.CartItems {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: l.Product.ID,
			Title:     l.Product.Product.Title,
			Image:     l.Product.Product.ImageCover,
			Price:     l.Price,
			Count:     l.Count,
		})
	}
	return order
}
