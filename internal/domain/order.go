package domain

import "time"

// ShippingAddress is where a checkout order is delivered.
type ShippingAddress struct {
	Details string `json:"details" validate:"required,min=3"`
	Phone   string `json:"phone" validate:"required,phone"`
	City    string `json:"city" validate:"required"`
}

// CheckoutSession is a hosted payment page for the current cart.
type CheckoutSession struct {
	URL string `json:"url"`
}

// OrderItem is one product line of a placed order.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Count     int     `json:"count"`
}

// Order is a placed order from the customer's history.
type Order struct {
	ID                string          `json:"id"`
	Items             []OrderItem     `json:"items"`
	TotalOrderPrice   float64         `json:"totalOrderPrice"`
	PaymentMethodType string          `json:"paymentMethodType"`
	IsPaid            bool            `json:"isPaid"`
	IsDelivered       bool            `json:"isDelivered"`
	ShippingAddress   ShippingAddress `json:"shippingAddress"`
	CreatedAt         time.Time       `json:"createdAt"`
}
