// Package checkout starts payment for the current cart and lists past orders.
package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// Remote is the part of the API client checkout calls.
type Remote interface {
	CreateCheckoutSession(ctx context.Context, token, cartID, returnURL string, addr domain.ShippingAddress) (domain.CheckoutSession, error)
	ListOrders(ctx context.Context, token, userID string) ([]domain.Order, error)
}

// Cart yields the loaded cart.
type Cart interface {
	Load(ctx context.Context) (domain.Cart, error)
}

// Session is the part of the session store checkout needs.
type Session interface {
	Current() domain.Session
	HandleUnauthorized(ctx context.Context, token string) bool
}

// Service implements checkout and order history.
type Service struct {
	remote    Remote
	cart      Cart
	session   Session
	returnURL string
	logger    *slog.Logger
}

// NewService creates a checkout service. returnURL is where the payment page
// sends the customer afterwards.
func NewService(r Remote, c Cart, s Session, returnURL string, logger *slog.Logger) *Service {
	return &Service{remote: r, cart: c, session: s, returnURL: returnURL, logger: logger}
}

// Checkout validates the address and opens a payment session for the cart.
func (s *Service) Checkout(ctx context.Context, addr domain.ShippingAddress) (domain.CheckoutSession, error) {
	if err := validator.Validate(addr); err != nil {
		return domain.CheckoutSession{}, err
	}
	sess := s.session.Current()
	if !sess.Authenticated() {
		return domain.CheckoutSession{}, apperrors.Unauthenticated("log in to check out")
	}

	cart, err := s.cart.Load(ctx)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if cart.Empty() || cart.CartID == "" {
		return domain.CheckoutSession{}, apperrors.InvalidInput("your cart is empty")
	}

	out, err := s.remote.CreateCheckoutSession(ctx, sess.Token, cart.CartID, s.returnURL, addr)
	if err != nil {
		return domain.CheckoutSession{}, s.failed(ctx, "checkout", sess.Token, err)
	}
	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("cart_id", cart.CartID),
		slog.Int("lines", cart.NumItems()),
	)
	return out, nil
}

// Orders lists the signed-in user's orders, newest last as the API sends them.
func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	sess := s.session.Current()
	if !sess.Authenticated() {
		return nil, apperrors.Unauthenticated("log in to see your orders")
	}

	orders, err := s.remote.ListOrders(ctx, sess.Token, sess.UserID())
	if err != nil {
		return nil, s.failed(ctx, "orders", sess.Token, err)
	}
	return orders, nil
}

func (s *Service) failed(ctx context.Context, op, token string, err error) error {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		s.session.HandleUnauthorized(ctx, token)
		return apperrors.Unauthenticated("your session has expired, please log in again")
	}
	s.logger.ErrorContext(ctx, "checkout operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return err
}
