package remote_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/remote"
	"github.com/utafrali/storefront/internal/remote/mock"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

func setup(t *testing.T) (*mock.Server, *remote.Client, domain.User, string) {
	t.Helper()
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	user := srv.SeedUser("Ahmed Ali", "ahmed@example.com", "Secret123")
	return srv, srv.Client(), user, srv.IssueToken(user)
}

func TestSignIn(t *testing.T) {
	_, client, user, _ := setup(t)

	res, err := client.SignIn(context.Background(), domain.Credentials{Email: "ahmed@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.Name, res.User.Name)
	assert.Equal(t, user.Email, res.User.Email)
}

func TestSignIn_WrongPasswordIsUnauthorized(t *testing.T) {
	_, client, _, _ := setup(t)

	_, err := client.SignIn(context.Background(), domain.Credentials{Email: "ahmed@example.com", Password: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Incorrect email or password", appErr.Message)
}

func TestSignUp_DuplicateSurfacesServerMessage(t *testing.T) {
	_, client, _, _ := setup(t)

	err := client.SignUp(context.Background(), domain.Registration{
		Name: "Ahmed", Email: "ahmed@example.com", Password: "x", RePassword: "x", Phone: "01012345678",
	})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "Account Already Exists", appErr.Message)
}

func TestSignUp_ThenSignInWithSamePassword(t *testing.T) {
	_, client, _, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, client.SignUp(ctx, domain.Registration{
		Name: "Salma", Email: "salma@example.com", Password: "Secret456", RePassword: "Secret456", Phone: "01012345678",
	}))

	res, err := client.SignIn(ctx, domain.Credentials{Email: "salma@example.com", Password: "Secret456"})
	require.NoError(t, err)
	assert.Equal(t, "Salma", res.User.Name)

	_, err = client.SignIn(ctx, domain.Credentials{Email: "salma@example.com", Password: "secret456"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestForgotPassword(t *testing.T) {
	_, client, _, _ := setup(t)

	msg, err := client.ForgotPassword(context.Background(), domain.PasswordReset{Email: "ahmed@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Reset code sent to your email", msg)

	_, err = client.ForgotPassword(context.Background(), domain.PasswordReset{Email: "ghost@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrRemote))
}

func TestGetCart_NoCartIsEmpty(t *testing.T) {
	_, client, _, token := setup(t)

	res, err := client.GetCart(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, res.Cart.Empty())
	assert.NotNil(t, res.Cart.Items)
	assert.False(t, res.Partial)
}

func TestAddToCart_ResponseIsPartial(t *testing.T) {
	srv, client, user, token := setup(t)
	product := srv.Products()[0]

	res, err := client.AddToCart(context.Background(), token, product.ID)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, product.ID, res.Cart.Items[0].ProductID)
	assert.Equal(t, 1, res.Cart.Items[0].Quantity)
	assert.NotEmpty(t, res.Cart.CartID)
	assert.Equal(t, 1, srv.CartQuantity(user.ID, product.ID))

	full, err := client.GetCart(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, full.Partial)
	require.Len(t, full.Cart.Items, 1)
	assert.Equal(t, product.Title, full.Cart.Items[0].Product.Title)
	assert.Equal(t, product.Price, full.Cart.Items[0].Product.UnitPrice)
	assert.Equal(t, product.Price, full.Cart.TotalPrice)
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	srv, client, user, token := setup(t)
	ctx := context.Background()
	p1, p2 := srv.Products()[0], srv.Products()[1]

	_, err := client.AddToCart(ctx, token, p1.ID)
	require.NoError(t, err)
	_, err = client.AddToCart(ctx, token, p2.ID)
	require.NoError(t, err)

	res, err := client.UpdateCartItem(ctx, token, p1.ID, 3)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	line, ok := res.Cart.Line(p1.ID)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3*p1.Price+p2.Price, res.Cart.TotalPrice)

	res, err = client.RemoveCartItem(ctx, token, p1.ID)
	require.NoError(t, err)
	assert.Len(t, res.Cart.Items, 1)
	assert.Equal(t, 0, srv.CartQuantity(user.ID, p1.ID))

	require.NoError(t, client.ClearCart(ctx, token))
	assert.Equal(t, 0, srv.CartLines(user.ID))
}

func TestCartCalls_WithoutTokenNeverReachServer(t *testing.T) {
	srv, client, _, _ := setup(t)

	_, err := client.GetCart(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
	assert.Equal(t, 0, srv.TotalCalls())
}

func TestRevokedTokenIsUnauthorized(t *testing.T) {
	srv, client, _, token := setup(t)
	srv.Revoke(token)

	_, err := client.GetWishlist(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/wishlist"))
}

func TestWishlist(t *testing.T) {
	srv, client, _, token := setup(t)
	ctx := context.Background()
	product := srv.Products()[2]

	res, err := client.AddToWishlist(ctx, token, product.ID)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, product.ID, res.Entries[0].ProductID)
	assert.False(t, res.Entries[0].HasDetails())

	full, err := client.GetWishlist(ctx, token)
	require.NoError(t, err)
	assert.False(t, full.Partial)
	require.Len(t, full.Entries, 1)
	assert.Equal(t, product.Title, full.Entries[0].Title)

	res, err = client.RemoveFromWishlist(ctx, token, product.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestCatalog(t *testing.T) {
	srv, client, _, _ := setup(t)
	ctx := context.Background()

	page, err := client.ListProducts(ctx, "", domain.ProductQuery{Page: 1, Limit: 4})
	require.NoError(t, err)
	assert.Len(t, page.Data, 4)
	assert.Equal(t, 2, page.Metadata.NumberOfPages)
	assert.True(t, page.HasNext())

	want := srv.Products()[0]
	got, err := client.GetProduct(ctx, "", want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Brand.Name, got.Brand.Name)

	_, err = client.GetProduct(ctx, "", "000000000000000000000000")
	assert.True(t, remote.IsNotFound(err))

	brands, err := client.ListBrands(ctx, "")
	require.NoError(t, err)
	require.Len(t, brands, 2)

	brand, err := client.GetBrand(ctx, "", brands[1].ID)
	require.NoError(t, err)
	assert.Equal(t, brands[1].Name, brand.Name)

	categories, err := client.ListCategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	byBrand, err := client.ListProducts(ctx, "", domain.ProductQuery{Brand: brands[0].ID})
	require.NoError(t, err)
	assert.Len(t, byBrand.Data, 3)
}

func TestCheckoutAndOrders(t *testing.T) {
	srv, client, user, token := setup(t)
	ctx := context.Background()
	product := srv.Products()[0]
	addr := domain.ShippingAddress{Details: "12 Nile St", Phone: "01012345678", City: "Cairo"}

	cart, err := client.AddToCart(ctx, token, product.ID)
	require.NoError(t, err)

	session, err := client.CreateCheckoutSession(ctx, token, cart.Cart.CartID, "http://localhost:3000/allorders", addr)
	require.NoError(t, err)
	assert.Contains(t, session.URL, cart.Cart.CartID)

	_, ok := srv.PlaceOrder(user.ID, addr)
	require.True(t, ok)

	orders, err := client.ListOrders(ctx, token, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, product.Price, orders[0].TotalOrderPrice)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, product.Title, orders[0].Items[0].Title)
	assert.Equal(t, "Cairo", orders[0].ShippingAddress.City)

	mine, err := client.ListOrders(ctx, token, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestServerErrorKeepsMessage(t *testing.T) {
	srv, client, _, token := setup(t)
	srv.FailNext(http.MethodGet, "/cart", http.StatusInternalServerError, "database is down")

	_, err := client.GetCart(context.Background(), token)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, "database is down", appErr.Message)
}

func TestRefusedCallsLogByStatusClass(t *testing.T) {
	status := atomic.Int32{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"message":"nope"}`))
	}))
	defer ts.Close()

	var buf bytes.Buffer
	hc := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("refused-test"), logger.Nop())
	client := remote.New(ts.URL, hc, logger.NewWithWriter("storefront", "info", &buf))

	tests := []struct {
		status int
		level  string
	}{
		{http.StatusBadRequest, "INFO"},
		{http.StatusNotFound, "INFO"},
		{http.StatusNotModified, "WARN"},
	}
	for _, tt := range tests {
		buf.Reset()
		status.Store(int32(tt.status))

		_, err := client.ListBrands(context.Background(), "")
		require.Error(t, err, "status %d", tt.status)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), "status %d", tt.status)
		assert.Equal(t, "storefront api refused call", rec["msg"])
		assert.Equal(t, tt.level, rec["level"], "status %d", tt.status)
		assert.EqualValues(t, tt.status, rec["status"])
	}
}

func TestHeaderConventions(t *testing.T) {
	var tokenHeader, authHeader atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenHeader.Store(r.Header.Get("token"))
		authHeader.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	hc := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("header-test"), logger.Nop())
	client := remote.New(ts.URL, hc, logger.Nop())

	_, err := client.GetWishlist(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", tokenHeader.Load())
	assert.Equal(t, "", authHeader.Load())

	_, err = client.ListCategories(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "", tokenHeader.Load())
	assert.Equal(t, "Bearer tok", authHeader.Load())

	_, err = client.ListCategories(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", authHeader.Load())
}

func TestUnreachableServerIsRemoteError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	hc := httpclient.NewCircuitBreakerClient(httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig("unreachable-test"), logger.Nop())
	client := remote.New(url, hc, logger.Nop())

	_, err := client.ListBrands(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRemote))
	assert.False(t, apperrors.IsAuth(err))
}
