package remote

import (
	"context"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
)

// SignInResult is a successful sign-in.
type SignInResult struct {
	Token string
	User  domain.User
}

// SignIn exchanges credentials for a token. A 401 here means wrong
// credentials, not an expired session.
func (c *Client) SignIn(ctx context.Context, creds domain.Credentials) (SignInResult, error) {
	var resp signinResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/signin",
		route:  "/auth/signin",
		in:     creds,
		out:    &resp,
	})
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Token: resp.Token, User: resp.User}, nil
}

// SignUp creates an account. It does not sign the user in.
func (c *Client) SignUp(ctx context.Context, reg domain.Registration) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/signup",
		route:  "/auth/signup",
		in:     reg,
		out:    &messageResponse{},
	})
}

// ForgotPassword asks the API to email a reset code and returns its message.
func (c *Client) ForgotPassword(ctx context.Context, req domain.PasswordReset) (string, error) {
	var resp messageResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/forgotPasswords",
		route:  "/auth/forgotPasswords",
		in:     req,
		out:    &resp,
	})
	return resp.Message, err
}
