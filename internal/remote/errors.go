package remote

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// transportError keeps AppErrors from the circuit breaker as they are and
// turns network failures into a Remote error the UI can show.
func (c *Client) transportError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, httpclient.ErrCircuitOpen) || errors.Is(err, httpclient.ErrTooManyRequests) {
		return apperrors.ServiceUnavailable("the store is temporarily unavailable, try again shortly")
	}
	return &apperrors.AppError{
		Code:    "REMOTE_ERROR",
		Message: "could not reach the store, check your connection",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", apperrors.ErrRemote, err),
	}
}

// IsNotFound reports whether err is the API answering 404.
func IsNotFound(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && errors.Is(err, apperrors.ErrRemote) && appErr.Status == http.StatusNotFound
}
