package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the storefront error taxonomy. Match them with errors.Is.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRemote          = errors.New("remote error")
	ErrStorage         = errors.New("storage error")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
	ErrServiceUnavail  = errors.New("service unavailable")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error. It is the InvalidArgument kind of the
// taxonomy: the caller asked for something the client refuses to send.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthenticated creates a 401 error for operations attempted without a
// session. No request reaches the upstream API.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthenticated,
	}
}

// Unauthorized creates a 401 error for credentials the upstream API rejected.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Remote creates an error for a non-2xx upstream answer. The message is the
// upstream's own text so it can be shown to the user as is. Upstream 5xx
// answers surface as 502.
func Remote(status int, message string) *AppError {
	code := http.StatusBadGateway
	if status >= 400 && status < 500 {
		code = status
	}
	return &AppError{
		Code:    "REMOTE_ERROR",
		Message: message,
		Status:  code,
		Err:     ErrRemote,
	}
}

// Storage creates an error for a local cache failure. Storage errors are never
// surfaced to users; callers log them and carry on with a cache miss.
func Storage(op string, err error) *AppError {
	return &AppError{
		Code:    "STORAGE_ERROR",
		Message: op,
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrStorage, err),
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// IsAuth reports whether err means the user has to log in again.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrUnauthenticated)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
