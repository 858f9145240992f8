package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteData_WrapsInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]int{"numOfCartItems": 2})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"numOfCartItems":2}}`, rec.Body.String())
}

func TestWriteJSON_StatusCodes(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusCreated, http.StatusNotFound, http.StatusTeapot}
	for _, code := range codes {
		rec := httptest.NewRecorder()
		WriteJSON(rec, code, Response{})
		assert.Equal(t, code, rec.Code)
	}
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.NotFound("product", "6428ebc6dc1175abc65ca0b9"), testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestWriteError_RemoteMessageShownVerbatim(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cart", nil)

	WriteError(rec, req, apperrors.Remote(http.StatusBadRequest, "Product not found in cart"), testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "REMOTE_ERROR", body.Code)
	assert.Equal(t, "Product not found in cart", body.Message)
}

func TestWriteError_WrappedUnauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

	WriteError(rec, req, fmt.Errorf("load cart: %w", apperrors.Unauthenticated("log in first")), testLogger())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, rec).Code)
}

func TestWriteError_SentinelNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.ErrNotFound, testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestWriteError_ValidationError(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	err := validator.Validate(payload{Email: "nope"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", nil)
	WriteError(rec, req, err, testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Contains(t, body.Fields, "email")
}

func TestWriteError_UnknownError_Returns500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, fmt.Errorf("nil pointer somewhere"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "nil pointer")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)

	WriteError(rec, req, apperrors.Conflict("toggle in progress"), testLogger())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "corr-123", decodeError(t, rec).RequestID)
}

func TestWriteError_NoCorrelationID_OmitsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	WriteError(rec, req, apperrors.ErrNotFound, testLogger())

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))

	var errObj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["error"], &errObj))
	_, hasRequestID := errObj["request_id"]
	assert.False(t, hasRequestID, "request_id should be omitted from JSON when correlation_id is not in context")
}

// --- ParseObjectID ---

func TestParseObjectID_Valid(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseObjectID(rec, "6428ebc6dc1175abc65ca0b9")
	assert.True(t, ok)
	assert.Equal(t, "6428ebc6dc1175abc65ca0b9", id)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseObjectID_Invalid_Returns400(t *testing.T) {
	for _, param := range []string{"", "abc", "6428ebc6dc1175abc65ca0bz", "6428ebc6dc1175abc65ca0b9ff"} {
		t.Run(param, func(t *testing.T) {
			rec := httptest.NewRecorder()
			_, ok := ParseObjectID(rec, param)
			assert.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
		})
	}
}
