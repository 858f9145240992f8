package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// UpstreamErrorResponse mirrors the error body of the storefront API:
//
//	{"statusMsg":"fail","message":"Invalid Token. please login again"}
//
// Validation failures come back as {"message":"fail","errors":{"msg":"..."}},
// in which case the nested msg is the useful text.
type UpstreamErrorResponse struct {
	StatusMsg string `json:"statusMsg"`
	Message   string `json:"message"`
	Errors    *struct {
		Param string `json:"param"`
		Msg   string `json:"msg"`
	} `json:"errors"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. A 401 becomes ErrUnauthorized; every other status
// becomes ErrRemote carrying the upstream message verbatim.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Remote(resp.StatusCode,
			fmt.Sprintf("%s returned status %d (failed to read body: %v)", serviceName, resp.StatusCode, err))
	}

	return mapUpstreamError(resp.StatusCode, upstreamMessage(bodyBytes, serviceName, resp.StatusCode))
}

// upstreamMessage extracts the user-facing text from an error body. Bodies
// that are not the API's JSON shape yield a generic message naming the status.
func upstreamMessage(body []byte, serviceName string, status int) string {
	var upstream UpstreamErrorResponse
	if json.Unmarshal(body, &upstream) == nil {
		if upstream.Errors != nil && upstream.Errors.Msg != "" {
			return upstream.Errors.Msg
		}
		if upstream.Message != "" && upstream.Message != "fail" {
			return upstream.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<") || len(text) > 200 {
		return fmt.Sprintf("%s returned status %d", serviceName, status)
	}
	return fmt.Sprintf("%s returned status %d: %s", serviceName, status, text)
}

func mapUpstreamError(status int, message string) error {
	if status == http.StatusUnauthorized {
		return apperrors.Unauthorized(message)
	}
	return apperrors.Remote(status, message)
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

// IsSuccess returns true for 2xx status codes.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
