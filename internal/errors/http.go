package errors

import (
	"fmt"
	"io"
	"net/http"
)

// FromHTTPResponse maps a non-2xx provider response onto the error
// taxonomy so the retry policy can distinguish rate limits, transient
// failures, and hard auth/validation errors. Reads at most 512 bytes
// of the body for the message.
func FromHTTPResponse(provider string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s provider returned %d: %s", provider, resp.StatusCode, string(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimitError(msg, nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return AuthError(msg, nil)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return ValidationError(msg, nil)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return New(ErrCodeProviderTimeout, msg, nil)
	case resp.StatusCode >= 500:
		return TransientError(msg, nil)
	default:
		return New(ErrCodeProviderResponse, msg, nil)
	}
}
