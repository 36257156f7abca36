package errx

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// WrapModel maps failures from the hosted model into the unified Error type.
// Throttling is distinguished from every other failure so callers can pick
// the right user-facing fallback.
func WrapModel(err error) *Error {
	if err == nil {
		return nil
	}

	if isRateLimitSignal(err) {
		return New(err, http.StatusTooManyRequests, ModelRateLimitedMessage)
	}

	return New(err, http.StatusBadGateway, ModelErrorMessage)
}

// IsRateLimited reports whether err carries the model's throttling signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status == http.StatusTooManyRequests {
		return true
	}

	return isRateLimitSignal(err)
}

func isRateLimitSignal(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return true
		}
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return true
		}
	}

	// Some transports surface the condition only in the message text.
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
