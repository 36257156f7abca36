package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestWrapModelRateLimited(t *testing.T) {
	wrapped := WrapModel(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"})

	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusTooManyRequests, wrapped.Status)
	assert.True(t, IsRateLimited(wrapped))
}

func TestWrapModelGeneric(t *testing.T) {
	wrapped := WrapModel(errors.New("connection reset by peer"))

	require.NotNil(t, wrapped)
	assert.Equal(t, http.StatusBadGateway, wrapped.Status)
	assert.False(t, IsRateLimited(wrapped))
}

func TestIsRateLimitedFromMessageText(t *testing.T) {
	// Some transports only surface the condition in the message.
	assert.True(t, IsRateLimited(errors.New("googleapi: Error 429: quota exceeded")))
	assert.True(t, IsRateLimited(errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED")))
	assert.False(t, IsRateLimited(errors.New("deadline exceeded")))
	assert.False(t, IsRateLimited(nil))
}

func TestIsRateLimitedThroughWrapping(t *testing.T) {
	inner := WrapModel(genai.APIError{Code: 429})
	outer := fmt.Errorf("invoke: %w", inner)

	assert.True(t, IsRateLimited(outer))
}

func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := New(sentinel, http.StatusBadGateway, ModelErrorMessage)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, "model invocation failed: boom", wrapped.Error())
}
