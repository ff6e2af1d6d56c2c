// Package openaiclient builds go-openai clients for OpenAI-compatible endpoints.
package openaiclient

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("API key not set")

// New creates a client. An empty baseURL keeps the OpenAI default; any
// OpenAI-compatible endpoint (Gemini, Azure gateways, local servers) can be used.
func New(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

// Transient reports whether err is worth retrying: rate limiting, server
// errors and transport failures are; other API errors and cancellation are not.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
