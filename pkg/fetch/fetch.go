// Package fetch provides small helpers for JSON HTTP APIs.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	DefaultMaxBytes  = 10_000_000
	DefaultUserAgent = "videoqa/1.0"
)

var ErrTooLarge = errors.New("response body too large")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	Body   string // Start of the response body
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected http status %s", e.Status)
	}
	return fmt.Sprintf("unexpected http status %s: %s", e.Status, e.Body)
}

// Retryable reports whether a request that failed with err may succeed when
// repeated: rate limiting, server errors and transport errors.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr) && !errors.Is(err, ErrTooLarge)
}

// countingReader counts the bytes read through it.
type countingReader struct {
	R io.Reader
	N int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	if n > 0 {
		c.N += int64(n)
	}
	return n, err
}

// DoJSON sends req and decodes the JSON response into dst. maxBytes <= 0 uses
// DefaultMaxBytes.
func DoJSON(client *http.Client, req *http.Request, maxBytes int64, dst any) error {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	if resp.ContentLength > maxBytes {
		return fmt.Errorf("%w: content-length %d exceeds limit %d", ErrTooLarge, resp.ContentLength, maxBytes)
	}

	// +1 to detect overflow
	cr := &countingReader{R: io.LimitReader(resp.Body, maxBytes+1)}
	if err := json.NewDecoder(cr).Decode(dst); err != nil {
		if cr.N > maxBytes {
			return ErrTooLarge
		}
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	if cr.N > maxBytes {
		return ErrTooLarge
	}
	return nil
}
