// Package embed turns node text into vectors for the per-rank indexes.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Embedder produces a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// ErrDimension is returned when a provider answers with a vector of the
// wrong size.
var ErrDimension = errors.New("embedding dimension mismatch")

// RetryableError indicates a transient provider failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Input normalizes text for a provider: blank input becomes a single space.
func Input(text string) string {
	if strings.TrimSpace(text) == "" {
		return " "
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
