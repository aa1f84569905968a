package meraki

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
)

const (
	// defaultRetryAfter is used when a 429 carries no usable Retry-After
	defaultRetryAfter = time.Second
	// maxRetryAfter caps a single wait
	maxRetryAfter = time.Minute
)

// rateLimitedError is a 429 response. It unwraps to the FetchError returned once retries run out.
type rateLimitedError struct {
	*ierrors.FetchError
	retryAfter time.Duration
}

func (e *rateLimitedError) Unwrap() error {
	return e.FetchError
}

// getWithRetry waits out 429 responses for at most c.retries attempts.
func (c *Client) getWithRetry(ctx context.Context, operation, parentID, reqURL string) ([]byte, string, error) {
	for attempt := 0; ; attempt++ {
		body, link, err := c.get(ctx, operation, parentID, reqURL)

		var limited *rateLimitedError
		if err == nil || !errors.As(err, &limited) {
			return body, link, err
		}
		if attempt >= c.retries {
			return nil, "", limited.FetchError
		}

		c.logger.WithContext(ctx).WithFields(map[string]any{
			"operation": operation,
			"attempt":   attempt + 1,
		}).Warnf("Rate limited by the dashboard, retrying in %s", limited.retryAfter)

		select {
		case <-ctx.Done():
			return nil, "", ierrors.NewFetchError(operation, parentID, ctx.Err())
		case <-time.After(limited.retryAfter):
		}
	}
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	wait := defaultRetryAfter
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		wait = time.Duration(seconds * float64(time.Second))
	} else if t, err := time.Parse(time.RFC1123, value); err == nil {
		wait = time.Until(t)
	}

	if wait <= 0 {
		return defaultRetryAfter
	}
	return min(wait, maxRetryAfter)
}
