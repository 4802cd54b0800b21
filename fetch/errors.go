package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrInvalidURL marks loads that can never succeed, whatever the retry budget
var ErrInvalidURL = errors.New("invalid URL")

// FetchError is returned when a page cannot be loaded: transport failure,
// timeout or a non-success status
type FetchError struct {
	URL        string
	StatusCode int // Zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether loading the page again may succeed
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, ErrInvalidURL) {
		return false
	}
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return e.Err != nil && !errors.Is(e.Err, context.DeadlineExceeded)
}
