package transport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/developkariyer/IWApim/internal/core"
)

// StatusError is a non-2xx/3xx answer. It matches core.ErrAuth for 401/403,
// core.ErrRateLimit for 429 and core.ErrData for the remaining 4xx.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case core.ErrAuth:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case core.ErrRateLimit:
		return e.StatusCode == http.StatusTooManyRequests
	case core.ErrData:
		return e.StatusCode >= 400 && e.StatusCode < 500 &&
			e.StatusCode != http.StatusUnauthorized &&
			e.StatusCode != http.StatusForbidden &&
			e.StatusCode != http.StatusTooManyRequests
	case core.ErrTransport:
		return e.StatusCode >= 500
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
