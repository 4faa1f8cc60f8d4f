package core

import (
	"context"
	"errors"
)

var (
	// ErrAuth token fetch or validation failed; fatal to the current pass.
	ErrAuth = errors.New("sync: authentication failed")
	// ErrTransport network or 5xx failure that outlived the retry budget.
	ErrTransport = errors.New("sync: transport failure")
	// ErrRateLimit explicit 429 or quota exhaustion that outlived the retry budget.
	ErrRateLimit = errors.New("sync: rate limited")
	// ErrData malformed or incomplete record; the record is skipped.
	ErrData = errors.New("sync: invalid data")
	// ErrReconciliationMismatch ERP record without a local counterpart; quarantined.
	ErrReconciliationMismatch = errors.New("sync: reconciliation mismatch")
	// ErrConfig marketplace not published, wrong type or missing credentials.
	ErrConfig = errors.New("sync: invalid configuration")
	// ErrNotSupported the marketplace has no such capability.
	ErrNotSupported = errors.New("sync: operation not supported")
)

// IsFatal reports whether err must abort the current marketplace pass.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrAuth), errors.Is(err, ErrConfig):
		return true
	case errors.Is(err, ErrTransport), errors.Is(err, ErrRateLimit):
		return true
	}
	return false
}

// IsSkippable reports whether the pass may continue with the next record.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrData) || errors.Is(err, ErrReconciliationMismatch)
}
