package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteConflictError checks if the error is either a SQLITE_BUSY
// or "database is locked" error. Both warrant a retry.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryPolicy controls withRetry.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

var defaultRetry = retryPolicy{maxRetries: 3, baseDelay: 50 * time.Millisecond}

// withRetry runs op, retrying SQLite conflicts with exponential backoff.
func withRetry(ctx context.Context, p retryPolicy, name string, op func() error) error {
	var err error
	for i := 0; i < p.maxRetries; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == p.maxRetries-1 {
			return err
		}

		delay := p.baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
