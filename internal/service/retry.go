package service

import (
	"context"
	"errors"
	"time"

	"mediavault/internal/model"
)

const (
	storeRetryAttempts = 3
	storeRetryBase     = 50 * time.Millisecond
)

// withStoreRetry retries fn on transient store unavailability with doubling
// backoff. Expected-outcome errors (not found, unauthorized, conflicts)
// pass through on the first attempt.
func withStoreRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < storeRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(storeRetryBase << (attempt - 1)):
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, model.ErrStoreUnavailable) {
			return err
		}
	}
	return err
}
