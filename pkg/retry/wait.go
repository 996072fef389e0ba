package retry

import (
	"context"
	"time"
)

// Wait blocks for delay or until ctx is done. A non-positive delay only reports ctx.Err().
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
