// Package retry repeats Discogs API calls that fail with a transient error.
//
// The label scan uses a fixed pause and unlimited attempts for HTTP 429:
//
//	cfg := retry.RateLimitConfig(ctx, 60*time.Second, log)
//	label, err := retry.DoWithResult(func() (*models.Label, error) {
//		return client.GetLabel(ctx, id)
//	}, cfg)
//
// Any error that RetryIf rejects is returned immediately. MaxAttempts of 0
// never gives up; only cancellation of Context ends the loop early.
package retry
