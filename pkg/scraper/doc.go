// Package scraper drives the Discogs label scan.
//
// A scan asks Discogs for the total label count, resumes after the last
// identifier already in the store (or at the configured start offset when that
// is higher) and visits every Step-th identifier up to the total. Each label
// that carries an email address or at least one URL is appended to the store.
//
// Usage:
//
//	cfg, err := config.Load("", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s := scraper.NewFromConfig(cfg, logger.GetLogger())
//	if err := s.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Rate Limiting:
//
// Iterations are paced so that each one lasts at least Scan.Delay. An HTTP 429
// from the label endpoint pauses for RateLimit.Wait and retries the same
// identifier with no attempt limit. Every other fetch failure skips the
// identifier.
//
// Storage:
//
// The store file is a JSON array that is only appended to, so a restarted scan
// picks up where the previous one stopped. A failed append is logged and
// counted, and the scan moves on.
package scraper
