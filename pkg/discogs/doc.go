// Package discogs is a minimal client for the two Discogs API calls the label
// scan needs: the label count from /database/search and label details from
// /labels/{id}.
//
// Every request carries the configured User-Agent and the
// "Discogs key=..., secret=..." Authorization header. Non-2xx responses are
// returned as *errors.Error values typed by status code, so callers can single
// out HTTP 429 with errors.IsRateLimit.
package discogs
