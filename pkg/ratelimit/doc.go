// Package ratelimit paces the label scan.
//
// Discogs allows a fixed number of authenticated requests per minute. The
// scanner keeps under that budget by making every iteration last at least
// the configured delay:
//
//	pacer := ratelimit.NewPacer(time.Second)
//	for id := start; id <= total; id += step {
//		began := pacer.Start()
//		process(id)
//		if err := pacer.Pace(ctx, began); err != nil {
//			return err
//		}
//	}
//
// An iteration that already took longer than the delay is not slept at all.
package ratelimit
