// Package cache provides a small byte cache and the serve-stale bridge into
// fallback levels: successful results are saved as the last good value for a
// key, and a fallback level replays that value when the live dependency
// fails.
//
//	lastGood := cache.NewLastGood[Quote](cache.NewMemoryCache(), "quote:usd", 10*time.Minute)
//	pipe, _ := policy.New[Quote]("quote-service", cfg,
//	    policy.WithFallbacks(lastGood.Fallback(), policy.Static(defaultQuote)),
//	)
package cache
