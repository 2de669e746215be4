package core

import "context"

// RateLimiter gates request admission per caller key. Allow reports whether
// the keyed caller may proceed right now; it never blocks.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
