// Package ratelimit implements sliding-window request limiting keyed by client.
//
// A Store keeps one log of hits per key. Take admits a request only while the
// number of hits inside the window is below the limit, and Release withdraws a
// hit again, which lets a limiter count only failed requests.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a Take.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// HitID identifies the recorded hit. Empty when the request was refused.
	HitID string
}

// Store is a shared hit log. Implementations must be safe for concurrent use.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Release(ctx context.Context, key, hitID string) error
}
