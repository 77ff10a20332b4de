package repository

import (
	"context"
	"time"

	"launchpad/internal/domain/model"
)

// WindowHit is the outcome of one atomic prune, count and record step.
type WindowHit struct {
	Admitted bool
	// Count is the number of entries in the window after the step.
	Count int
	// Oldest is the oldest surviving entry; only set when not admitted.
	Oldest time.Time
}

// SlidingWindowStore keeps per-key timestamp sets in a shared store.
// Hit must prune, count and conditionally record as one atomic operation
// with respect to other callers on the same key.
type SlidingWindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, rule model.RateLimitRule) (WindowHit, error)
}
