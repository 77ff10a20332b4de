package model

import (
	"math"
	"time"

	"launchpad/internal/domain"
)

// MaxRateLimitWindow bounds a window; longer ones belong in a quota, not a limiter.
const MaxRateLimitWindow = 24 * time.Hour

// RateLimitRule is a sliding window: at most Limit hits per Window.
type RateLimitRule struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

func (r RateLimitRule) Validate() error {
	if r.Limit <= 0 || r.Window <= 0 || r.Window > MaxRateLimitWindow {
		return domain.ErrInvalidArgument
	}
	return nil
}

type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	// Degraded is set when the store could not be reached and the check failed open.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds. A denied result
// always reports at least one second.
func (r RateLimitResult) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	s := int(math.Ceil(r.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
