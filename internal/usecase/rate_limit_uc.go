package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/logging"
	"launchpad/internal/infra/metrics"
)

// RateLimitUseCase answers "may this identifier proceed right now".
type RateLimitUseCase interface {
	// Check only returns an error for invalid arguments. Store failures fail
	// open and come back as an allowed, Degraded result.
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (model.RateLimitResult, error)
}

type RateLimitOptions struct {
	StoreTimeout time.Duration
	Retries      int
	RetryBackoff time.Duration
	Now          func() time.Time
}

var _ RateLimitUseCase = (*rateLimitUC)(nil)

type rateLimitUC struct {
	store repository.SlidingWindowStore
	opts  RateLimitOptions
	log   *zerolog.Logger

	degradedLog rate.Sometimes
	suppressed  atomic.Int64
}

func NewRateLimitUseCase(store repository.SlidingWindowStore, opts RateLimitOptions, logger *zerolog.Logger) RateLimitUseCase {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 200 * time.Millisecond
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 25 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &rateLimitUC{
		store:       store,
		opts:        opts,
		log:         logger,
		degradedLog: rate.Sometimes{Interval: time.Second},
	}
}

func (u *rateLimitUC) Check(ctx context.Context, identifier string, limit int, window time.Duration) (model.RateLimitResult, error) {
	defer logging.TraceDuration(u.log, "RateLimitUC.Check")()

	rule := model.RateLimitRule{Limit: limit, Window: window}
	if strings.TrimSpace(identifier) == "" || window < time.Millisecond {
		return model.RateLimitResult{}, domain.ErrInvalidArgument
	}
	if err := rule.Validate(); err != nil {
		return model.RateLimitResult{}, err
	}
	scope := scopeOf(identifier)

	var lastErr error
	for attempt := 0; attempt <= u.opts.Retries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, time.Duration(attempt)*u.opts.RetryBackoff) {
				break
			}
		}
		now := u.opts.Now()
		hit, err := u.hit(ctx, identifier, now, rule)
		if err == nil {
			res := resultFrom(hit, rule, now)
			if res.Allowed {
				metrics.IncRateLimitDecision(scope, "allowed")
			} else {
				metrics.IncRateLimitDecision(scope, "denied")
			}
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrStoreUnavailable) || ctx.Err() != nil {
			break
		}
	}

	u.degraded(ctx, identifier, scope, lastErr)
	return model.RateLimitResult{Allowed: true, Remaining: limit - 1, Degraded: true}, nil
}

func (u *rateLimitUC) hit(ctx context.Context, identifier string, now time.Time, rule model.RateLimitRule) (repository.WindowHit, error) {
	cctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	start := time.Now()
	hit, err := u.store.Hit(cctx, identifier, now, rule)
	metrics.ObserveRateLimitStoreLatency(float64(time.Since(start)) / float64(time.Millisecond))
	return hit, err
}

// degraded records a fail-open event. Every event is counted; the warn log
// is emitted at most once per second with the number of suppressed events.
func (u *rateLimitUC) degraded(ctx context.Context, identifier, scope string, err error) {
	metrics.IncRateLimitDecision(scope, "degraded")
	u.suppressed.Add(1)
	u.degradedLog.Do(func() {
		logging.With(ctx, u.log).Warn().
			Err(err).
			Str("identifier", identifier).
			Int64("events", u.suppressed.Swap(0)).
			Msg("rate limiter degraded: store unavailable, failing open")
	})
}

func resultFrom(hit repository.WindowHit, rule model.RateLimitRule, now time.Time) model.RateLimitResult {
	if hit.Admitted {
		remaining := rule.Limit - hit.Count
		if remaining < 0 {
			remaining = 0
		}
		return model.RateLimitResult{Allowed: true, Remaining: remaining}
	}
	retry := hit.Oldest.Add(rule.Window).Sub(now)
	if retry < time.Millisecond {
		retry = time.Millisecond
	}
	return model.RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: retry}
}

// scopeOf returns the part before the first colon, used as a metrics label.
func scopeOf(identifier string) string {
	if i := strings.IndexByte(identifier, ':'); i > 0 {
		return identifier[:i]
	}
	return "default"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
