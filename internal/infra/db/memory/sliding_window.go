package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.SlidingWindowStore = (*SlidingWindow)(nil)

const sweepEvery = 1024

type bucket struct {
	hits    []time.Time // sorted ascending
	expires time.Time
}

// SlidingWindow is a single-process SlidingWindowStore. Buckets expire one
// window after their last recorded hit, like the Redis key TTL.
type SlidingWindow struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

func NewSlidingWindow() *SlidingWindow {
	return &SlidingWindow{buckets: map[string]*bucket{}}
}

func (w *SlidingWindow) Hit(ctx context.Context, key string, now time.Time, rule model.RateLimitRule) (repository.WindowHit, error) {
	if err := ctx.Err(); err != nil {
		return repository.WindowHit{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.calls%sweepEvery == 0 {
		w.sweep(now)
	}

	b, ok := w.buckets[key]
	if !ok || !now.Before(b.expires) {
		b = &bucket{}
		w.buckets[key] = b
	}

	cutoff := now.Add(-rule.Window)
	keep := sort.Search(len(b.hits), func(i int) bool { return b.hits[i].After(cutoff) })
	b.hits = b.hits[keep:]

	if len(b.hits) >= rule.Limit {
		return repository.WindowHit{Admitted: false, Count: len(b.hits), Oldest: b.hits[0]}, nil
	}

	at := sort.Search(len(b.hits), func(i int) bool { return b.hits[i].After(now) })
	b.hits = append(b.hits, time.Time{})
	copy(b.hits[at+1:], b.hits[at:])
	b.hits[at] = now
	b.expires = now.Add(rule.Window)
	return repository.WindowHit{Admitted: true, Count: len(b.hits)}, nil
}

func (w *SlidingWindow) sweep(now time.Time) {
	for k, b := range w.buckets {
		if !now.Before(b.expires) {
			delete(w.buckets, k)
		}
	}
}
