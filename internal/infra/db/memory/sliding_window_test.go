//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
)

func TestSlidingWindow_Hit(t *testing.T) {
	ctx := context.Background()
	rule := model.RateLimitRule{Limit: 3, Window: time.Minute}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("should deny the hit after the limit and report the oldest entry", func(t *testing.T) {
		w := NewSlidingWindow()
		for i := 0; i < 3; i++ {
			hit, err := w.Hit(ctx, "k", t0.Add(time.Duration(i)*time.Second), rule)
			if err != nil || !hit.Admitted || hit.Count != i+1 {
				t.Fatalf("hit %d: %+v err=%v", i, hit, err)
			}
		}
		hit, _ := w.Hit(ctx, "k", t0.Add(5*time.Second), rule)
		if hit.Admitted {
			t.Fatal("expected fourth hit to be denied")
		}
		if !hit.Oldest.Equal(t0) {
			t.Errorf("expected oldest %v, got %v", t0, hit.Oldest)
		}
	})

	t.Run("should slide instead of resetting", func(t *testing.T) {
		w := NewSlidingWindow()
		_, _ = w.Hit(ctx, "k", t0, rule)
		_, _ = w.Hit(ctx, "k", t0.Add(30*time.Second), rule)
		_, _ = w.Hit(ctx, "k", t0.Add(40*time.Second), rule)

		// first entry leaves the window exactly at t0+60s
		hit, _ := w.Hit(ctx, "k", t0.Add(60*time.Second), rule)
		if !hit.Admitted {
			t.Fatal("expected hit once the oldest entry has left the window")
		}
		hit, _ = w.Hit(ctx, "k", t0.Add(61*time.Second), rule)
		if hit.Admitted {
			t.Fatal("expected denial while three entries remain in the window")
		}
	})

	t.Run("should keep identifiers independent", func(t *testing.T) {
		w := NewSlidingWindow()
		for i := 0; i < 3; i++ {
			_, _ = w.Hit(ctx, "a", t0, rule)
		}
		hit, _ := w.Hit(ctx, "b", t0, rule)
		if !hit.Admitted {
			t.Fatal("expected a fresh identifier to be admitted")
		}
	})

	t.Run("should admit exactly limit of concurrent hits", func(t *testing.T) {
		w := NewSlidingWindow()
		big := model.RateLimitRule{Limit: 10, Window: time.Minute}
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hit, _ := w.Hit(ctx, "burst", time.Now(), big)
				if hit.Admitted {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if admitted != 10 {
			t.Fatalf("expected 10 admitted, got %d", admitted)
		}
	})

	t.Run("should surface cancelled contexts as store unavailable", func(t *testing.T) {
		w := NewSlidingWindow()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := w.Hit(cctx, "k", t0, rule); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}
