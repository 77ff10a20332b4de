//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

func intPtr(v int) *int { return &v }

func newCode(code string, limit *int) *model.PromoCode {
	now := time.Now()
	return &model.PromoCode{
		ID:             uuid.NewString(),
		Code:           code,
		DiscountAmount: 2.99,
		UsageLimit:     limit,
		IsActive:       true,
		CreatedBy:      "admin",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestTxManager_Rollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	tm := NewTxManager(s)
	codes := NewPromoCodeRepo(s)
	usages := NewPromoCodeUsageRepo(s)
	engagements := NewEngagementRepo(s)
	boom := errors.New("boom")

	t.Run("should undo every write when fn fails", func(t *testing.T) {
		seed := newCode("KEEP-00000001", intPtr(5))
		if _, err := codes.InsertBatch(ctx, nil, []*model.PromoCode{seed}); err != nil {
			t.Fatalf("seed: %v", err)
		}

		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := codes.InsertBatch(ctx, tx, []*model.PromoCode{newCode("GONE-00000001", nil)}); err != nil {
				return err
			}
			if _, err := codes.IncrementUsage(ctx, tx, seed.ID); err != nil {
				return err
			}
			if err := usages.Insert(ctx, tx, &model.PromoCodeUsage{ID: "u1", PromoCodeID: seed.ID, UserID: "alice"}); err != nil {
				return err
			}
			if _, err := engagements.InsertIfAbsent(ctx, tx, &model.Engagement{ID: "e1", ActorID: "bot", SubjectID: "p1"}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		if _, err := codes.FindByCode(ctx, nil, "GONE-00000001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected inserted code to be rolled back, got %v", err)
		}
		got, _ := codes.FindByID(ctx, nil, seed.ID)
		if got.UsedCount != 0 {
			t.Errorf("expected used count 0 after rollback, got %d", got.UsedCount)
		}
		if n, _ := usages.CountByUser(ctx, nil, seed.ID, "alice"); n != 0 {
			t.Errorf("expected no usage rows after rollback, got %d", n)
		}
		created, _ := engagements.InsertIfAbsent(ctx, nil, &model.Engagement{ID: "e2", ActorID: "bot", SubjectID: "p1"})
		if !created {
			t.Error("expected engagement to be absent after rollback")
		}
	})

	t.Run("should reject a handle used after commit", func(t *testing.T) {
		var leaked repository.Tx
		_ = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			leaked = tx
			return nil
		})
		if _, err := codes.FindByCode(ctx, leaked, "KEEP-00000001"); !errors.Is(err, domain.ErrInvalidExecContext) {
			t.Errorf("expected ErrInvalidExecContext, got %v", err)
		}
	})

	t.Run("should fail closed on a cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := tm.WithTx(cctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error { return nil })
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestPromoCodeRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("should report conflicts case-insensitively", func(t *testing.T) {
		repo := NewPromoCodeRepo(NewStore())
		if _, err := repo.InsertBatch(ctx, nil, []*model.PromoCode{newCode("LAUNCH-AAAA1111", nil)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
		conflicts, err := repo.InsertBatch(ctx, nil, []*model.PromoCode{
			newCode("launch-aaaa1111", nil),
			newCode("LAUNCH-BBBB2222", nil),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if len(conflicts) != 1 || conflicts[0] != "LAUNCH-AAAA1111" {
			t.Fatalf("expected one conflict, got %v", conflicts)
		}
		existing, _ := repo.ExistingCodes(ctx, nil, []string{"LAUNCH-BBBB2222", "LAUNCH-CCCC3333"})
		if _, ok := existing["LAUNCH-BBBB2222"]; !ok || len(existing) != 1 {
			t.Errorf("unexpected existing set %v", existing)
		}
	})

	t.Run("should stop incrementing at the usage limit", func(t *testing.T) {
		repo := NewPromoCodeRepo(NewStore())
		c := newCode("CAP-00000001", intPtr(2))
		_, _ = repo.InsertBatch(ctx, nil, []*model.PromoCode{c})
		for i := 1; i <= 2; i++ {
			n, err := repo.IncrementUsage(ctx, nil, c.ID)
			if err != nil || n != i {
				t.Fatalf("increment %d: n=%d err=%v", i, n, err)
			}
		}
		if _, err := repo.IncrementUsage(ctx, nil, c.ID); !errors.Is(err, domain.ErrUsageLimitReached) {
			t.Errorf("expected ErrUsageLimitReached, got %v", err)
		}
	})

	t.Run("should return copies", func(t *testing.T) {
		repo := NewPromoCodeRepo(NewStore())
		c := newCode("COPY-00000001", intPtr(2))
		_, _ = repo.InsertBatch(ctx, nil, []*model.PromoCode{c})
		got, _ := repo.FindByID(ctx, nil, c.ID)
		*got.UsageLimit = 99
		again, _ := repo.FindByID(ctx, nil, c.ID)
		if *again.UsageLimit != 2 {
			t.Errorf("stored record was mutated through a returned pointer")
		}
	})

	t.Run("should list newest first with paging", func(t *testing.T) {
		repo := NewPromoCodeRepo(NewStore())
		base := time.Now()
		for i, code := range []string{"L-1", "L-2", "L-3"} {
			c := newCode(code, nil)
			c.CreatedAt = base.Add(time.Duration(i) * time.Second)
			_, _ = repo.InsertBatch(ctx, nil, []*model.PromoCode{c})
		}
		page, err := repo.List(ctx, nil, 2, 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page) != 2 || page[0].Code != "L-3" || page[1].Code != "L-2" {
			t.Errorf("unexpected first page %+v", page)
		}
		page, _ = repo.List(ctx, nil, 2, 2)
		if len(page) != 1 || page[0].Code != "L-1" {
			t.Errorf("unexpected second page %+v", page)
		}
	})
}

func TestEngagementRepo_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewEngagementRepo(NewStore())

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, nil, &model.Engagement{ID: uuid.NewString(), ActorID: "bot-7", SubjectID: "project-1"})
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one created engagement, got %d", created)
	}
}
