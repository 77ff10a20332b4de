//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/db/memory"
	"launchpad/internal/usecase"
)

type issueFixture struct {
	store *memory.Store
	codes repository.PromoCodeRepository
	tm    repository.TransactionManager
	clock *fakeClock
}

func newIssueFixture() *issueFixture {
	s := memory.NewStore()
	return &issueFixture{
		store: s,
		codes: memory.NewPromoCodeRepo(s),
		tm:    memory.NewTxManager(s),
		clock: newFakeClock(),
	}
}

func (f *issueFixture) useCase(opts usecase.PromoIssueOptions) usecase.PromoIssueUseCase {
	if opts.Now == nil {
		opts.Now = f.clock.Now
	}
	return usecase.NewPromoIssueUseCase(f.codes, f.tm, opts, newTestLogger())
}

func (f *issueFixture) count(t *testing.T) int {
	t.Helper()
	list, err := f.codes.List(context.Background(), nil, 500, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return len(list)
}

func (f *issueFixture) seed(t *testing.T, code string) {
	t.Helper()
	p := &model.PromoCode{ID: "seed-" + code, Code: code, IsActive: true, CreatedBy: "seed"}
	if _, err := f.codes.InsertBatch(context.Background(), nil, []*model.PromoCode{p}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

var launchPattern = regexp.MustCompile(`^LAUNCH-[A-Z0-9]{8}$`)

func TestPromoIssueUseCase_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue the launch example", func(t *testing.T) {
		// --- Arrange ---
		f := newIssueFixture()
		uc := f.useCase(usecase.PromoIssueOptions{})

		// --- Act ---
		codes, err := uc.Issue(ctx, model.IssueRequest{
			Count: 1, Prefix: "launch", DiscountAmount: 2.99,
			UsageLimit: intPtr(10), ValidityDays: 30, CreatedBy: "admin-1",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(codes) != 1 {
			t.Fatalf("expected 1 code, got %d", len(codes))
		}
		p := codes[0]
		if !launchPattern.MatchString(p.Code) {
			t.Errorf("code %q does not match LAUNCH-XXXXXXXX", p.Code)
		}
		if p.UsedCount != 0 || !p.IsActive || p.DiscountAmount != 2.99 || *p.UsageLimit != 10 {
			t.Errorf("unexpected code %+v", p)
		}
		want := f.clock.Now().AddDate(0, 0, 30)
		if p.ExpiresAt == nil || !p.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, p.ExpiresAt)
		}
		if f.count(t) != 1 {
			t.Error("expected the code to be persisted")
		}
	})

	t.Run("should issue one hundred unique codes sharing one expiry", func(t *testing.T) {
		f := newIssueFixture()
		uc := f.useCase(usecase.PromoIssueOptions{})

		codes, err := uc.Issue(ctx, model.IssueRequest{Count: 100, Prefix: "SPRING", DiscountAmount: 5, ValidityDays: 7, CreatedBy: "admin"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(codes) != 100 {
			t.Fatalf("expected 100 codes, got %d", len(codes))
		}
		seen := map[string]bool{}
		for _, p := range codes {
			if seen[p.Code] {
				t.Fatalf("duplicate code %s", p.Code)
			}
			seen[p.Code] = true
			if !p.ExpiresAt.Equal(*codes[0].ExpiresAt) {
				t.Fatalf("expiry differs within batch: %v vs %v", p.ExpiresAt, codes[0].ExpiresAt)
			}
			if p.UsageLimit != nil {
				t.Fatalf("expected unlimited code, got limit %d", *p.UsageLimit)
			}
		}
		if f.count(t) != 100 {
			t.Errorf("expected 100 persisted, got %d", f.count(t))
		}
	})

	t.Run("should leave expiry empty for zero validity", func(t *testing.T) {
		f := newIssueFixture()
		codes, err := f.useCase(usecase.PromoIssueOptions{}).Issue(ctx, model.IssueRequest{Count: 2, Prefix: "FOREVER", CreatedBy: "admin"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		for _, p := range codes {
			if p.ExpiresAt != nil {
				t.Errorf("expected no expiry, got %v", p.ExpiresAt)
			}
		}
	})

	t.Run("should keep concurrent batches unique", func(t *testing.T) {
		f := newIssueFixture()
		uc := f.useCase(usecase.PromoIssueOptions{})

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Issue(ctx, model.IssueRequest{Count: 50, Prefix: "RACE", DiscountAmount: 1, CreatedBy: "admin"})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
		}
		if f.count(t) != 200 {
			t.Errorf("expected 200 persisted codes, got %d", f.count(t))
		}
	})

	t.Run("should regenerate a code that already exists", func(t *testing.T) {
		f := newIssueFixture()
		f.seed(t, "X-AAAAAAAA")
		uc := f.useCase(usecase.PromoIssueOptions{Generate: sequenceGenerator("AAAAAAAA", "BBBBBBBB")})

		codes, err := uc.Issue(ctx, model.IssueRequest{Count: 1, Prefix: "X", CreatedBy: "admin"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if codes[0].Code != "X-BBBBBBBB" {
			t.Errorf("expected regenerated code X-BBBBBBBB, got %s", codes[0].Code)
		}
	})

	t.Run("should regenerate a code lost to a concurrent insert", func(t *testing.T) {
		f := newIssueFixture()
		repo := &MockPromoCodeRepo{PromoCodeRepository: f.codes}
		first := true
		repo.InsertBatchFunc = func(ctx context.Context, tx repository.Tx, codes []*model.PromoCode) ([]string, error) {
			if first {
				first = false
				return []string{codes[0].Code}, nil
			}
			return f.codes.InsertBatch(ctx, tx, codes)
		}
		uc := usecase.NewPromoIssueUseCase(repo, f.tm, usecase.PromoIssueOptions{
			Generate: sequenceGenerator("AAAAAAAA", "CCCCCCCC"),
		}, newTestLogger())

		codes, err := uc.Issue(ctx, model.IssueRequest{Count: 1, Prefix: "Y", CreatedBy: "admin"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if codes[0].Code != "Y-CCCCCCCC" {
			t.Errorf("expected Y-CCCCCCCC, got %s", codes[0].Code)
		}
	})

	t.Run("should fail the whole batch when one slot exhausts its attempts", func(t *testing.T) {
		f := newIssueFixture()
		f.seed(t, "Z-CCCCCCCC")
		// slots 1 and 2 get fresh codes; slot 3 keeps drawing the seeded one
		uc := f.useCase(usecase.PromoIssueOptions{
			MaxGenerationAttempts: 10,
			Generate:              sequenceGenerator("AAAAAAAA", "BBBBBBBB", "CCCCCCCC"),
		})

		codes, err := uc.Issue(ctx, model.IssueRequest{Count: 3, Prefix: "Z", CreatedBy: "admin"})
		if !errors.Is(err, domain.ErrGenerationExhausted) {
			t.Fatalf("expected ErrGenerationExhausted, got %v", err)
		}
		if codes != nil {
			t.Errorf("expected no codes, got %d", len(codes))
		}
		if f.count(t) != 1 {
			t.Errorf("expected only the seeded code to remain, got %d", f.count(t))
		}
	})

	t.Run("should stop after the configured attempts", func(t *testing.T) {
		f := newIssueFixture()
		f.seed(t, "Q-SAMESAME")
		calls := 0
		gen := func(prefix string) (string, error) {
			calls++
			return prefix + "-SAMESAME", nil
		}
		uc := f.useCase(usecase.PromoIssueOptions{MaxGenerationAttempts: 4, Generate: gen})

		if _, err := uc.Issue(ctx, model.IssueRequest{Count: 1, Prefix: "Q", CreatedBy: "admin"}); !errors.Is(err, domain.ErrGenerationExhausted) {
			t.Fatalf("expected ErrGenerationExhausted, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected 4 generation attempts, got %d", calls)
		}
	})

	t.Run("should reject invalid requests without writing", func(t *testing.T) {
		f := newIssueFixture()
		uc := f.useCase(usecase.PromoIssueOptions{})
		reqs := []model.IssueRequest{
			{Count: 0, Prefix: "A", CreatedBy: "admin"},
			{Count: 101, Prefix: "A", CreatedBy: "admin"},
			{Count: 1, Prefix: "A", DiscountAmount: 1000.01, CreatedBy: "admin"},
			{Count: 1, Prefix: "A", DiscountAmount: -1, CreatedBy: "admin"},
			{Count: 1, Prefix: "", CreatedBy: "admin"},
			{Count: 1, Prefix: "A"},
		}
		for _, r := range reqs {
			if _, err := uc.Issue(ctx, r); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("Issue(%+v): expected ErrInvalidArgument, got %v", r, err)
			}
		}
		if f.count(t) != 0 {
			t.Errorf("expected nothing written, got %d", f.count(t))
		}
	})

	t.Run("should report store unavailable", func(t *testing.T) {
		f := newIssueFixture()
		tm := &MockTxManager{
			WithTxFunc: func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
				return fmt.Errorf("%w: begin tx", domain.ErrStoreUnavailable)
			},
		}
		uc := usecase.NewPromoIssueUseCase(f.codes, tm, usecase.PromoIssueOptions{}, newTestLogger())
		if _, err := uc.Issue(ctx, model.IssueRequest{Count: 1, Prefix: "A", CreatedBy: "admin"}); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})

	t.Run("should map a store timeout to store unavailable", func(t *testing.T) {
		f := newIssueFixture()
		tm := &MockTxManager{
			WithTxFunc: func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
		uc := usecase.NewPromoIssueUseCase(f.codes, tm, usecase.PromoIssueOptions{StoreTimeout: 10 * time.Millisecond}, newTestLogger())
		if _, err := uc.Issue(ctx, model.IssueRequest{Count: 1, Prefix: "A", CreatedBy: "admin"}); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestPromoIssueUseCase_ListAndDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newIssueFixture()
	uc := f.useCase(usecase.PromoIssueOptions{})

	issued, err := uc.Issue(ctx, model.IssueRequest{Count: 3, Prefix: "LIST", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	t.Run("should list issued codes with paging", func(t *testing.T) {
		page, err := uc.List(ctx, 2, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(page) != 2 {
			t.Errorf("expected 2, got %d", len(page))
		}
		rest, _ := uc.List(ctx, 2, 2)
		if len(rest) != 1 {
			t.Errorf("expected 1 on the second page, got %d", len(rest))
		}
	})

	t.Run("should reject bad paging", func(t *testing.T) {
		if _, err := uc.List(ctx, 0, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := uc.List(ctx, 10, -1); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should deactivate a code", func(t *testing.T) {
		p, err := uc.Deactivate(ctx, issued[0].ID)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.IsActive {
			t.Error("expected code to be inactive")
		}
	})

	t.Run("should report unknown ids as not found", func(t *testing.T) {
		if _, err := uc.Deactivate(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427"); !errors.Is(err, domain.ErrPromoCodeNotFound) {
			t.Errorf("expected ErrPromoCodeNotFound, got %v", err)
		}
		if _, err := uc.Deactivate(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
