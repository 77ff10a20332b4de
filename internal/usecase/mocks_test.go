//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func intPtr(v int) *int { return &v }

// ---- fake clock ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock SlidingWindowStore ----

type MockSlidingWindowStore struct {
	mu    sync.Mutex
	Calls int

	HitFunc func(ctx context.Context, key string, now time.Time, rule model.RateLimitRule) (repository.WindowHit, error)
}

var _ repository.SlidingWindowStore = (*MockSlidingWindowStore)(nil)

func (m *MockSlidingWindowStore) Hit(ctx context.Context, key string, now time.Time, rule model.RateLimitRule) (repository.WindowHit, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.HitFunc != nil {
		return m.HitFunc(ctx, key, now, rule)
	}
	return repository.WindowHit{Admitted: true, Count: 1}, nil
}

func (m *MockSlidingWindowStore) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// ---- Mock PromoCodeRepository ----

// MockPromoCodeRepo delegates to an embedded repository unless a Func hook is set.
type MockPromoCodeRepo struct {
	repository.PromoCodeRepository

	InsertBatchFunc    func(ctx context.Context, tx repository.Tx, codes []*model.PromoCode) ([]string, error)
	IncrementUsageFunc func(ctx context.Context, tx repository.Tx, id string) (int, error)
	FindByCodeFunc     func(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error)
}

func (m *MockPromoCodeRepo) InsertBatch(ctx context.Context, tx repository.Tx, codes []*model.PromoCode) ([]string, error) {
	if m.InsertBatchFunc != nil {
		return m.InsertBatchFunc(ctx, tx, codes)
	}
	return m.PromoCodeRepository.InsertBatch(ctx, tx, codes)
}

func (m *MockPromoCodeRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) (int, error) {
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, tx, id)
	}
	return m.PromoCodeRepository.IncrementUsage(ctx, tx, id)
}

func (m *MockPromoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	if m.FindByCodeFunc != nil {
		return m.FindByCodeFunc(ctx, tx, code)
	}
	return m.PromoCodeRepository.FindByCode(ctx, tx, code)
}

// ---- Mock EngagementRepository ----

type MockEngagementRepo struct {
	InsertIfAbsentFunc func(ctx context.Context, tx repository.Tx, e *model.Engagement) (bool, error)
}

func (m *MockEngagementRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.Engagement) (bool, error) {
	return m.InsertIfAbsentFunc(ctx, tx, e)
}

// sequenceGenerator returns codes in order and then repeats the last one.
func sequenceGenerator(codes ...string) func(prefix string) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(prefix string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return prefix + "-" + c, nil
	}
}
