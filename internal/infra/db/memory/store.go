// Package memory is an in-process backend with the same atomicity contract
// as the Postgres repositories. It serves dev mode and unit tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

type engagementKey struct {
	actorID   string
	subjectID string
}

// Store holds all tables. A transaction keeps mu locked until it returns, so
// transactions are serialized against each other and against single calls.
type Store struct {
	mu sync.Mutex

	codes       map[string]*model.PromoCode // id -> code
	byCode      map[string]string           // normalized code -> id
	usages      []*model.PromoCodeUsage
	engagements map[engagementKey]*model.Engagement
}

func NewStore() *Store {
	return &Store{
		codes:       map[string]*model.PromoCode{},
		byCode:      map[string]string{},
		engagements: map[engagementKey]*model.Engagement{},
	}
}

type memTx struct {
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) onRollback(f func()) { t.undo = append(t.undo, f) }

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// exec runs fn with the store locked. A handle from WithTx already holds the lock.
func (s *Store) exec(ctx context.Context, tx repository.Tx, fn func(t *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	switch v := tx.(type) {
	case *memTx:
		if v.store != s || v.done {
			return domain.ErrInvalidExecContext
		}
		return fn(v)
	case nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(&memTx{store: s})
	default:
		return domain.ErrInvalidExecContext
	}
}

// TxManager implements repository.TransactionManager for Store.
type TxManager struct {
	store *Store
}

func NewTxManager(s *Store) *TxManager {
	return &TxManager{store: s}
}

// WithTx ignores isolation options: every transaction is serializable.
func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	t := &memTx{store: m.store}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		t.done = true
	}()

	if err := fn(ctx, t); err != nil {
		return err
	}
	committed = true
	return nil
}

func clonePromoCode(p *model.PromoCode) *model.PromoCode {
	cp := *p
	if p.UsageLimit != nil {
		v := *p.UsageLimit
		cp.UsageLimit = &v
	}
	if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		cp.ExpiresAt = &v
	}
	return &cp
}
