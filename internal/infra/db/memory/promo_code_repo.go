package memory

import (
	"context"
	"sort"
	"time"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.PromoCodeRepository = (*promoCodeRepo)(nil)

type promoCodeRepo struct {
	s *Store
}

func NewPromoCodeRepo(s *Store) repository.PromoCodeRepository {
	return &promoCodeRepo{s: s}
}

// LockIssuance is a no-op: WithTx already holds the store lock.
func (r *promoCodeRepo) LockIssuance(ctx context.Context, _ repository.Tx) error {
	return ctx.Err()
}

func (r *promoCodeRepo) InsertBatch(ctx context.Context, tx repository.Tx, codes []*model.PromoCode) ([]string, error) {
	var conflicts []string
	err := r.s.exec(ctx, tx, func(t *memTx) error {
		for _, c := range codes {
			key := model.NormalizeCode(c.Code)
			if _, taken := r.s.byCode[key]; taken {
				conflicts = append(conflicts, key)
				continue
			}
			if _, taken := r.s.codes[c.ID]; taken {
				return domain.ErrAlreadyExists
			}
			cp := clonePromoCode(c)
			cp.Code = key
			r.s.codes[cp.ID] = cp
			r.s.byCode[key] = cp.ID
			id := cp.ID
			t.onRollback(func() {
				delete(r.s.codes, id)
				delete(r.s.byCode, key)
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *promoCodeRepo) ExistingCodes(ctx context.Context, tx repository.Tx, codes []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	err := r.s.exec(ctx, tx, func(_ *memTx) error {
		for _, c := range codes {
			key := model.NormalizeCode(c)
			if _, ok := r.s.byCode[key]; ok {
				out[key] = struct{}{}
			}
		}
		return nil
	})
	return out, err
}

func (r *promoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	var found *model.PromoCode
	err := r.s.exec(ctx, tx, func(_ *memTx) error {
		id, ok := r.s.byCode[model.NormalizeCode(code)]
		if !ok {
			return domain.ErrNotFound
		}
		found = clonePromoCode(r.s.codes[id])
		return nil
	})
	return found, err
}

func (r *promoCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromoCode, error) {
	var found *model.PromoCode
	err := r.s.exec(ctx, tx, func(_ *memTx) error {
		p, ok := r.s.codes[id]
		if !ok {
			return domain.ErrNotFound
		}
		found = clonePromoCode(p)
		return nil
	})
	return found, err
}

func (r *promoCodeRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) (int, error) {
	var used int
	err := r.s.exec(ctx, tx, func(t *memTx) error {
		p, ok := r.s.codes[id]
		if !ok {
			return domain.ErrNotFound
		}
		if p.Exhausted() {
			return domain.ErrUsageLimitReached
		}
		prevCount, prevUpdated := p.UsedCount, p.UpdatedAt
		p.UsedCount++
		p.UpdatedAt = time.Now()
		t.onRollback(func() {
			p.UsedCount = prevCount
			p.UpdatedAt = prevUpdated
		})
		used = p.UsedCount
		return nil
	})
	return used, err
}

func (r *promoCodeRepo) SetActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	return r.s.exec(ctx, tx, func(t *memTx) error {
		p, ok := r.s.codes[id]
		if !ok {
			return domain.ErrNotFound
		}
		prevActive, prevUpdated := p.IsActive, p.UpdatedAt
		p.IsActive = active
		p.UpdatedAt = time.Now()
		t.onRollback(func() {
			p.IsActive = prevActive
			p.UpdatedAt = prevUpdated
		})
		return nil
	})
}

// List orders by creation time, newest first.
func (r *promoCodeRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.PromoCode, error) {
	var out []*model.PromoCode
	err := r.s.exec(ctx, tx, func(_ *memTx) error {
		all := make([]*model.PromoCode, 0, len(r.s.codes))
		for _, p := range r.s.codes {
			all = append(all, clonePromoCode(p))
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].Code < all[j].Code
			}
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		if offset >= len(all) {
			return nil
		}
		all = all[offset:]
		if limit > 0 && limit < len(all) {
			all = all[:limit]
		}
		out = all
		return nil
	})
	return out, err
}
