package memory

import (
	"context"

	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.PromoCodeUsageRepository = (*promoCodeUsageRepo)(nil)

type promoCodeUsageRepo struct {
	s *Store
}

func NewPromoCodeUsageRepo(s *Store) repository.PromoCodeUsageRepository {
	return &promoCodeUsageRepo{s: s}
}

func (r *promoCodeUsageRepo) Insert(ctx context.Context, tx repository.Tx, u *model.PromoCodeUsage) error {
	return r.s.exec(ctx, tx, func(t *memTx) error {
		cp := *u
		n := len(r.s.usages)
		r.s.usages = append(r.s.usages, &cp)
		t.onRollback(func() { r.s.usages = r.s.usages[:n] })
		return nil
	})
}

func (r *promoCodeUsageRepo) CountByUser(ctx context.Context, tx repository.Tx, promoCodeID, userID string) (int, error) {
	n := 0
	err := r.s.exec(ctx, tx, func(_ *memTx) error {
		for _, u := range r.s.usages {
			if u.PromoCodeID == promoCodeID && u.UserID == userID {
				n++
			}
		}
		return nil
	})
	return n, err
}
