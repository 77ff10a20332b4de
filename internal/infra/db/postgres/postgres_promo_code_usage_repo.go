package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.PromoCodeUsageRepository = (*promoCodeUsageRepo)(nil)

type promoCodeUsageRepo struct {
	pool *pgxpool.Pool
}

func NewPromoCodeUsageRepo(pool *pgxpool.Pool) repository.PromoCodeUsageRepository {
	return &promoCodeUsageRepo{pool: pool}
}

func (r *promoCodeUsageRepo) Insert(ctx context.Context, tx repository.Tx, u *model.PromoCodeUsage) error {
	const q = `
INSERT INTO promo_code_usages (id, promo_code_id, user_id, project_id, used_at)
VALUES ($1, $2, $3, $4, $5);`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.PromoCodeID, u.UserID, u.ProjectID, u.UsedAt)
	return err
}

func (r *promoCodeUsageRepo) CountByUser(ctx context.Context, tx repository.Tx, promoCodeID, userID string) (int, error) {
	const q = `SELECT count(*) FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2;`
	row, err := pickRow(ctx, r.pool, tx, q, promoCodeID, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapRowErr(err)
	}
	return n, nil
}
