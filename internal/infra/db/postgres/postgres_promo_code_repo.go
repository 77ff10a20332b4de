package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.PromoCodeRepository = (*promoCodeRepo)(nil)

type promoCodeRepo struct {
	pool *pgxpool.Pool
}

func NewPromoCodeRepo(pool *pgxpool.Pool) repository.PromoCodeRepository {
	return &promoCodeRepo{pool: pool}
}

const promoCodeColumns = `id, code, discount_amount, usage_limit, used_count, expires_at, is_active, created_by, created_at, updated_at`

func scanPromoCode(row pgx.Row) (*model.PromoCode, error) {
	var p model.PromoCode
	if err := row.Scan(
		&p.ID, &p.Code, &p.DiscountAmount, &p.UsageLimit, &p.UsedCount, &p.ExpiresAt, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, mapRowErr(err)
	}
	return &p, nil
}

// issuanceLockKey is the pg_advisory_xact_lock key taken by every batch.
const issuanceLockKey int64 = 0x70726f6d6f // "promo"

// LockIssuance takes a transaction-scoped advisory lock. Without it two
// batches drawing the same codes can each block on a row the other inserted.
func (r *promoCodeRepo) LockIssuance(ctx context.Context, tx repository.Tx) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, issuanceLockKey)
	return err
}

// InsertBatch queues one INSERT per code in a single round trip. The unique
// index on code turns collisions into skipped rows instead of errors, which
// also covers a concurrent batch that committed the same code first.
func (r *promoCodeRepo) InsertBatch(ctx context.Context, tx repository.Tx, codes []*model.PromoCode) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO promo_codes (id, code, discount_amount, usage_limit, used_count, expires_at, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO NOTHING
RETURNING id;`

	b := &pgx.Batch{}
	for _, c := range codes {
		b.Queue(q, c.ID, model.NormalizeCode(c.Code), c.DiscountAmount, c.UsageLimit, c.UsedCount, c.ExpiresAt, c.IsActive, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	}
	br := ex.SendBatch(ctx, b)
	defer br.Close()

	var conflicts []string
	for _, c := range codes {
		var id string
		err := br.QueryRow().Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			conflicts = append(conflicts, model.NormalizeCode(c.Code))
			continue
		}
		if err != nil {
			return nil, mapErr(err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, mapErr(err)
	}
	return conflicts, nil
}

func (r *promoCodeRepo) ExistingCodes(ctx context.Context, tx repository.Tx, codes []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(codes) == 0 {
		return out, nil
	}
	norm := make([]string, len(codes))
	for i, c := range codes {
		norm[i] = model.NormalizeCode(c)
	}

	const q = `SELECT code FROM promo_codes WHERE code = ANY($1);`
	rows, err := queryRows(ctx, r.pool, tx, q, norm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// FindByCode locks the row FOR UPDATE when called inside a transaction, so
// concurrent redemptions of the same code serialize on it.
func (r *promoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	q := `SELECT ` + promoCodeColumns + ` FROM promo_codes WHERE code = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	return scanPromoCode(row)
}

func (r *promoCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromoCode, error) {
	const q = `SELECT ` + promoCodeColumns + ` FROM promo_codes WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPromoCode(row)
}

// IncrementUsage is a conditional relative update: the cap is re-checked by
// the same statement that increments, so it can never overshoot.
func (r *promoCodeRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) (int, error) {
	const q = `
UPDATE promo_codes
   SET used_count = used_count + 1, updated_at = now()
 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
RETURNING used_count;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return 0, err
	}
	var used int
	if err := row.Scan(&used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUsageLimitReached
		}
		return 0, mapErr(err)
	}
	return used, nil
}

func (r *promoCodeRepo) SetActive(ctx context.Context, tx repository.Tx, id string, active bool) error {
	const q = `UPDATE promo_codes SET is_active = $2, updated_at = now() WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *promoCodeRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.PromoCode, error) {
	const q = `SELECT ` + promoCodeColumns + ` FROM promo_codes ORDER BY created_at DESC, code LIMIT $1 OFFSET $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PromoCode
	for rows.Next() {
		p, err := scanPromoCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
