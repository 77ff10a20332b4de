package repository

import (
	"context"

	"launchpad/internal/domain/model"
)

// PromoCodeRepository is the port for promo codes.
type PromoCodeRepository interface {
	// LockIssuance serializes batch issuance until tx ends, so concurrent
	// batches never wait on each other's uncommitted codes.
	LockIssuance(ctx context.Context, tx Tx) error
	// InsertBatch inserts every code that does not collide with an existing
	// one and returns the codes that were skipped because of a collision.
	// Callers run it inside a transaction so the batch commits as a whole.
	InsertBatch(ctx context.Context, tx Tx, codes []*model.PromoCode) (conflicts []string, err error)
	// ExistingCodes returns the subset of codes that are already issued.
	ExistingCodes(ctx context.Context, tx Tx, codes []string) (map[string]struct{}, error)
	// FindByCode looks a code up by its normalized value. Inside a
	// transaction the row is locked until commit.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromoCode, error)
	// IncrementUsage adds exactly one use if the cap allows it and returns the
	// new used count. It returns domain.ErrUsageLimitReached otherwise.
	IncrementUsage(ctx context.Context, tx Tx, id string) (int, error)
	SetActive(ctx context.Context, tx Tx, id string, active bool) error
	List(ctx context.Context, tx Tx, limit, offset int) ([]*model.PromoCode, error)
}

// PromoCodeUsageRepository is the port for the append-only redemption log.
type PromoCodeUsageRepository interface {
	Insert(ctx context.Context, tx Tx, u *model.PromoCodeUsage) error
	CountByUser(ctx context.Context, tx Tx, promoCodeID, userID string) (int, error)
}
