package repository

import (
	"context"

	"launchpad/internal/domain/model"
)

// EngagementRepository stores at most one engagement per (actor, subject).
type EngagementRepository interface {
	// InsertIfAbsent reports whether a new row was created. Uniqueness is
	// enforced by the store, not by a prior read.
	InsertIfAbsent(ctx context.Context, tx Tx, e *model.Engagement) (bool, error)
}
