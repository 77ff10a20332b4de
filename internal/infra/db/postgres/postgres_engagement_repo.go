package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.EngagementRepository = (*engagementRepo)(nil)

type engagementRepo struct {
	pool *pgxpool.Pool
}

func NewEngagementRepo(pool *pgxpool.Pool) repository.EngagementRepository {
	return &engagementRepo{pool: pool}
}

// InsertIfAbsent relies on engagements_actor_subject_key; no row comes back
// when the pair already exists.
func (r *engagementRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.Engagement) (bool, error) {
	const q = `
INSERT INTO engagements (id, actor_id, subject_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (actor_id, subject_id) DO NOTHING
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, e.ID, e.ActorID, e.SubjectID, e.CreatedAt)
	if err != nil {
		return false, err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, mapErr(err)
	}
	return true, nil
}
