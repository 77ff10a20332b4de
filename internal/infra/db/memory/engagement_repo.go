package memory

import (
	"context"

	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
)

var _ repository.EngagementRepository = (*engagementRepo)(nil)

type engagementRepo struct {
	s *Store
}

func NewEngagementRepo(s *Store) repository.EngagementRepository {
	return &engagementRepo{s: s}
}

func (r *engagementRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, e *model.Engagement) (bool, error) {
	created := false
	err := r.s.exec(ctx, tx, func(t *memTx) error {
		key := engagementKey{actorID: e.ActorID, subjectID: e.SubjectID}
		if _, ok := r.s.engagements[key]; ok {
			return nil
		}
		cp := *e
		r.s.engagements[key] = &cp
		t.onRollback(func() { delete(r.s.engagements, key) })
		created = true
		return nil
	})
	return created, err
}
