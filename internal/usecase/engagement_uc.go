package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/logging"
	"launchpad/internal/infra/metrics"
)

// EngagementUseCase records actor-to-subject interactions at most once.
type EngagementUseCase interface {
	RecordIfAbsent(ctx context.Context, actorID, subjectID string) (model.EngagementResult, error)
}

var _ EngagementUseCase = (*engagementUC)(nil)

type engagementUC struct {
	repo         repository.EngagementRepository
	storeTimeout time.Duration
	log          *zerolog.Logger
}

func NewEngagementUseCase(repo repository.EngagementRepository, storeTimeout time.Duration, logger *zerolog.Logger) EngagementUseCase {
	if storeTimeout <= 0 {
		storeTimeout = 500 * time.Millisecond
	}
	return &engagementUC{repo: repo, storeTimeout: storeTimeout, log: logger}
}

func (u *engagementUC) RecordIfAbsent(ctx context.Context, actorID, subjectID string) (model.EngagementResult, error) {
	defer logging.TraceDuration(u.log, "EngagementUC.RecordIfAbsent")()

	actorID, subjectID = strings.TrimSpace(actorID), strings.TrimSpace(subjectID)
	if actorID == "" || subjectID == "" {
		return model.EngagementResult{}, domain.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()

	created, err := u.repo.InsertIfAbsent(ctx, repository.NoTX, &model.Engagement{
		ID:        ulid.Make().String(),
		ActorID:   actorID,
		SubjectID: subjectID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		metrics.IncEngagement("error")
		err = failClosed(err)
		logging.With(ctx, u.log).Error().Err(err).Str("actor_id", actorID).Str("subject_id", subjectID).Msg("record engagement failed")
		return model.EngagementResult{}, err
	}
	if created {
		metrics.IncEngagement("created")
	} else {
		metrics.IncEngagement("duplicate")
	}
	return model.EngagementResult{Created: created}, nil
}
