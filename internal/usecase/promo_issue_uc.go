package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/logging"
	"launchpad/internal/infra/metrics"
)

// PromoIssueUseCase covers the admin side of promo codes.
type PromoIssueUseCase interface {
	// Issue writes the whole batch or nothing.
	Issue(ctx context.Context, req model.IssueRequest) ([]*model.PromoCode, error)
	List(ctx context.Context, limit, offset int) ([]*model.PromoCode, error)
	Deactivate(ctx context.Context, id string) (*model.PromoCode, error)
}

type PromoIssueOptions struct {
	MaxGenerationAttempts int
	StoreTimeout          time.Duration
	Generate              CodeGenerator
	Now                   func() time.Time
}

var _ PromoIssueUseCase = (*promoIssueUC)(nil)

type promoIssueUC struct {
	codes repository.PromoCodeRepository
	tm    repository.TransactionManager
	opts  PromoIssueOptions
	log   *zerolog.Logger
}

func NewPromoIssueUseCase(codes repository.PromoCodeRepository, tm repository.TransactionManager, opts PromoIssueOptions, logger *zerolog.Logger) PromoIssueUseCase {
	if opts.MaxGenerationAttempts <= 0 {
		opts.MaxGenerationAttempts = 10
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 500 * time.Millisecond
	}
	if opts.Generate == nil {
		opts.Generate = NewCodeGenerator(8)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &promoIssueUC{codes: codes, tm: tm, opts: opts, log: logger}
}

func (u *promoIssueUC) Issue(ctx context.Context, req model.IssueRequest) ([]*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoIssueUC.Issue")()

	prefix, err := req.Validate()
	if err != nil {
		metrics.IncPromoIssueBatch(domain.Code(err), 0)
		return nil, err
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		metrics.IncPromoIssueBatch(domain.CodeValidation, 0)
		return nil, domain.ErrInvalidArgument
	}

	now := u.opts.Now()
	expiresAt := req.ExpiresAt(now)

	ctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	var issued []*model.PromoCode
	collisions := 0
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		issued, collisions = nil, 0
		if err := u.codes.LockIssuance(ctx, tx); err != nil {
			return err
		}
		slots := newSlotState(req.Count)

		for pending := slots.all(); len(pending) > 0; {
			batch := make([]*model.PromoCode, 0, len(pending))
			for _, slot := range pending {
				code, err := u.candidate(prefix, slots, slot)
				if err != nil {
					return err
				}
				batch = append(batch, newPromoCode(code, req, expiresAt, now))
			}

			existing, err := u.codes.ExistingCodes(ctx, tx, codesOf(batch))
			if err != nil {
				return err
			}
			var retry []int
			toInsert := make([]*model.PromoCode, 0, len(batch))
			for i, p := range batch {
				if _, taken := existing[p.Code]; taken {
					retry = append(retry, pending[i])
					continue
				}
				toInsert = append(toInsert, p)
			}

			// codes issued outside this service can still land between the check and the insert
			conflicts, err := u.codes.InsertBatch(ctx, tx, toInsert)
			if err != nil {
				return err
			}
			conflicted := make(map[string]struct{}, len(conflicts))
			for _, c := range conflicts {
				conflicted[c] = struct{}{}
			}
			for i, p := range batch {
				if _, taken := existing[p.Code]; taken {
					continue
				}
				if _, lost := conflicted[p.Code]; lost {
					retry = append(retry, pending[i])
					continue
				}
				issued = append(issued, p)
			}

			collisions += len(retry)
			pending = retry
		}
		return nil
	})

	metrics.AddPromoGenerationCollisions(collisions)
	l := logging.With(ctx, u.log)
	if err != nil {
		if !isDomainRejection(err) {
			err = failClosed(err)
		}
		metrics.IncPromoIssueBatch(domain.Code(err), 0)
		l.Warn().Err(err).Str("prefix", prefix).Int("count", req.Count).Msg("promo issuance failed")
		return nil, err
	}

	metrics.IncPromoIssueBatch("ok", len(issued))
	l.Info().
		Str("prefix", prefix).
		Int("count", len(issued)).
		Int("collisions", collisions).
		Str("created_by", req.CreatedBy).
		Msg("promo codes issued")
	return issued, nil
}

// candidate draws codes for slot until one is new within the batch. Every
// draw, including those rejected later by the store, counts as an attempt.
func (u *promoIssueUC) candidate(prefix string, s *slotState, slot int) (string, error) {
	for {
		if s.attempts[slot] >= u.opts.MaxGenerationAttempts {
			return "", domain.ErrGenerationExhausted
		}
		s.attempts[slot]++
		code, err := u.opts.Generate(prefix)
		if err != nil {
			return "", fmt.Errorf("generate promo code: %w", err)
		}
		code = model.NormalizeCode(code)
		if _, dup := s.seen[code]; dup {
			continue
		}
		s.seen[code] = struct{}{}
		return code, nil
	}
}

func (u *promoIssueUC) List(ctx context.Context, limit, offset int) ([]*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoIssueUC.List")()

	if limit <= 0 || limit > 500 || offset < 0 {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	list, err := u.codes.List(ctx, nil, limit, offset)
	if err != nil {
		return nil, failClosed(err)
	}
	return list, nil
}

func (u *promoIssueUC) Deactivate(ctx context.Context, id string) (*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoIssueUC.Deactivate")()

	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	var out *model.PromoCode
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.codes.SetActive(ctx, tx, id, false); err != nil {
			return err
		}
		p, err := u.codes.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrPromoCodeNotFound
		}
		return nil, failClosed(err)
	}
	logging.With(ctx, u.log).Info().Str("promo_code_id", id).Msg("promo code deactivated")
	return out, nil
}

type slotState struct {
	attempts []int
	seen     map[string]struct{}
}

func newSlotState(n int) *slotState {
	return &slotState{attempts: make([]int, n), seen: make(map[string]struct{}, n)}
}

func (s *slotState) all() []int {
	out := make([]int, len(s.attempts))
	for i := range out {
		out[i] = i
	}
	return out
}

func newPromoCode(code string, req model.IssueRequest, expiresAt *time.Time, now time.Time) *model.PromoCode {
	var limit *int
	if req.UsageLimit != nil {
		v := *req.UsageLimit
		limit = &v
	}
	return &model.PromoCode{
		ID:             uuid.NewString(),
		Code:           code,
		DiscountAmount: req.DiscountAmount,
		UsageLimit:     limit,
		UsedCount:      0,
		ExpiresAt:      expiresAt,
		IsActive:       true,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func codesOf(ps []*model.PromoCode) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Code
	}
	return out
}
