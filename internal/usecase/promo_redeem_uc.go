package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"launchpad/internal/domain"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/logging"
	"launchpad/internal/infra/metrics"
)

// PromoRedeemUseCase applies promo codes. Redeem is authoritative; Verify is
// an advisory read that reserves nothing.
type PromoRedeemUseCase interface {
	Redeem(ctx context.Context, code, userID, projectID string) (*model.Redemption, error)
	Verify(ctx context.Context, code, userID string) (*model.Verification, error)
}

type PromoRedeemOptions struct {
	MaxUsesPerUser int
	StoreTimeout   time.Duration
	Now            func() time.Time
	// Dev disables redaction of codes in logs.
	Dev bool
}

var _ PromoRedeemUseCase = (*promoRedeemUC)(nil)

type promoRedeemUC struct {
	codes  repository.PromoCodeRepository
	usages repository.PromoCodeUsageRepository
	tm     repository.TransactionManager
	opts   PromoRedeemOptions
	log    *zerolog.Logger
}

func NewPromoRedeemUseCase(codes repository.PromoCodeRepository, usages repository.PromoCodeUsageRepository, tm repository.TransactionManager, opts PromoRedeemOptions, logger *zerolog.Logger) PromoRedeemUseCase {
	if opts.MaxUsesPerUser <= 0 {
		opts.MaxUsesPerUser = model.DefaultMaxUsesPerUser
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &promoRedeemUC{codes: codes, usages: usages, tm: tm, opts: opts, log: logger}
}

// Redeem runs lookup, checks, usage insert and conditional increment in one
// transaction. The lookup locks the code row, so redemptions of one code are
// serialized and the per-user count cannot be raced.
func (u *promoRedeemUC) Redeem(ctx context.Context, code, userID, projectID string) (*model.Redemption, error) {
	defer logging.TraceDuration(u.log, "PromoRedeemUC.Redeem")()

	code = model.NormalizeCode(code)
	if code == "" || strings.TrimSpace(userID) == "" || strings.TrimSpace(projectID) == "" {
		metrics.IncPromoRedemption("redeem", domain.CodeValidation)
		return nil, domain.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	var out *model.Redemption
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		now := u.opts.Now()
		p, _, err := u.check(ctx, tx, code, userID, now)
		if err != nil {
			return err
		}

		usage := &model.PromoCodeUsage{
			ID:          ulid.Make().String(),
			PromoCodeID: p.ID,
			UserID:      userID,
			ProjectID:   projectID,
			UsedAt:      now,
		}
		if err := u.usages.Insert(ctx, tx, usage); err != nil {
			return err
		}
		count, err := u.codes.IncrementUsage(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		out = &model.Redemption{
			PromoCodeID:    p.ID,
			UsageID:        usage.ID,
			DiscountAmount: p.DiscountAmount,
			UsedCount:      count,
		}
		return nil
	})

	l := logging.With(ctx, u.log).With().
		Str("code", logging.Redact(code, u.opts.Dev)).
		Str("user_id", userID).
		Logger()
	if err != nil {
		err = failClosed(err)
		metrics.IncPromoRedemption("redeem", domain.Code(err))
		if isDomainRejection(err) {
			l.Info().Str("reason", domain.Code(err)).Msg("promo redemption rejected")
		} else {
			l.Error().Err(err).Msg("promo redemption failed")
		}
		return nil, err
	}

	metrics.IncPromoRedemption("redeem", "ok")
	l.Info().Str("project_id", projectID).Int("used_count", out.UsedCount).Msg("promo code redeemed")
	return out, nil
}

// Verify performs the same ordered checks as Redeem without writing.
func (u *promoRedeemUC) Verify(ctx context.Context, code, userID string) (*model.Verification, error) {
	defer logging.TraceDuration(u.log, "PromoRedeemUC.Verify")()

	code = model.NormalizeCode(code)
	if code == "" || strings.TrimSpace(userID) == "" {
		metrics.IncPromoRedemption("verify", domain.CodeValidation)
		return nil, domain.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()

	p, used, err := u.check(ctx, repository.NoTX, code, userID, u.opts.Now())
	if err != nil {
		err = failClosed(err)
		metrics.IncPromoRedemption("verify", domain.Code(err))
		return nil, err
	}
	metrics.IncPromoRedemption("verify", "ok")
	return &model.Verification{
		PromoCodeID:       p.ID,
		DiscountAmount:    p.DiscountAmount,
		RemainingUses:     p.RemainingUses(),
		UserRemainingUses: u.opts.MaxUsesPerUser - used,
	}, nil
}

// check applies the ordered rules: exists and active, not expired, global
// cap, per-user cap. It returns the user's current usage count.
func (u *promoRedeemUC) check(ctx context.Context, tx repository.Tx, code, userID string, now time.Time) (*model.PromoCode, int, error) {
	p, err := u.codes.FindByCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrPromoCodeNotFound
		}
		return nil, 0, err
	}
	if err := p.CheckRedeemable(now); err != nil {
		return nil, 0, err
	}
	used, err := u.usages.CountByUser(ctx, tx, p.ID, userID)
	if err != nil {
		return nil, 0, err
	}
	if used >= u.opts.MaxUsesPerUser {
		return nil, 0, domain.ErrPerUserLimitReached
	}
	return p, used, nil
}
