package application

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"launchpad/internal/config"
	"launchpad/internal/domain/model"
	"launchpad/internal/domain/ports/repository"
	"launchpad/internal/infra/db/memory"
	pg "launchpad/internal/infra/db/postgres"
	red "launchpad/internal/infra/redis"
	"launchpad/internal/infra/scheduler"
	"launchpad/internal/usecase"
)

// Services composes the use cases from the configured storage driver.
// Any caller (HTTP server, seed tool, tests) builds one and closes it.
type Services struct {
	RateLimit  usecase.RateLimitUseCase
	Issue      usecase.PromoIssueUseCase
	Redeem     usecase.PromoRedeemUseCase
	Engagement usecase.EngagementUseCase

	// Jobs are periodic tasks for the scheduler.
	Jobs []scheduler.Job

	pool  *pgxpool.Pool
	redis *red.Client
}

type stores struct {
	codes       repository.PromoCodeRepository
	usages      repository.PromoCodeUsageRepository
	engagements repository.EngagementRepository
	tm          repository.TransactionManager
	window      repository.SlidingWindowStore
}

func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Services, error) {
	s := &Services{}
	var st stores

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.pool = pool
		if cfg.Database.ApplySchema {
			if err := pg.ApplySchema(ctx, pool); err != nil {
				s.Close()
				return nil, fmt.Errorf("apply schema: %w", err)
			}
		}
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.redis = rc

		st = stores{
			codes:       pg.NewPromoCodeRepo(pool),
			usages:      pg.NewPromoCodeUsageRepo(pool),
			engagements: pg.NewEngagementRepo(pool),
			tm:          pg.NewTxManager(pool),
			window:      red.NewSlidingWindow(rc, cfg.RateLimit.KeyPrefix),
		}
		s.Jobs = append(s.Jobs, pg.NewPoolStatsJob(pool))
		logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")

	case config.DriverMemory:
		ms := memory.NewStore()
		st = stores{
			codes:       memory.NewPromoCodeRepo(ms),
			usages:      memory.NewPromoCodeUsageRepo(ms),
			engagements: memory.NewEngagementRepo(ms),
			tm:          memory.NewTxManager(ms),
			window:      memory.NewSlidingWindow(),
		}
		logger.Warn().Msg("using in-memory storage; data is lost on restart")

	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.Storage.Driver)
	}

	s.RateLimit = usecase.NewRateLimitUseCase(st.window, usecase.RateLimitOptions{
		StoreTimeout: cfg.RateLimit.StoreTimeout,
		Retries:      cfg.RateLimit.Retries,
		RetryBackoff: cfg.RateLimit.RetryBackoff,
	}, logger)
	s.Issue = usecase.NewPromoIssueUseCase(st.codes, st.tm, usecase.PromoIssueOptions{
		MaxGenerationAttempts: cfg.Promo.MaxGenerationAttempts,
		StoreTimeout:          cfg.Promo.StoreTimeout,
		Generate:              usecase.NewCodeGenerator(cfg.Promo.SuffixLength),
	}, logger)
	s.Redeem = usecase.NewPromoRedeemUseCase(st.codes, st.usages, st.tm, usecase.PromoRedeemOptions{
		MaxUsesPerUser: cfg.Promo.MaxUsesPerUser,
		StoreTimeout:   cfg.Promo.StoreTimeout,
		Dev:            cfg.Runtime.Dev,
	}, logger)
	s.Engagement = usecase.NewEngagementUseCase(st.engagements, cfg.Promo.StoreTimeout, logger)
	return s, nil
}

// Close releases the pool and the redis client. Safe on a partial build.
func (s *Services) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Rules converts configured rate-limit rules to domain rules.
func Rules(cfg config.RateLimitConfig) map[string]model.RateLimitRule {
	out := make(map[string]model.RateLimitRule, len(cfg.Rules))
	for scope, r := range cfg.Rules {
		out[scope] = model.RateLimitRule{Limit: r.Limit, Window: r.Window}
	}
	return out
}
