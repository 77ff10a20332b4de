package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"launchpad/internal/infra/metrics"
)

// PoolStatsJob publishes pgxpool gauges. It is run by the scheduler.
type PoolStatsJob struct {
	pool *pgxpool.Pool
}

func NewPoolStatsJob(pool *pgxpool.Pool) *PoolStatsJob {
	return &PoolStatsJob{pool: pool}
}

func (j *PoolStatsJob) Name() string { return "db_pool_stats" }

func (j *PoolStatsJob) Run(_ context.Context) error {
	s := j.pool.Stat()
	metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.MaxConns())
	return nil
}
