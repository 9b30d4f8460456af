package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/sharepool/internal/modules/pool"
)

// PoolStatusJob logs the pool's supply counters on a schedule so operators
// can track sell-through from the logs alone.
type PoolStatusJob struct {
	log  zerolog.Logger
	pool *pool.Repository
}

// NewPoolStatusJob creates a new PoolStatusJob
func NewPoolStatusJob(poolRepo *pool.Repository, log zerolog.Logger) *PoolStatusJob {
	return &PoolStatusJob{
		log:  log.With().Str("job", "pool_status").Logger(),
		pool: poolRepo,
	}
}

// Name returns the job name
func (j *PoolStatusJob) Name() string {
	return "pool_status"
}

// Run executes the pool status job
func (j *PoolStatusJob) Run() error {
	status, err := j.pool.Status()
	if err != nil {
		return err
	}

	j.log.Info().
		Int64("total_units", status.TotalUnits).
		Int64("units_sold", status.UnitsSold).
		Int64("available_units", status.AvailableUnits).
		Str("share_price", status.Price.String()).
		Msg("Pool status")
	return nil
}
