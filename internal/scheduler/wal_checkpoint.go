package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/sharepool/internal/database"
)

// WALCheckpointJob periodically truncates the database WAL so the file
// does not grow without bound under sustained write load.
type WALCheckpointJob struct {
	log zerolog.Logger
	db  *database.DB
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		log: log.With().Str("job", "wal_checkpoint").Logger(),
		db:  db,
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the WAL checkpoint job
func (j *WALCheckpointJob) Run() error {
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	stats, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Checkpoint succeeded but stats read failed")
		return nil
	}

	j.log.Debug().
		Int64("db_bytes", stats.SizeBytes).
		Int64("wal_bytes", stats.WALSizeBytes).
		Msg("WAL checkpoint complete")
	return nil
}
