// Package scheduler drives the engine's periodic maintenance, currently
// WAL checkpoints and pool status snapshots, on cron schedules.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of background maintenance.
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps a seconds-resolution cron runner with per-job logging.
// Job failures are logged and swallowed; a broken maintenance job must not
// take the trading engine down with it.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates an idle scheduler. Jobs run only after Start.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers job under a six-field cron schedule (leading seconds
// column); the @hourly style descriptors also work.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	name := job.Name()
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Maintenance job failed")
			return
		}
		s.log.Debug().Str("job", name).Msg("Maintenance job completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.log.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Maintenance job registered")

	return nil
}

// Start begins dispatching registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts dispatch and blocks until in-flight jobs return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}
