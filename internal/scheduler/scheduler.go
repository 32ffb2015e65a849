// Package scheduler runs the recurring background jobs on cron schedules
// and records every run in the job history table.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one recurring unit of background work.
type Job interface {
	// Name returns the unique job identifier used in history and the API.
	Name() string

	// Run executes the job. The context is cancelled on shutdown.
	Run(ctx context.Context) error
}

// Scheduler wires jobs to cron expressions and tracks their runs.
type Scheduler struct {
	cron    *cron.Cron
	history *sql.DB // cache.db, nil disables history
	log     zerolog.Logger

	mu   sync.Mutex
	jobs map[string]Job

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. The seconds-first cron format is used so
// sub-minute schedules stay expressible in tests.
func New(history *sql.DB, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		history: history,
		log:     log.With().Str("component", "scheduler").Logger(),
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register schedules a job. Registration fails only on a bad cron
// expression.
func (s *Scheduler) Register(spec string, job Job) error {
	s.mu.Lock()
	s.jobs[job.Name()] = job
	s.mu.Unlock()

	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s with spec %q: %w", job.Name(), spec, err)
	}

	s.log.Info().Str("job", job.Name()).Str("spec", spec).Msg("Job scheduled")
	return nil
}

// Start begins executing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels running jobs and waits for the cron runner to drain.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// RunNow executes a registered job immediately, outside its schedule. Used
// by the manual trigger endpoint.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	go s.runJob(s.ctx, job)
	return nil
}

// JobNames returns the registered job names.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	started := time.Now()
	historyID := s.recordStart(job.Name(), started)

	s.log.Info().Str("job", job.Name()).Msg("Job starting")

	err := job.Run(ctx)
	elapsed := time.Since(started)

	if err != nil {
		s.log.Error().Err(err).
			Str("job", job.Name()).
			Dur("elapsed", elapsed).
			Msg("Job failed")
		s.recordFinish(historyID, "failed", err.Error())
		return
	}

	s.log.Info().
		Str("job", job.Name()).
		Dur("elapsed", elapsed).
		Msg("Job finished")
	s.recordFinish(historyID, "ok", "")
}

func (s *Scheduler) recordStart(name string, started time.Time) int64 {
	if s.history == nil {
		return 0
	}
	res, err := s.history.Exec(`
		INSERT INTO job_history (job_name, started_at, status) VALUES (?, ?, 'running')
	`, name, started.Unix())
	if err != nil {
		s.log.Warn().Err(err).Str("job", name).Msg("Failed to record job start")
		return 0
	}
	id, _ := res.LastInsertId()
	return id
}

func (s *Scheduler) recordFinish(id int64, status, detail string) {
	if s.history == nil || id == 0 {
		return
	}
	_, err := s.history.Exec(`
		UPDATE job_history SET finished_at = ?, status = ?, detail = ? WHERE id = ?
	`, time.Now().Unix(), status, detail, id)
	if err != nil {
		s.log.Warn().Err(err).Int64("history_id", id).Msg("Failed to record job finish")
	}
}
