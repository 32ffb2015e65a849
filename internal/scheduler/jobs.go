package scheduler

import (
	"context"
	"time"

	"github.com/grainflow/grainflow/internal/modules/accumulators"
)

// SignalGenerator runs one signal generation pass across all businesses.
type SignalGenerator interface {
	GenerateAll(ctx context.Context) (int, error)
}

// GenerateSignalsJob drives the signal engine on its cadence.
type GenerateSignalsJob struct {
	generator SignalGenerator
}

// NewGenerateSignalsJob creates the generation job.
func NewGenerateSignalsJob(generator SignalGenerator) *GenerateSignalsJob {
	return &GenerateSignalsJob{generator: generator}
}

func (j *GenerateSignalsJob) Name() string { return "generate_signals" }

func (j *GenerateSignalsJob) Run(ctx context.Context) error {
	_, err := j.generator.GenerateAll(ctx)
	return err
}

// SignalExpirer moves stale signals to EXPIRED.
type SignalExpirer interface {
	ExpireDue() (int64, error)
}

// ExpireSignalsJob sweeps the signal ledger for passed expirations.
type ExpireSignalsJob struct {
	expirer SignalExpirer
}

// NewExpireSignalsJob creates the expiry job.
func NewExpireSignalsJob(expirer SignalExpirer) *ExpireSignalsJob {
	return &ExpireSignalsJob{expirer: expirer}
}

func (j *ExpireSignalsJob) Name() string { return "expire_signals" }

func (j *ExpireSignalsJob) Run(ctx context.Context) error {
	_, err := j.expirer.ExpireDue()
	return err
}

// AccumulatorSweeper advances accumulator contracts for one settlement day.
type AccumulatorSweeper interface {
	RunDaily(ctx context.Context, date time.Time) (accumulators.SweepSummary, error)
}

// AccumulatorSweepJob runs the daily accrual sweep for today's settlement.
type AccumulatorSweepJob struct {
	sweeper AccumulatorSweeper
}

// NewAccumulatorSweepJob creates the sweep job.
func NewAccumulatorSweepJob(sweeper AccumulatorSweeper) *AccumulatorSweepJob {
	return &AccumulatorSweepJob{sweeper: sweeper}
}

func (j *AccumulatorSweepJob) Name() string { return "accumulator_sweep" }

func (j *AccumulatorSweepJob) Run(ctx context.Context) error {
	_, err := j.sweeper.RunDaily(ctx, time.Now())
	return err
}

// BackupRunner ships database snapshots offsite.
type BackupRunner interface {
	Backup(ctx context.Context) error
}

// BackupJob runs the nightly database backup.
type BackupJob struct {
	runner BackupRunner
}

// NewBackupJob creates the backup job.
func NewBackupJob(runner BackupRunner) *BackupJob {
	return &BackupJob{runner: runner}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run(ctx context.Context) error {
	return j.runner.Backup(ctx)
}
