// Package scheduler drives the engine: a periodic monitor tick that locks
// due jobs and hands them to the dispatch loop, plus the slower sweeps
// that recover stuck jobs, resume quota-paused jobs and send usage
// alerts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/progress"
	"github.com/indexpilot/indexpilot/internal/quota"
)

// JobStore is the slice of job persistence the monitor needs.
type JobStore interface {
	FindDue(ctx context.Context, now time.Time) ([]models.Job, error)
	FindStuck(ctx context.Context, threshold time.Duration) ([]models.Job, error)
	ResetStuck(ctx context.Context, id uint) error
	TryLock(ctx context.Context, id uint, workerID string, lockTimeout time.Duration) (bool, error)
	UpdateNextRun(ctx context.Context, id uint, next time.Time) error
}

// Executor runs the dispatch loop for an already-locked job.
type Executor interface {
	Execute(ctx context.Context, jobID uint) error
}

// Monitor polls the database for work. The poll is the single source of
// truth for dispatch: cron expressions only decide WHEN a job becomes
// due (next_run), never trigger execution directly, so a missed tick is
// caught by the next one.
type Monitor struct {
	jobs     JobStore
	runner   Executor
	pause    *quota.PauseManager
	alerts   *quota.AlertSweeper
	progress progress.Broadcaster
	cfg      *config.Engine
	log      *zap.Logger

	// bounds the number of jobs dispatching at once
	slots chan struct{}
	wg    sync.WaitGroup
}

func NewMonitor(
	jobs JobStore,
	runner Executor,
	pause *quota.PauseManager,
	alerts *quota.AlertSweeper,
	broadcaster progress.Broadcaster,
	cfg *config.Engine,
	log *zap.Logger,
) *Monitor {
	return &Monitor{
		jobs:     jobs,
		runner:   runner,
		pause:    pause,
		alerts:   alerts,
		progress: broadcaster,
		cfg:      cfg,
		log:      log.Named("monitor"),
		slots:    make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight dispatches
// to settle their jobs before returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitor started",
		zap.String("worker_id", m.cfg.WorkerID),
		zap.Duration("tick", m.cfg.TickInterval),
		zap.Int("max_concurrent", m.cfg.MaxConcurrentJobs),
	)

	tick := time.NewTicker(m.cfg.TickInterval)
	resume := time.NewTicker(m.cfg.ResumeSweepInterval)
	alert := time.NewTicker(m.cfg.AlertSweepInterval)
	defer tick.Stop()
	defer resume.Stop()
	defer alert.Stop()

	// run a full pass at startup so a restart picks up backlog
	// immediately
	m.tickOnce(ctx)
	m.resumeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopping, waiting for in-flight jobs")
			m.wg.Wait()
			return ctx.Err()
		case <-tick.C:
			m.tickOnce(ctx)
		case <-resume.C:
			m.resumeSweep(ctx)
		case <-alert.C:
			if err := m.alerts.Sweep(ctx); err != nil {
				m.log.Error("alert sweep failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) tickOnce(ctx context.Context) {
	m.reapStuck(ctx)
	m.dispatchDue(ctx)
}

// dispatchDue locks and launches every due job it can. TryLock is the
// gate: concurrent monitors on the same database fight over the same
// rows and exactly one wins each.
func (m *Monitor) dispatchDue(ctx context.Context) {
	now := time.Now().UTC()

	due, err := m.jobs.FindDue(ctx, now)
	if err != nil {
		m.log.Error("find due jobs failed", zap.Error(err))
		return
	}

	for _, job := range due {
		select {
		case m.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		locked, err := m.jobs.TryLock(ctx, job.ID, m.cfg.WorkerID, m.cfg.LockTimeout)
		if err != nil {
			<-m.slots
			m.log.Error("try lock failed", zap.Uint("job_id", job.ID), zap.Error(err))
			continue
		}
		if !locked {
			// another worker got there first
			<-m.slots
			continue
		}

		// advance next_run before dispatch so a crash mid-run cannot
		// double-fire the same occurrence
		if job.Schedule != config.ScheduleOneTime && job.CronExpression != "" {
			next, err := NextAfter(job.CronExpression, now)
			if err != nil {
				m.log.Error("cron advance failed",
					zap.Uint("job_id", job.ID),
					zap.String("expr", job.CronExpression),
					zap.Error(err))
			} else if err := m.jobs.UpdateNextRun(ctx, job.ID, next); err != nil {
				m.log.Error("update next run failed", zap.Uint("job_id", job.ID), zap.Error(err))
			}
		}

		m.wg.Add(1)
		go func(id uint, name string) {
			defer m.wg.Done()
			defer func() { <-m.slots }()

			m.log.Info("dispatching job", zap.Uint("job_id", id), zap.String("job", name))
			if err := m.runner.Execute(ctx, id); err != nil {
				m.log.Error("dispatch failed", zap.Uint("job_id", id), zap.Error(err))
			}
		}(job.ID, job.Name)
	}
}

// reapStuck returns jobs abandoned by crashed workers to the queue. A
// running job whose last heartbeat is older than the threshold has no
// live dispatch loop behind it.
func (m *Monitor) reapStuck(ctx context.Context) {
	stuck, err := m.jobs.FindStuck(ctx, m.cfg.StuckJobThreshold)
	if err != nil {
		m.log.Error("find stuck jobs failed", zap.Error(err))
		return
	}

	for _, job := range stuck {
		if err := m.jobs.ResetStuck(ctx, job.ID); err != nil {
			m.log.Error("reset stuck job failed", zap.Uint("job_id", job.ID), zap.Error(err))
			continue
		}

		m.log.Warn("recovered stuck job",
			zap.Uint("job_id", job.ID),
			zap.String("job", job.Name),
			zap.String("held_by", job.LockedBy),
		)
		m.progress.JobUpdate(ctx, job.ID, config.JobStatusPending, map[string]any{
			"recovered": true,
		})
	}
}

func (m *Monitor) resumeSweep(ctx context.Context) {
	resumed, err := m.pause.ResumeSweep(ctx)
	if err != nil {
		m.log.Error("resume sweep failed", zap.Error(err))
		return
	}
	if resumed > 0 {
		m.log.Info("resume sweep finished", zap.Int("resumed", resumed))
	}
}
