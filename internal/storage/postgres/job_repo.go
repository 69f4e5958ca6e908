package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) ListByUser(ctx context.Context, userID string) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) Delete(ctx context.Context, id uint, userID string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Job{}).Error; err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// TryLock claims a job for execution by atomically flipping it to running.
// The single conditional UPDATE is the whole locking protocol: it succeeds
// for a pending job whose lock is unheld or stale, and for a running job
// whose lock has outlived lockTimeout (abandoned by a dead worker).
// Returns false on contention; contention is not an error.
func (r *JobRepository) TryLock(ctx context.Context, id uint, workerID string, lockTimeout time.Duration) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-lockTimeout)

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(
			"id = ? AND ((status = ? AND (locked_at IS NULL OR locked_at < ?)) OR (status = ? AND locked_at < ?))",
			id, config.JobStatusPending, cutoff, config.JobStatusRunning, cutoff,
		).
		Updates(map[string]any{
			"status":    config.JobStatusRunning,
			"locked_at": now,
			"locked_by": workerID,
			"last_run":  now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("try lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseLock clears the lock fields and settles the job on the given
// status. Called on every dispatch exit path.
func (r *JobRepository) ReleaseLock(ctx context.Context, id uint, status config.JobStatus) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    status,
			"locked_at": nil,
			"locked_by": "",
		}).Error; err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// ClearLock drops the lock fields without touching status. Used when the
// status was already settled elsewhere, e.g. a mid-loop cancellation.
func (r *JobRepository) ClearLock(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"locked_at": nil,
			"locked_by": "",
		}).Error; err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}
	return nil
}

func (r *JobRepository) SetTotalURLs(ctx context.Context, id uint, total int) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update("total_urls", total).Error; err != nil {
		return fmt.Errorf("set total urls: %w", err)
	}
	return nil
}

// IncrementSuccess bumps the success and processed counters atomically at
// the database level.
func (r *JobRepository) IncrementSuccess(ctx context.Context, id uint) error {
	return r.incrementCounters(ctx, id, "successful_urls")
}

func (r *JobRepository) IncrementFailed(ctx context.Context, id uint) error {
	return r.incrementCounters(ctx, id, "failed_urls")
}

func (r *JobRepository) IncrementQuotaExceeded(ctx context.Context, id uint) error {
	return r.incrementCounters(ctx, id, "quota_exceeded_urls")
}

func (r *JobRepository) incrementCounters(ctx context.Context, id uint, column string) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			column:           gorm.Expr(column + " + 1"),
			"processed_urls": gorm.Expr("processed_urls + 1"),
		}).Error; err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// Pause suspends a job that ran out of quota. The lock is dropped so the
// resume path can re-claim the job cleanly.
func (r *JobRepository) Pause(ctx context.Context, id uint, reason string, resumeAfter time.Time) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              config.JobStatusPaused,
			"paused_due_to_quota": true,
			"paused_at":           now,
			"pause_reason":        reason,
			"resume_after":        resumeAfter,
			"locked_at":           nil,
			"locked_by":           "",
		}).Error; err != nil {
		return fmt.Errorf("pause job: %w", err)
	}
	return nil
}

// ClearPause puts a quota-paused job back in the dispatch queue. next_run
// is dropped so the next monitor tick picks the job up immediately instead
// of waiting for a cron boundary.
func (r *JobRepository) ClearPause(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              config.JobStatusPending,
			"paused_due_to_quota": false,
			"paused_at":           nil,
			"pause_reason":        "",
			"resume_after":        nil,
			"next_run":            nil,
		}).Error; err != nil {
		return fmt.Errorf("clear pause: %w", err)
	}
	return nil
}

func (r *JobRepository) FindResumable(ctx context.Context, now time.Time) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND paused_due_to_quota = ? AND resume_after <= ?",
			config.JobStatusPaused, true, now).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("find resumable jobs: %w", err)
	}
	return jobs, nil
}

// FindDue returns pending jobs ready for dispatch: one-time jobs run as
// soon as they are pending, recurring jobs once next_run has arrived. A
// pending recurring job with no next_run (just resumed or rerun) is due
// immediately.
func (r *JobRepository) FindDue(ctx context.Context, now time.Time) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND (schedule = ? OR next_run IS NULL OR next_run <= ?)",
			config.JobStatusPending, config.ScheduleOneTime, now).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("find due jobs: %w", err)
	}
	return jobs, nil
}

// FindStuck returns running jobs whose last_run is older than threshold,
// i.e. workers that crashed mid-dispatch and left a dead lock behind.
func (r *JobRepository) FindStuck(ctx context.Context, threshold time.Duration) ([]models.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND last_run < ?", config.JobStatusRunning, cutoff).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("find stuck jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepository) ResetStuck(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, config.JobStatusRunning).
		Updates(map[string]any{
			"status":    config.JobStatusPending,
			"locked_at": nil,
			"locked_by": "",
		}).Error; err != nil {
		return fmt.Errorf("reset stuck job: %w", err)
	}
	return nil
}

func (r *JobRepository) UpdateNextRun(ctx context.Context, id uint, next time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update("next_run", next).Error; err != nil {
		return fmt.Errorf("update next run: %w", err)
	}
	return nil
}

// Rerun resets a settled job to pending with fresh counters. Submission
// history is untouched; reruns append to it.
func (r *JobRepository) Rerun(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              config.JobStatusPending,
			"processed_urls":      0,
			"successful_urls":     0,
			"failed_urls":         0,
			"quota_exceeded_urls": 0,
			"paused_due_to_quota": false,
			"paused_at":           nil,
			"pause_reason":        "",
			"resume_after":        nil,
			"next_run":            nil,
			"locked_at":           nil,
			"locked_by":           "",
		}).Error; err != nil {
		return fmt.Errorf("rerun job: %w", err)
	}
	return nil
}

// Cancel marks a job cancelled unless it already settled. Returns false
// when the job was in a terminal state.
func (r *JobRepository) Cancel(ctx context.Context, id uint, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID, []config.JobStatus{
			config.JobStatusPending,
			config.JobStatusRunning,
			config.JobStatusPaused,
		}).
		Updates(map[string]any{
			"status":    config.JobStatusCancelled,
			"locked_at": nil,
			"locked_by": "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("cancel job: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
