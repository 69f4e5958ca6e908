// Package dispatch runs the per-URL submission loop for a locked job:
// resolve the URL list, walk it in order, spend quota across the user's
// credential accounts, and settle the job on a terminal or paused state.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/indexing"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/notify"
	"github.com/indexpilot/indexpilot/internal/progress"
	"github.com/indexpilot/indexpilot/internal/quota"
	"github.com/indexpilot/indexpilot/internal/sitemap"
)

// JobStore is the slice of job persistence the dispatch loop needs.
type JobStore interface {
	Get(ctx context.Context, id uint) (*models.Job, error)
	SetTotalURLs(ctx context.Context, id uint, total int) error
	IncrementSuccess(ctx context.Context, id uint) error
	IncrementFailed(ctx context.Context, id uint) error
	ReleaseLock(ctx context.Context, id uint, status config.JobStatus) error
	ClearLock(ctx context.Context, id uint) error
}

type SubmissionStore interface {
	Create(ctx context.Context, sub *models.URLSubmission) error
}

type Runner struct {
	jobs     JobStore
	subs     SubmissionStore
	ledger   *quota.Ledger
	pause    *quota.PauseManager
	client   indexing.Client
	sitemaps sitemap.Parser
	notify   notify.Sender
	progress progress.Broadcaster

	submitDelay    time.Duration
	requestTimeout time.Duration
	log            *zap.Logger
}

func NewRunner(
	jobs JobStore,
	subs SubmissionStore,
	ledger *quota.Ledger,
	pause *quota.PauseManager,
	client indexing.Client,
	sitemaps sitemap.Parser,
	sender notify.Sender,
	broadcaster progress.Broadcaster,
	cfg *config.Engine,
	log *zap.Logger,
) *Runner {
	return &Runner{
		jobs:           jobs,
		subs:           subs,
		ledger:         ledger,
		pause:          pause,
		client:         client,
		sitemaps:       sitemaps,
		notify:         sender,
		progress:       broadcaster,
		submitDelay:    cfg.SubmitDelay,
		requestTimeout: cfg.RequestTimeout,
		log:            log.Named("dispatch"),
	}
}

// Execute runs the dispatch loop for a job the caller has already locked
// (status running). The lock is settled on every exit path: completed,
// failed, paused (lock dropped by the pause), cancelled (lock cleared),
// or back to pending on shutdown.
func (r *Runner) Execute(ctx context.Context, jobID uint) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != config.JobStatusRunning {
		return fmt.Errorf("job %d is not locked for dispatch (status %s)", jobID, job.Status)
	}

	log := r.log.With(zap.Uint("job_id", jobID), zap.String("job", job.Name))

	urls, err := r.resolveURLs(ctx, job)
	if err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("could not resolve URL list: %v", err))
	}
	if len(urls) == 0 {
		return r.failJob(ctx, job, "no URLs to submit")
	}

	if err := r.jobs.SetTotalURLs(ctx, jobID, len(urls)); err != nil {
		return r.failJob(ctx, job, fmt.Sprintf("persisting URL count failed: %v", err))
	}

	log.Info("dispatch started", zap.Int("urls", len(urls)))
	r.progress.JobUpdate(ctx, jobID, config.JobStatusRunning, map[string]any{
		"total": len(urls),
	})

	for i, url := range urls {
		if i > 0 && r.submitDelay > 0 {
			select {
			case <-time.After(r.submitDelay):
			case <-ctx.Done():
				// shutdown mid-job: hand the job back so another worker
				// can pick it up
				if err := r.jobs.ReleaseLock(context.WithoutCancel(ctx), jobID, config.JobStatusPending); err != nil {
					log.Error("release lock on shutdown failed", zap.Error(err))
				}
				return ctx.Err()
			}
		}

		stop, err := r.dispatchURL(ctx, jobID, url)
		if err != nil {
			current, getErr := r.jobs.Get(ctx, jobID)
			if getErr != nil {
				current = job
			}
			return r.failJob(ctx, current, fmt.Sprintf("dispatch aborted: %v", err))
		}
		if stop {
			return nil
		}
	}

	return r.settle(ctx, jobID, log)
}

// dispatchURL processes a single URL. stop=true means the job left the
// running state (paused or cancelled) and the loop must exit without
// touching it further.
func (r *Runner) dispatchURL(ctx context.Context, jobID uint, url string) (stop bool, err error) {
	// Re-read state every iteration: cancellation and quota exhaustion
	// both happen mid-job.
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return false, err
	}

	switch job.Status {
	case config.JobStatusCancelled:
		if err := r.jobs.ClearLock(ctx, jobID); err != nil {
			return false, err
		}
		r.log.Info("job cancelled mid-dispatch", zap.Uint("job_id", jobID))
		r.progress.JobUpdate(ctx, jobID, config.JobStatusCancelled, nil)
		return true, nil
	case config.JobStatusPaused:
		return true, nil
	case config.JobStatusRunning:
		// keep going
	default:
		return true, nil
	}

	date := quota.DateKey(time.Now())

	avail, err := r.pause.CheckAvailability(ctx, job.UserID, date)
	if err != nil {
		return false, err
	}

	if !avail.HasHeadroom() {
		if avail.ShouldPause() {
			// proactive pause: quota ran out before this URL was tried,
			// so no submission row is written for it
			if err := r.pause.PauseJob(ctx, jobID, avail.PauseReason, avail.ResumeAfter); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, fmt.Errorf("no active service accounts for user %s", job.UserID)
	}

	return r.submitWithCandidates(ctx, job, url, avail.Candidates, date)
}

// submitWithCandidates tries the URL against each candidate in ranked
// order. A candidate that lost its headroom between ranking and now is
// skipped; a provider-side quota rejection moves on to the next account;
// any other error consumes the URL as failed.
func (r *Runner) submitWithCandidates(ctx context.Context, job *models.Job, url string, candidates []quota.Candidate, date string) (stop bool, err error) {
	for _, cand := range candidates {
		account := cand.Account

		ok, err := r.ledger.HasHeadroom(ctx, &account, date)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		result := r.client.Submit(callCtx, url, &account)
		cancel()

		now := time.Now().UTC()
		accountID := account.ID

		switch {
		case result.Success:
			if err := r.subs.Create(ctx, &models.URLSubmission{
				JobID:            job.ID,
				URL:              url,
				Status:           config.URLStatusSuccess,
				ServiceAccountID: &accountID,
				SubmittedAt:      &now,
			}); err != nil {
				return false, err
			}

			counted, err := r.ledger.RecordSuccess(ctx, &account, date)
			if err != nil {
				return false, err
			}
			if !counted {
				// the provider accepted the call but our counter was
				// already at the limit; the next pre-check will pause
				r.log.Warn("usage counter at limit after successful submit",
					zap.Uint("account_id", account.ID))
			}

			if err := r.jobs.IncrementSuccess(ctx, job.ID); err != nil {
				return false, err
			}
			r.broadcastProgress(ctx, job.ID)
			return false, nil

		case result.QuotaExceeded:
			paused, err := r.pause.HandleQuotaExceeded(ctx, job, url, &accountID)
			if err != nil {
				return false, err
			}
			if paused {
				return true, nil
			}
			// this account is done for the day; try the next one

		default:
			if err := r.subs.Create(ctx, &models.URLSubmission{
				JobID:            job.ID,
				URL:              url,
				Status:           config.URLStatusError,
				ServiceAccountID: &accountID,
				ErrorMessage:     result.Error,
				SubmittedAt:      &now,
			}); err != nil {
				return false, err
			}
			if err := r.jobs.IncrementFailed(ctx, job.ID); err != nil {
				return false, err
			}
			r.log.Debug("url submission failed",
				zap.Uint("job_id", job.ID),
				zap.String("url", url),
				zap.String("error", result.Error),
			)
			r.broadcastProgress(ctx, job.ID)
			return false, nil
		}
	}

	// every ranked candidate was exhausted by the time it was tried
	paused, err := r.pause.HandleQuotaExceeded(ctx, job, url, nil)
	if err != nil {
		return false, err
	}
	return paused, nil
}

func (r *Runner) settle(ctx context.Context, jobID uint, log *zap.Logger) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	// a pause or cancellation in the final iteration already settled the
	// job
	if job.Status != config.JobStatusRunning {
		return nil
	}

	// recurring jobs go back to pending for their next cron occurrence;
	// one-time jobs are done
	finalStatus := config.JobStatusCompleted
	if job.Schedule != config.ScheduleOneTime {
		finalStatus = config.JobStatusPending
	}

	if err := r.jobs.ReleaseLock(ctx, jobID, finalStatus); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	log.Info("dispatch finished",
		zap.Int("successful", job.SuccessfulURLs),
		zap.Int("failed", job.FailedURLs),
		zap.Int("quota_exceeded", job.QuotaExceededURLs),
		zap.Int("total", job.TotalURLs),
	)

	r.notify.Completion(ctx, job.UserID, job.Name, job.SuccessfulURLs, job.FailedURLs, job.TotalURLs)
	r.progress.JobUpdate(ctx, jobID, config.JobStatusCompleted, map[string]any{
		"successful":    job.SuccessfulURLs,
		"failed":        job.FailedURLs,
		"quotaExceeded": job.QuotaExceededURLs,
		"total":         job.TotalURLs,
	})

	return nil
}

// failJob settles a structural failure: release the lock, mark failed,
// tell the user. Releasing the lock on every exit path is what keeps a
// crashed dispatch from starving the job forever.
func (r *Runner) failJob(ctx context.Context, job *models.Job, reason string) error {
	if err := r.jobs.ReleaseLock(context.WithoutCancel(ctx), job.ID, config.JobStatusFailed); err != nil {
		r.log.Error("release lock on failure failed",
			zap.Uint("job_id", job.ID), zap.Error(err))
	}

	r.log.Warn("job failed", zap.Uint("job_id", job.ID), zap.String("reason", reason))
	r.notify.Failure(ctx, job.UserID, job.Name, reason)
	r.progress.JobUpdate(ctx, job.ID, config.JobStatusFailed, map[string]any{
		"reason": reason,
	})
	return nil
}

func (r *Runner) resolveURLs(ctx context.Context, job *models.Job) ([]string, error) {
	if job.SitemapURL != "" {
		urls, err := r.sitemaps.ParseURLs(ctx, job.SitemapURL)
		if err != nil {
			return nil, fmt.Errorf("parse sitemap: %w", err)
		}
		return urls, nil
	}

	if len(job.ManualURLs) == 0 {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal(job.ManualURLs, &urls); err != nil {
		return nil, fmt.Errorf("decode manual URL list: %w", err)
	}
	return urls, nil
}

func (r *Runner) broadcastProgress(ctx context.Context, jobID uint) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		r.log.Debug("progress re-read failed", zap.Uint("job_id", jobID), zap.Error(err))
		return
	}

	percentage := 0
	if job.TotalURLs > 0 {
		percentage = job.ProcessedURLs * 100 / job.TotalURLs
	}

	r.progress.JobUpdate(ctx, jobID, job.Status, map[string]any{
		"processed":  job.ProcessedURLs,
		"successful": job.SuccessfulURLs,
		"failed":     job.FailedURLs,
		"total":      job.TotalURLs,
		"progress":   percentage,
	})
}
