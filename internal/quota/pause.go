package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/notify"
	"github.com/indexpilot/indexpilot/internal/progress"
)

// JobStore is the slice of job persistence the pause manager needs.
type JobStore interface {
	Get(ctx context.Context, id uint) (*models.Job, error)
	Pause(ctx context.Context, id uint, reason string, resumeAfter time.Time) error
	ClearPause(ctx context.Context, id uint) error
	FindResumable(ctx context.Context, now time.Time) ([]models.Job, error)
	IncrementQuotaExceeded(ctx context.Context, id uint) error
}

// SubmissionStore appends url submission history rows.
type SubmissionStore interface {
	Create(ctx context.Context, sub *models.URLSubmission) error
}

// Availability is the result of a quota pre-check across a user's
// accounts.
type Availability struct {
	// Candidates with headroom, least-used first.
	Candidates []Candidate
	// Exhausted accounts, for the pause reason text.
	Exhausted []Candidate

	PauseReason string
	ResumeAfter time.Time
}

func (a *Availability) HasHeadroom() bool {
	return len(a.Candidates) > 0
}

// ShouldPause is true when every active account is exhausted. No active
// accounts at all is a structural failure, not a pause.
func (a *Availability) ShouldPause() bool {
	return len(a.Candidates) == 0 && len(a.Exhausted) > 0
}

// PauseManager owns the active <-> paused_quota state machine: it pauses
// jobs when every credential is exhausted and resumes them once the UTC
// reset boundary has passed and headroom is back.
type PauseManager struct {
	jobs     JobStore
	subs     SubmissionStore
	selector *Selector
	notify   notify.Sender
	progress progress.Broadcaster
	log      *zap.Logger
}

func NewPauseManager(
	jobs JobStore,
	subs SubmissionStore,
	selector *Selector,
	sender notify.Sender,
	broadcaster progress.Broadcaster,
	log *zap.Logger,
) *PauseManager {
	return &PauseManager{
		jobs:     jobs,
		subs:     subs,
		selector: selector,
		notify:   sender,
		progress: broadcaster,
		log:      log.Named("pause"),
	}
}

// CheckAvailability splits the user's active accounts into those with
// headroom and those exhausted, and precomputes pause metadata for the
// all-exhausted case.
func (m *PauseManager) CheckAvailability(ctx context.Context, userID, date string) (*Availability, error) {
	candidates, err := m.selector.OrderedCandidates(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	avail := &Availability{}
	for _, c := range candidates {
		if c.Exhausted() {
			avail.Exhausted = append(avail.Exhausted, c)
		} else {
			avail.Candidates = append(avail.Candidates, c)
		}
	}

	if avail.ShouldPause() {
		avail.PauseReason = pauseReason(avail.Exhausted)
		avail.ResumeAfter = NextUTCMidnight(time.Now())
	}

	return avail, nil
}

func pauseReason(exhausted []Candidate) string {
	if len(exhausted) == 1 {
		return fmt.Sprintf(
			"Daily quota exhausted for service account %q. Job will resume at 00:00 UTC when the quota resets.",
			exhausted[0].Account.Name,
		)
	}
	return fmt.Sprintf(
		"Daily quota exhausted for all %d service accounts. Job will resume at 00:00 UTC when the quotas reset.",
		len(exhausted),
	)
}

// PauseJob suspends the job, records the pause metadata and tells the
// user. The caller must stop dispatching immediately afterwards.
func (m *PauseManager) PauseJob(ctx context.Context, jobID uint, reason string, resumeAfter time.Time) error {
	if err := m.jobs.Pause(ctx, jobID, reason, resumeAfter); err != nil {
		return fmt.Errorf("pause job %d: %w", jobID, err)
	}

	m.log.Info("job paused for quota",
		zap.Uint("job_id", jobID),
		zap.Time("resume_after", resumeAfter),
		zap.String("reason", reason),
	)

	if job, err := m.jobs.Get(ctx, jobID); err == nil {
		m.notify.Paused(ctx, job.UserID, job.Name, reason)
	}

	m.progress.JobUpdate(ctx, jobID, config.JobStatusPaused, map[string]any{
		"reason":           reason,
		"pausedDueToQuota": true,
		"resumeAfter":      resumeAfter.Format(time.RFC3339),
	})

	return nil
}

// ResumeSweep finds quota-paused jobs whose reset boundary has passed and
// flips them back to pending if headroom is available again. Safe to run
// repeatedly: jobs without headroom stay paused untouched. Returns the
// number of jobs resumed.
func (m *PauseManager) ResumeSweep(ctx context.Context) (int, error) {
	jobs, err := m.jobs.FindResumable(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("find resumable jobs: %w", err)
	}

	resumed := 0
	date := DateKey(time.Now())

	for _, job := range jobs {
		avail, err := m.CheckAvailability(ctx, job.UserID, date)
		if err != nil {
			m.log.Error("resume availability check failed",
				zap.Uint("job_id", job.ID), zap.Error(err))
			continue
		}

		if !avail.HasHeadroom() {
			continue
		}

		if err := m.jobs.ClearPause(ctx, job.ID); err != nil {
			m.log.Error("clear pause failed", zap.Uint("job_id", job.ID), zap.Error(err))
			continue
		}

		m.log.Info("job resumed after quota reset", zap.Uint("job_id", job.ID))
		m.notify.Resumed(ctx, job.UserID, job.Name)
		m.progress.JobUpdate(ctx, job.ID, config.JobStatusPending, map[string]any{
			"resumed": true,
			"reason":  "quota reset",
		})
		resumed++
	}

	return resumed, nil
}

// ManualResume is the user-initiated variant of the sweep for one job. It
// reports whether quota was actually available instead of blindly
// flipping status; when it was not, the returned reason explains why.
func (m *PauseManager) ManualResume(ctx context.Context, jobID uint) (bool, string, error) {
	job, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return false, "", err
	}

	if job.Status != config.JobStatusPaused || !job.PausedDueToQuota {
		return false, "", fmt.Errorf("job %d is not paused due to quota", jobID)
	}

	avail, err := m.CheckAvailability(ctx, job.UserID, DateKey(time.Now()))
	if err != nil {
		return false, "", err
	}

	if !avail.HasHeadroom() {
		reason := avail.PauseReason
		if reason == "" {
			reason = "no active service accounts with available quota"
		}
		return false, reason, nil
	}

	if err := m.jobs.ClearPause(ctx, jobID); err != nil {
		return false, "", err
	}

	m.progress.JobUpdate(ctx, jobID, config.JobStatusPending, map[string]any{"resumed": true})
	return true, "", nil
}

// HandleQuotaExceeded processes a quota-exceeded rejection. It records
// the attempt, then pauses the job if no account has headroom left.
// accountID is nil when every candidate was exhausted before the provider
// could be called. Returns true when the job was paused and dispatch must
// stop.
func (m *PauseManager) HandleQuotaExceeded(ctx context.Context, job *models.Job, url string, accountID *uint) (bool, error) {
	now := time.Now().UTC()
	sub := &models.URLSubmission{
		JobID:            job.ID,
		URL:              url,
		Status:           config.URLStatusQuotaExceeded,
		ServiceAccountID: accountID,
		ErrorMessage:     "Daily quota limit exceeded",
		SubmittedAt:      &now,
	}
	if err := m.subs.Create(ctx, sub); err != nil {
		return false, fmt.Errorf("record quota exceeded submission: %w", err)
	}

	if err := m.jobs.IncrementQuotaExceeded(ctx, job.ID); err != nil {
		return false, fmt.Errorf("increment quota exceeded counter: %w", err)
	}

	avail, err := m.CheckAvailability(ctx, job.UserID, DateKey(now))
	if err != nil {
		return false, err
	}

	if !avail.ShouldPause() {
		return false, nil
	}

	if err := m.PauseJob(ctx, job.ID, avail.PauseReason, avail.ResumeAfter); err != nil {
		return false, err
	}
	return true, nil
}
