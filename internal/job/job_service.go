package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/common"
	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/dto"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/quota"
	"github.com/indexpilot/indexpilot/internal/scheduler"
)

type JobService struct {
	repo   JobRepoInterface
	subs   SubmissionRepoInterface
	pause  Resumer
	quotas QuotaReader
}

func NewJobService(repo JobRepoInterface, subs SubmissionRepoInterface, pause Resumer, quotas QuotaReader) *JobService {
	return &JobService{repo: repo, subs: subs, pause: pause, quotas: quotas}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates creation input, applies the schedule rules and
// persists the job as pending. One-time jobs are due immediately;
// recurring jobs get their first next_run from the cron expression.
func (s *JobService) CreateJob(ctx context.Context, userID string, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !slices.Contains(config.AllowedSchedules, req.Schedule) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid schedule",
			map[string]any{
				"provided": req.Schedule,
				"allowed":  config.AllowedSchedules,
			},
		)
	}

	hasSitemap := req.SitemapURL != ""
	hasURLs := len(req.URLs) > 0
	if hasSitemap == hasURLs {
		return nil, common.Errf(http.StatusBadRequest,
			"exactly one of sitemap_url or urls must be provided")
	}

	job := models.Job{
		UserID:     userID,
		Name:       req.Name,
		Schedule:   req.Schedule,
		Status:     config.JobStatusPending,
		SitemapURL: req.SitemapURL,
	}

	if hasURLs {
		raw, err := json.Marshal(req.URLs)
		if err != nil {
			return nil, common.Errf(http.StatusBadRequest, "invalid url list")
		}
		job.ManualURLs = datatypes.JSON(raw)
	}

	if req.Schedule != config.ScheduleOneTime {
		expr := req.CronExpression
		if expr == "" {
			generated, err := scheduler.CronFor(req.Schedule)
			if err != nil {
				return nil, common.Errf(http.StatusBadRequest, "unsupported schedule %q", req.Schedule)
			}
			expr = generated
		} else if err := scheduler.ValidateCron(expr); err != nil {
			return nil, common.Errf(http.StatusBadRequest, "invalid cron expression: %v", err)
		}
		job.CronExpression = expr

		next, err := scheduler.NextAfter(expr, time.Now())
		if err != nil {
			return nil, common.Errf(http.StatusBadRequest, "invalid cron expression: %v", err)
		}
		job.NextRun = &next
	}

	if err := s.repo.Create(ctx, &job); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, common.Errf(http.StatusRequestTimeout, "request was canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, common.Errf(http.StatusRequestTimeout, "request timeout")
		default:
			return nil, common.Errf(http.StatusInternalServerError, "failed to create job")
		}
	}

	resp := toJobResponse(&job)
	return &resp, nil
}

// GetJob retrieves a job by ID, scoped to the owning user. A job owned by
// someone else reads as not found.
func (s *JobService) GetJob(ctx context.Context, userID string, id uint) (*dto.JobResponseDTO, error) {
	job, err := s.ownedJob(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resp := toJobResponse(job)
	return &resp, nil
}

func (s *JobService) ListJobs(ctx context.Context, userID string) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	jobs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = toJobResponse(&jobs[i])
	}
	return dtos, nil
}

// CancelJob stops a job that has not settled. A running job is marked
// cancelled in place; the dispatch loop notices on its next iteration
// and stops.
func (s *JobService) CancelJob(ctx context.Context, userID string, id uint) error {
	if _, err := s.ownedJob(ctx, userID, id); err != nil {
		return err
	}

	cancelled, err := s.repo.Cancel(ctx, id, userID)
	if err != nil {
		return mapRepoError(err, "failed to cancel job")
	}
	if !cancelled {
		return common.Errf(http.StatusConflict, "job already settled")
	}
	return nil
}

// DeleteJob removes a job. Running jobs must be cancelled first so a live
// dispatch loop never operates on a deleted row.
func (s *JobService) DeleteJob(ctx context.Context, userID string, id uint) error {
	job, err := s.ownedJob(ctx, userID, id)
	if err != nil {
		return err
	}

	if job.Status == config.JobStatusRunning {
		return common.Errf(http.StatusConflict, "cancel the job before deleting it")
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return mapRepoError(err, "failed to delete job")
	}
	return nil
}

// RerunJob resets a settled job to pending with fresh counters. The
// submission history stays; a rerun appends to it.
func (s *JobService) RerunJob(ctx context.Context, userID string, id uint) error {
	job, err := s.ownedJob(ctx, userID, id)
	if err != nil {
		return err
	}

	if !job.Status.Terminal() {
		return common.Errf(http.StatusConflict,
			"job is %s; only completed, failed or cancelled jobs can be rerun", job.Status)
	}

	if err := s.repo.Rerun(ctx, id); err != nil {
		return mapRepoError(err, "failed to rerun job")
	}
	return nil
}

// ResumeJob attempts to resume a quota-paused job ahead of the automatic
// sweep. The response says whether quota was actually available.
func (s *JobService) ResumeJob(ctx context.Context, userID string, id uint) (*dto.ResumeResponseDTO, error) {
	job, err := s.ownedJob(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if job.Status != config.JobStatusPaused || !job.PausedDueToQuota {
		return nil, common.Errf(http.StatusConflict, "job is not paused due to quota")
	}

	resumed, reason, err := s.pause.ManualResume(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to resume job")
	}

	return &dto.ResumeResponseDTO{Resumed: resumed, Reason: reason}, nil
}

func (s *JobService) ListSubmissions(ctx context.Context, userID string, id uint) ([]dto.SubmissionResponseDTO, error) {
	if _, err := s.ownedJob(ctx, userID, id); err != nil {
		return nil, err
	}

	subs, err := s.subs.ListByJob(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to list submissions")
	}

	dtos := make([]dto.SubmissionResponseDTO, len(subs))
	for i, sub := range subs {
		dtos[i] = dto.SubmissionResponseDTO{
			ID:               sub.ID,
			URL:              sub.URL,
			Status:           sub.Status,
			ServiceAccountID: sub.ServiceAccountID,
			ErrorMessage:     sub.ErrorMessage,
			SubmittedAt:      sub.SubmittedAt,
		}
	}
	return dtos, nil
}

// QuotaStatus reports today's usage across the user's active accounts.
func (s *JobService) QuotaStatus(ctx context.Context, userID string) (*dto.QuotaStatusDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	date := quota.DateKey(time.Now())
	candidates, err := s.quotas.OrderedCandidates(ctx, userID, date)
	if err != nil {
		return nil, mapRepoError(err, "failed to load quota usage")
	}

	status := &dto.QuotaStatusDTO{Date: date}
	for _, c := range candidates {
		percentage := 0
		if c.Account.DailyQuotaLimit > 0 {
			percentage = c.Usage * 100 / c.Account.DailyQuotaLimit
		}
		remaining := max(c.Account.DailyQuotaLimit-c.Usage, 0)

		status.Accounts = append(status.Accounts, dto.AccountQuotaDTO{
			AccountID:  c.Account.ID,
			Name:       c.Account.Name,
			Used:       c.Usage,
			Limit:      c.Account.DailyQuotaLimit,
			Remaining:  remaining,
			Percentage: percentage,
		})
		status.TotalUsed += c.Usage
		status.TotalLimit += c.Account.DailyQuotaLimit
		status.TotalRemaining += remaining
	}

	return status, nil
}

func (s *JobService) ownedJob(ctx context.Context, userID string, id uint) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) ||
			strings.Contains(err.Error(), "job not found") {
			return nil, common.Errf(http.StatusNotFound, "job not found")
		}
		return nil, mapRepoError(err, "failed to get job")
	}

	if job.UserID != userID {
		return nil, common.Errf(http.StatusNotFound, "job not found")
	}
	return job, nil
}

func mapRepoError(err error, fallback string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	}
	return common.Errf(http.StatusInternalServerError, "%s", fallback)
}

func toJobResponse(job *models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:                job.ID,
		Name:              job.Name,
		Schedule:          job.Schedule,
		Status:            job.Status,
		SitemapURL:        job.SitemapURL,
		TotalURLs:         job.TotalURLs,
		ProcessedURLs:     job.ProcessedURLs,
		SuccessfulURLs:    job.SuccessfulURLs,
		FailedURLs:        job.FailedURLs,
		QuotaExceededURLs: job.QuotaExceededURLs,
		CronExpression:    job.CronExpression,
		NextRun:           job.NextRun,
		LastRun:           job.LastRun,
		PausedDueToQuota:  job.PausedDueToQuota,
		PauseReason:       job.PauseReason,
		ResumeAfter:       job.ResumeAfter,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}
