package dto

import (
	"time"

	"github.com/indexpilot/indexpilot/internal/config"
)

// JobCreateDTO creates an indexing job from either a sitemap URL or an
// explicit URL list. Exactly one source must be set; the service enforces
// that beyond what struct tags can express.
type JobCreateDTO struct {
	Name           string             `json:"name" validate:"required,max=255"`
	Schedule       config.JobSchedule `json:"schedule" validate:"required"`
	SitemapURL     string             `json:"sitemap_url,omitempty" validate:"omitempty,url"`
	URLs           []string           `json:"urls,omitempty" validate:"omitempty,min=1,dive,url"`
	CronExpression string             `json:"cron_expression,omitempty"`
}

type JobResponseDTO struct {
	ID                uint               `json:"id"`
	Name              string             `json:"name"`
	Schedule          config.JobSchedule `json:"schedule"`
	Status            config.JobStatus   `json:"status"`
	SitemapURL        string             `json:"sitemap_url,omitempty"`
	TotalURLs         int                `json:"total_urls"`
	ProcessedURLs     int                `json:"processed_urls"`
	SuccessfulURLs    int                `json:"successful_urls"`
	FailedURLs        int                `json:"failed_urls"`
	QuotaExceededURLs int                `json:"quota_exceeded_urls"`
	CronExpression    string             `json:"cron_expression,omitempty"`
	NextRun           *time.Time         `json:"next_run,omitempty"`
	LastRun           *time.Time         `json:"last_run,omitempty"`
	PausedDueToQuota  bool               `json:"paused_due_to_quota,omitempty"`
	PauseReason       string             `json:"pause_reason,omitempty"`
	ResumeAfter       *time.Time         `json:"resume_after,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ResumeResponseDTO reports the outcome of a manual resume attempt.
type ResumeResponseDTO struct {
	Resumed bool   `json:"resumed"`
	Reason  string `json:"reason,omitempty"`
}

// SubmissionResponseDTO is one row of a job's submission history.
type SubmissionResponseDTO struct {
	ID               uint             `json:"id"`
	URL              string           `json:"url"`
	Status           config.URLStatus `json:"status"`
	ServiceAccountID *uint            `json:"service_account_id,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
}
