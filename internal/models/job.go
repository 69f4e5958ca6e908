package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/indexpilot/indexpilot/internal/config"
)

// Job is one unit of indexing work: a URL source (sitemap or manual list)
// submitted to the provider on a one-time or recurring schedule. Progress
// counters satisfy processed = successful + failed + quota_exceeded at any
// settled state.
type Job struct {
	ID       uint               `gorm:"primaryKey;autoIncrement"`
	UserID   string             `gorm:"type:varchar(64);not null;index"`
	Name     string             `gorm:"type:varchar(255);not null"`
	Schedule config.JobSchedule `gorm:"type:varchar(20);not null;default:'one-time'"`
	Status   config.JobStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`

	SitemapURL string         `gorm:"type:text"`
	ManualURLs datatypes.JSON `gorm:"type:jsonb"`

	TotalURLs         int `gorm:"default:0;not null"`
	ProcessedURLs     int `gorm:"default:0;not null"`
	SuccessfulURLs    int `gorm:"default:0;not null"`
	FailedURLs        int `gorm:"default:0;not null"`
	QuotaExceededURLs int `gorm:"default:0;not null"`

	CronExpression string `gorm:"type:varchar(64)"`
	NextRun        *time.Time
	LastRun        *time.Time

	// Advisory lock: a job is claimed by atomically flipping pending ->
	// running, so these are only meaningful while status = running.
	LockedAt *time.Time
	LockedBy string `gorm:"type:varchar(128)"`

	PausedDueToQuota bool `gorm:"default:false;not null"`
	PausedAt         *time.Time
	PauseReason      string `gorm:"type:text"`
	ResumeAfter      *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Job) TableName() string {
	return "indexing_jobs"
}
