package models

import (
	"time"

	"github.com/indexpilot/indexpilot/internal/config"
)

// URLSubmission is one attempt to submit one URL for one job. Rows are
// append-only history: a rerun adds new rows and never rewrites old ones.
// ServiceAccountID is nil when quota was exhausted before any account
// could be tried.
type URLSubmission struct {
	ID               uint             `gorm:"primaryKey;autoIncrement"`
	JobID            uint             `gorm:"not null;index"`
	URL              string           `gorm:"type:text;not null"`
	Status           config.URLStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	ServiceAccountID *uint
	ErrorMessage     string `gorm:"type:text"`
	SubmittedAt      *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (URLSubmission) TableName() string {
	return "url_submissions"
}
