package models

import (
	"time"

	"github.com/indexpilot/indexpilot/internal/config"
)

// QuotaAlert records a sent usage alert so the sweep sends at most one
// alert per account, level and day.
type QuotaAlert struct {
	ID                  uint               `gorm:"primaryKey;autoIncrement"`
	UserID              string             `gorm:"type:varchar(64);not null;index"`
	ServiceAccountID    uint               `gorm:"not null;index"`
	Level               config.AlertLevel  `gorm:"type:varchar(20);not null"`
	ThresholdPercentage int                `gorm:"not null"`
	CurrentUsage        int                `gorm:"not null"`
	QuotaLimit          int                `gorm:"not null"`
	Date                string             `gorm:"type:varchar(10);not null"`
	SentAt              time.Time          `gorm:"autoCreateTime"`
}

func (QuotaAlert) TableName() string {
	return "quota_alerts"
}
