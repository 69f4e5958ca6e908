package models

import "time"

// ServiceAccount is one authentication identity for the indexing API.
// CredentialsJSON is the long-lived secret material (stored encrypted by
// the credential collaborator, opaque to the engine). AccessToken caches
// the short-lived token so the dispatch loop does not re-authenticate
// per URL.
type ServiceAccount struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	UserID          string `gorm:"type:varchar(64);not null;index"`
	Name            string `gorm:"type:varchar(255);not null"`
	ClientEmail     string `gorm:"type:varchar(255);not null"`
	ProjectID       string `gorm:"type:varchar(128)"`
	CredentialsJSON string `gorm:"type:text;not null"`

	IsActive            bool `gorm:"default:true;not null"`
	DailyQuotaLimit     int  `gorm:"default:200;not null"`
	PerMinuteQuotaLimit int  `gorm:"default:60;not null"`

	AccessToken    string `gorm:"type:text"`
	TokenExpiresAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ServiceAccount) TableName() string {
	return "service_accounts"
}
