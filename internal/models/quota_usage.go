package models

// QuotaUsage counts successful submissions for one service account on one
// UTC day. Rows are created lazily on first success; the date key rolling
// over is the implicit daily reset. RequestsCount never exceeds the
// account's daily limit in steady state (enforced by a bounded atomic
// increment, not by application-level read-modify-write).
type QuotaUsage struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	ServiceAccountID uint   `gorm:"not null;uniqueIndex:idx_quota_usage_account_date,priority:1"`
	Date             string `gorm:"type:varchar(10);not null;uniqueIndex:idx_quota_usage_account_date,priority:2"`
	RequestsCount    int    `gorm:"default:0;not null"`
}

func (QuotaUsage) TableName() string {
	return "quota_usage"
}
