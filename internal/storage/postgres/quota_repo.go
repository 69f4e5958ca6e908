package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/internal/models"
)

type QuotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Usage returns the request count for an account on a date, zero if no
// row exists yet.
func (r *QuotaRepository) Usage(ctx context.Context, accountID uint, date string) (int, error) {
	var row models.QuotaUsage
	err := r.db.WithContext(ctx).
		Where("service_account_id = ? AND date = ?", accountID, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get quota usage: %w", err)
	}
	return row.RequestsCount, nil
}

// IncrementIfBelow bumps the counter by one, creating the row on first
// use, but only while the counter is below limit. The whole
// check-and-increment is a single upsert so concurrent jobs sharing a
// credential cannot push usage past the provider's real limit. Returns
// false when the increment was rejected.
func (r *QuotaRepository) IncrementIfBelow(ctx context.Context, accountID uint, date string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO quota_usage (service_account_id, date, requests_count)
		 VALUES (?, ?, 1)
		 ON CONFLICT (service_account_id, date) DO UPDATE
		 SET requests_count = quota_usage.requests_count + 1
		 WHERE quota_usage.requests_count < ?`,
		accountID, date, limit,
	)
	if res.Error != nil {
		return false, fmt.Errorf("increment quota usage: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
