package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// SentToday reports whether an alert of this level already went out for
// the account on the given date. Keeps the sweep to one alert per
// account, level and day.
func (r *AlertRepository) SentToday(ctx context.Context, accountID uint, level config.AlertLevel, date string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.QuotaAlert{}).
		Where("service_account_id = ? AND level = ? AND date = ?", accountID, level, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check quota alert: %w", err)
	}
	return count > 0, nil
}

func (r *AlertRepository) Create(ctx context.Context, alert *models.QuotaAlert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("create quota alert: %w", err)
	}
	return nil
}
