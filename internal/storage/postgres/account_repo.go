package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/internal/models"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Get(ctx context.Context, id uint) (*models.ServiceAccount, error) {
	var account models.ServiceAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("service account not found: %w", err)
		}
		return nil, fmt.Errorf("get service account: %w", err)
	}
	return &account, nil
}

// ListActive returns the active service accounts for a user in stable ID
// order. Usage-based ranking happens in the selector, which must see fresh
// usage on every call.
func (r *AccountRepository) ListActive(ctx context.Context, userID string) ([]models.ServiceAccount, error) {
	var accounts []models.ServiceAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	return accounts, nil
}

// UpdateToken writes back a refreshed access token so subsequent URLs in
// the same run skip re-authentication.
func (r *AccountRepository) UpdateToken(ctx context.Context, id uint, token string, expiry time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.ServiceAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":     token,
			"token_expires_at": expiry,
		}).Error; err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	return nil
}

// DistinctUserIDs lists every user that owns at least one active account.
// Used by the quota alert sweep.
func (r *AccountRepository) DistinctUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.ServiceAccount{}).
		Where("is_active = ?", true).
		Distinct("user_id").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list account user ids: %w", err)
	}
	return ids, nil
}
