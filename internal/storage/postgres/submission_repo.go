package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create appends one submission attempt. Submissions are never updated or
// deleted; they are the audit trail across reruns.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.URLSubmission) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create url submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) ListByJob(ctx context.Context, jobID uint) ([]models.URLSubmission, error) {
	var subs []models.URLSubmission
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list url submissions: %w", err)
	}
	return subs, nil
}

func (r *SubmissionRepository) CountByStatus(ctx context.Context, jobID uint) (map[config.URLStatus]int, error) {
	var rows []struct {
		Status config.URLStatus
		Count  int
	}
	if err := r.db.WithContext(ctx).Model(&models.URLSubmission{}).
		Select("status, COUNT(*) AS count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count submissions by status: %w", err)
	}

	counts := make(map[config.URLStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
