package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

func TestAlertRepository_SentToday(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	sent, err := repo.SentToday(ctx, 1, config.AlertWarning, "2026-08-31")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, repo.Create(ctx, &models.QuotaAlert{
		UserID:              "alice",
		ServiceAccountID:    1,
		Level:               config.AlertWarning,
		ThresholdPercentage: 82,
		CurrentUsage:        164,
		QuotaLimit:          200,
		Date:                "2026-08-31",
	}))

	sent, err = repo.SentToday(ctx, 1, config.AlertWarning, "2026-08-31")
	require.NoError(t, err)
	assert.True(t, sent)

	// a different level on the same day is still unsent
	sent, err = repo.SentToday(ctx, 1, config.AlertCritical, "2026-08-31")
	require.NoError(t, err)
	assert.False(t, sent)

	// the same level on the next day is unsent again
	sent, err = repo.SentToday(ctx, 1, config.AlertWarning, "2026-09-01")
	require.NoError(t, err)
	assert.False(t, sent)
}
