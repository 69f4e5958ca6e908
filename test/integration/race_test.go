package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/quota"
	"github.com/indexpilot/indexpilot/internal/storage/postgres"
)

// Ten workers race for the same pending job; the conditional UPDATE must
// admit exactly one of them.
func TestJobLock_SingleWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	ctx := context.Background()

	job := &models.Job{
		UserID:   "race-user",
		Name:     "contested job",
		Schedule: config.ScheduleOneTime,
		Status:   config.JobStatusPending,
	}
	require.NoError(t, repo.Create(ctx, job))

	const workers = 10
	var wins int64
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start

			locked, err := repo.TryLock(ctx, job.ID, string(rune('a'+n))+"-worker", 10*time.Minute)
			require.NoError(t, err)
			if locked {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins, "exactly one worker may hold the lock")

	locked, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusRunning, locked.Status)
	assert.NotEmpty(t, locked.LockedBy)
	require.NotNil(t, locked.LockedAt)
}

// A running job whose lock has gone stale is claimable by another worker.
func TestJobLock_StaleTakeover(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	ctx := context.Background()

	job := &models.Job{
		UserID:   "race-user",
		Name:     "abandoned job",
		Schedule: config.ScheduleOneTime,
		Status:   config.JobStatusPending,
	}
	require.NoError(t, repo.Create(ctx, job))

	locked, err := repo.TryLock(ctx, job.ID, "worker-dead", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	// fresh lock is not claimable
	locked, err = repo.TryLock(ctx, job.ID, "worker-live", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)

	// age the lock past the timeout
	stale := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Exec(
		"UPDATE indexing_jobs SET locked_at = ? WHERE id = ?", stale, job.ID).Error)

	locked, err = repo.TryLock(ctx, job.ID, "worker-live", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "worker-live", got.LockedBy)
}

// The bounded upsert must never grant past the limit, even with many
// concurrent claimants on separate connections.
func TestQuotaIncrement_BoundedUnderConcurrency(t *testing.T) {
	db := setupTestDB(t)
	quotas := postgres.NewQuotaRepository(db)
	accounts := postgres.NewAccountRepository(db)
	ctx := context.Background()

	account := &models.ServiceAccount{
		UserID:          "race-user",
		Name:            "sa-race",
		ClientEmail:     "sa-race@example.iam.gserviceaccount.com",
		CredentialsJSON: "{}",
		DailyQuotaLimit: 20,
	}
	require.NoError(t, db.WithContext(ctx).Create(account).Error)

	date := quota.DateKey(time.Now())

	const claimants = 50
	const limit = 20
	var granted int64
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			ok, err := quotas.IncrementIfBelow(ctx, account.ID, date, limit)
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.EqualValues(t, limit, granted)

	usage, err := quotas.Usage(ctx, account.ID, date)
	require.NoError(t, err)
	assert.Equal(t, limit, usage)

	// sanity: the account row is visible through the repo too
	got, err := accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.DailyQuotaLimit)
}
