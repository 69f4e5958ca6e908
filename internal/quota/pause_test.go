package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/progress"
)

func newPauseManager(env *testEnv, sender *recordingSender) *PauseManager {
	return NewPauseManager(env.jobs, env.subs, env.selector, sender, progress.Nop{}, zap.NewNop())
}

func TestPauseManager_CheckAvailability(t *testing.T) {
	ctx := context.Background()
	date := DateKey(time.Now())

	t.Run("headroom on one of two accounts", func(t *testing.T) {
		env := newTestEnv(t)
		env.addAccount(t, "alice", "sa-full", 100, 100, date)
		env.addAccount(t, "alice", "sa-free", 100, 10, date)

		avail, err := newPauseManager(env, &recordingSender{}).CheckAvailability(ctx, "alice", date)
		require.NoError(t, err)

		assert.True(t, avail.HasHeadroom())
		assert.False(t, avail.ShouldPause())
		require.Len(t, avail.Candidates, 1)
		assert.Equal(t, "sa-free", avail.Candidates[0].Account.Name)
		require.Len(t, avail.Exhausted, 1)
	})

	t.Run("all accounts exhausted", func(t *testing.T) {
		env := newTestEnv(t)
		env.addAccount(t, "alice", "sa-1", 100, 100, date)
		env.addAccount(t, "alice", "sa-2", 50, 50, date)

		avail, err := newPauseManager(env, &recordingSender{}).CheckAvailability(ctx, "alice", date)
		require.NoError(t, err)

		assert.False(t, avail.HasHeadroom())
		assert.True(t, avail.ShouldPause())
		assert.Contains(t, avail.PauseReason, "all 2 service accounts")
		assert.Contains(t, avail.PauseReason, "00:00 UTC")
		assert.True(t, avail.ResumeAfter.After(time.Now()))
	})

	t.Run("single exhausted account names it", func(t *testing.T) {
		env := newTestEnv(t)
		env.addAccount(t, "alice", "sa-only", 100, 100, date)

		avail, err := newPauseManager(env, &recordingSender{}).CheckAvailability(ctx, "alice", date)
		require.NoError(t, err)

		assert.True(t, avail.ShouldPause())
		assert.Contains(t, avail.PauseReason, `"sa-only"`)
	})

	t.Run("no accounts at all is not a pause", func(t *testing.T) {
		env := newTestEnv(t)

		avail, err := newPauseManager(env, &recordingSender{}).CheckAvailability(ctx, "alice", date)
		require.NoError(t, err)

		assert.False(t, avail.HasHeadroom())
		assert.False(t, avail.ShouldPause())
	})
}

func TestPauseManager_PauseJob(t *testing.T) {
	env := newTestEnv(t)
	sender := &recordingSender{}
	pm := newPauseManager(env, sender)
	ctx := context.Background()

	job := &models.Job{
		UserID: "alice", Name: "site sync",
		Schedule: config.ScheduleDaily, Status: config.JobStatusRunning,
	}
	require.NoError(t, env.db.Create(job).Error)

	resumeAfter := NextUTCMidnight(time.Now())
	require.NoError(t, pm.PauseJob(ctx, job.ID, "quota gone", resumeAfter))

	var saved models.Job
	require.NoError(t, env.db.First(&saved, job.ID).Error)
	assert.Equal(t, config.JobStatusPaused, saved.Status)
	assert.True(t, saved.PausedDueToQuota)
	assert.Equal(t, "quota gone", saved.PauseReason)
	assert.Nil(t, saved.LockedAt)
	assert.Equal(t, []string{"site sync"}, sender.paused)
}

func TestPauseManager_ResumeSweep(t *testing.T) {
	env := newTestEnv(t)
	sender := &recordingSender{}
	pm := newPauseManager(env, sender)
	ctx := context.Background()
	date := DateKey(time.Now())

	env.addAccount(t, "alice", "sa-1", 200, 0, date)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	ready := &models.Job{
		UserID: "alice", Name: "ready", Schedule: config.ScheduleDaily,
		Status: config.JobStatusPaused, PausedDueToQuota: true, ResumeAfter: &past,
	}
	notYet := &models.Job{
		UserID: "alice", Name: "not yet", Schedule: config.ScheduleDaily,
		Status: config.JobStatusPaused, PausedDueToQuota: true, ResumeAfter: &future,
	}
	require.NoError(t, env.db.Create(ready).Error)
	require.NoError(t, env.db.Create(notYet).Error)

	resumed, err := pm.ResumeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	var saved models.Job
	require.NoError(t, env.db.First(&saved, ready.ID).Error)
	assert.Equal(t, config.JobStatusPending, saved.Status)
	assert.False(t, saved.PausedDueToQuota)
	assert.Nil(t, saved.NextRun)

	require.NoError(t, env.db.First(&saved, notYet.ID).Error)
	assert.Equal(t, config.JobStatusPaused, saved.Status)

	assert.Equal(t, []string{"ready"}, sender.resumed)

	// the sweep is idempotent
	resumed, err = pm.ResumeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resumed)
}

func TestPauseManager_ResumeSweep_NoHeadroomStaysPaused(t *testing.T) {
	env := newTestEnv(t)
	pm := newPauseManager(env, &recordingSender{})
	ctx := context.Background()
	date := DateKey(time.Now())

	// still exhausted today, so passing the boundary is not enough
	env.addAccount(t, "alice", "sa-1", 100, 100, date)

	past := time.Now().UTC().Add(-time.Hour)
	job := &models.Job{
		UserID: "alice", Name: "blocked", Schedule: config.ScheduleDaily,
		Status: config.JobStatusPaused, PausedDueToQuota: true, ResumeAfter: &past,
	}
	require.NoError(t, env.db.Create(job).Error)

	resumed, err := pm.ResumeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resumed)

	var saved models.Job
	require.NoError(t, env.db.First(&saved, job.ID).Error)
	assert.Equal(t, config.JobStatusPaused, saved.Status)
}

func TestPauseManager_ManualResume(t *testing.T) {
	ctx := context.Background()
	date := DateKey(time.Now())

	t.Run("resumes with headroom", func(t *testing.T) {
		env := newTestEnv(t)
		pm := newPauseManager(env, &recordingSender{})
		env.addAccount(t, "alice", "sa-1", 200, 10, date)

		job := &models.Job{
			UserID: "alice", Name: "j", Schedule: config.ScheduleDaily,
			Status: config.JobStatusPaused, PausedDueToQuota: true,
		}
		require.NoError(t, env.db.Create(job).Error)

		resumed, reason, err := pm.ManualResume(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, resumed)
		assert.Empty(t, reason)

		var saved models.Job
		require.NoError(t, env.db.First(&saved, job.ID).Error)
		assert.Equal(t, config.JobStatusPending, saved.Status)
	})

	t.Run("refuses without headroom", func(t *testing.T) {
		env := newTestEnv(t)
		pm := newPauseManager(env, &recordingSender{})
		env.addAccount(t, "alice", "sa-1", 100, 100, date)

		job := &models.Job{
			UserID: "alice", Name: "j", Schedule: config.ScheduleDaily,
			Status: config.JobStatusPaused, PausedDueToQuota: true,
		}
		require.NoError(t, env.db.Create(job).Error)

		resumed, reason, err := pm.ManualResume(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, resumed)
		assert.NotEmpty(t, reason)

		var saved models.Job
		require.NoError(t, env.db.First(&saved, job.ID).Error)
		assert.Equal(t, config.JobStatusPaused, saved.Status)
	})

	t.Run("rejects jobs not quota-paused", func(t *testing.T) {
		env := newTestEnv(t)
		pm := newPauseManager(env, &recordingSender{})

		job := &models.Job{UserID: "alice", Name: "j", Status: config.JobStatusPending}
		require.NoError(t, env.db.Create(job).Error)

		_, _, err := pm.ManualResume(ctx, job.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not paused due to quota")
	})
}

func TestPauseManager_HandleQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	date := DateKey(time.Now())

	t.Run("pauses when every account is exhausted", func(t *testing.T) {
		env := newTestEnv(t)
		sender := &recordingSender{}
		pm := newPauseManager(env, sender)

		account := env.addAccount(t, "alice", "sa-1", 100, 100, date)

		job := &models.Job{
			UserID: "alice", Name: "j", Schedule: config.ScheduleDaily,
			Status: config.JobStatusRunning,
		}
		require.NoError(t, env.db.Create(job).Error)

		paused, err := pm.HandleQuotaExceeded(ctx, job, "https://example.com/x", &account.ID)
		require.NoError(t, err)
		assert.True(t, paused)

		var saved models.Job
		require.NoError(t, env.db.First(&saved, job.ID).Error)
		assert.Equal(t, config.JobStatusPaused, saved.Status)
		assert.Equal(t, 1, saved.QuotaExceededURLs)

		subs, err := env.subs.ListByJob(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, config.URLStatusQuotaExceeded, subs[0].Status)
		require.NotNil(t, subs[0].ServiceAccountID)
		assert.Equal(t, account.ID, *subs[0].ServiceAccountID)
	})

	t.Run("keeps running while another account has headroom", func(t *testing.T) {
		env := newTestEnv(t)
		pm := newPauseManager(env, &recordingSender{})

		full := env.addAccount(t, "alice", "sa-full", 100, 100, date)
		env.addAccount(t, "alice", "sa-free", 100, 0, date)

		job := &models.Job{
			UserID: "alice", Name: "j", Schedule: config.ScheduleDaily,
			Status: config.JobStatusRunning,
		}
		require.NoError(t, env.db.Create(job).Error)

		paused, err := pm.HandleQuotaExceeded(ctx, job, "https://example.com/x", &full.ID)
		require.NoError(t, err)
		assert.False(t, paused)

		var saved models.Job
		require.NoError(t, env.db.First(&saved, job.ID).Error)
		assert.Equal(t, config.JobStatusRunning, saved.Status)
	})

	t.Run("records nil account when none could be tried", func(t *testing.T) {
		env := newTestEnv(t)
		pm := newPauseManager(env, &recordingSender{})
		env.addAccount(t, "alice", "sa-1", 100, 100, date)

		job := &models.Job{
			UserID: "alice", Name: "j", Schedule: config.ScheduleDaily,
			Status: config.JobStatusRunning,
		}
		require.NoError(t, env.db.Create(job).Error)

		paused, err := pm.HandleQuotaExceeded(ctx, job, "https://example.com/x", nil)
		require.NoError(t, err)
		assert.True(t, paused)

		subs, err := env.subs.ListByJob(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Nil(t, subs[0].ServiceAccountID)
	})
}
