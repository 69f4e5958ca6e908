package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) ListByUser(ctx context.Context, userID string) ([]models.Job, error) {
	args := m.Called(ctx, userID)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Delete(ctx context.Context, id uint, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *JobRepoMock) Rerun(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) Cancel(ctx context.Context, id uint, userID string) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) TryLock(ctx context.Context, id uint, workerID string, lockTimeout time.Duration) (bool, error) {
	args := m.Called(ctx, id, workerID, lockTimeout)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) ReleaseLock(ctx context.Context, id uint, status config.JobStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *JobRepoMock) ClearLock(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) SetTotalURLs(ctx context.Context, id uint, total int) error {
	args := m.Called(ctx, id, total)
	return args.Error(0)
}

func (m *JobRepoMock) IncrementSuccess(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) IncrementFailed(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) IncrementQuotaExceeded(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) Pause(ctx context.Context, id uint, reason string, resumeAfter time.Time) error {
	args := m.Called(ctx, id, reason, resumeAfter)
	return args.Error(0)
}

func (m *JobRepoMock) ClearPause(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) FindResumable(ctx context.Context, now time.Time) ([]models.Job, error) {
	args := m.Called(ctx, now)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) FindDue(ctx context.Context, now time.Time) ([]models.Job, error) {
	args := m.Called(ctx, now)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) FindStuck(ctx context.Context, threshold time.Duration) ([]models.Job, error) {
	args := m.Called(ctx, threshold)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) ResetStuck(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) UpdateNextRun(ctx context.Context, id uint, next time.Time) error {
	args := m.Called(ctx, id, next)
	return args.Error(0)
}
