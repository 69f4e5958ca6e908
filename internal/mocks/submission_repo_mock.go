package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/indexpilot/indexpilot/internal/config"
	"github.com/indexpilot/indexpilot/internal/models"
)

type SubmissionRepoMock struct {
	mock.Mock
}

func (m *SubmissionRepoMock) Create(ctx context.Context, sub *models.URLSubmission) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *SubmissionRepoMock) ListByJob(ctx context.Context, jobID uint) ([]models.URLSubmission, error) {
	args := m.Called(ctx, jobID)

	subs, _ := args.Get(0).([]models.URLSubmission)
	return subs, args.Error(1)
}

func (m *SubmissionRepoMock) CountByStatus(ctx context.Context, jobID uint) (map[config.URLStatus]int, error) {
	args := m.Called(ctx, jobID)

	counts, _ := args.Get(0).(map[config.URLStatus]int)
	return counts, args.Error(1)
}
