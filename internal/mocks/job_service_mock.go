package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/indexpilot/indexpilot/internal/dto"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, userID string, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, userID, req)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, userID string, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, userID, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, userID string) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, userID)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, userID string, id uint) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *JobServiceMock) DeleteJob(ctx context.Context, userID string, id uint) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *JobServiceMock) RerunJob(ctx context.Context, userID string, id uint) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *JobServiceMock) ResumeJob(ctx context.Context, userID string, id uint) (*dto.ResumeResponseDTO, error) {
	args := m.Called(ctx, userID, id)

	resp, _ := args.Get(0).(*dto.ResumeResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListSubmissions(ctx context.Context, userID string, id uint) ([]dto.SubmissionResponseDTO, error) {
	args := m.Called(ctx, userID, id)

	subs, _ := args.Get(0).([]dto.SubmissionResponseDTO)
	return subs, args.Error(1)
}

func (m *JobServiceMock) QuotaStatus(ctx context.Context, userID string) (*dto.QuotaStatusDTO, error) {
	args := m.Called(ctx, userID)

	status, _ := args.Get(0).(*dto.QuotaStatusDTO)
	return status, args.Error(1)
}
