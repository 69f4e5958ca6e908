package job

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/indexpilot/indexpilot/internal/dto"
	"github.com/indexpilot/indexpilot/internal/models"
	"github.com/indexpilot/indexpilot/internal/quota"
)

// JobRepoInterface defines the contract for job repository operations
// used by the HTTP surface.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uint) (*models.Job, error)
	ListByUser(ctx context.Context, userID string) ([]models.Job, error)
	Delete(ctx context.Context, id uint, userID string) error
	Rerun(ctx context.Context, id uint) error
	Cancel(ctx context.Context, id uint, userID string) (bool, error)
}

// SubmissionRepoInterface reads a job's submission history.
type SubmissionRepoInterface interface {
	ListByJob(ctx context.Context, jobID uint) ([]models.URLSubmission, error)
}

// Resumer is the manual-resume entry point of the pause manager.
type Resumer interface {
	ManualResume(ctx context.Context, jobID uint) (bool, string, error)
}

// QuotaReader ranks a user's accounts with fresh usage numbers.
type QuotaReader interface {
	OrderedCandidates(ctx context.Context, userID, date string) ([]quota.Candidate, error)
}

// JobServiceInterface defines the contract for job business logic
// operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, userID string, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error)
	GetJob(ctx context.Context, userID string, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, userID string) ([]dto.JobResponseDTO, error)
	CancelJob(ctx context.Context, userID string, id uint) error
	DeleteJob(ctx context.Context, userID string, id uint) error
	RerunJob(ctx context.Context, userID string, id uint) error
	ResumeJob(ctx context.Context, userID string, id uint) (*dto.ResumeResponseDTO, error)
	ListSubmissions(ctx context.Context, userID string, id uint) ([]dto.SubmissionResponseDTO, error)
	QuotaStatus(ctx context.Context, userID string) (*dto.QuotaStatusDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Cancel(c *gin.Context)
	Delete(c *gin.Context)
	Rerun(c *gin.Context)
	Resume(c *gin.Context)
	Submissions(c *gin.Context)
	QuotaStatus(c *gin.Context)
}
