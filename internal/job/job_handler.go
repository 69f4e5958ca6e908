package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/indexpilot/indexpilot/common"
	"github.com/indexpilot/indexpilot/internal/dto"
	"github.com/indexpilot/indexpilot/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job API under the given router group.
func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/jobs", h.Create)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.Get)
	r.DELETE("/jobs/:id", h.Delete)
	r.POST("/jobs/:id/cancel", h.Cancel)
	r.POST("/jobs/:id/rerun", h.Rerun)
	r.POST("/jobs/:id/resume", h.Resume)
	r.GET("/jobs/:id/submissions", h.Submissions)
	r.GET("/quota", h.QuotaStatus)
}

// requestUser resolves the calling user. Authentication proper lives in
// front of this service; here the identity header is trusted.
func requestUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "X-User-ID header is required"})
		return "", false
	}
	return userID, true
}

func jobID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

// Create handles HTTP requests for creating a new indexing job.
// It validates and binds the request body, delegates business logic to
// the JobService, and returns HTTP 201 with the created job.
func (h *JobHandler) Create(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}

	var req dto.JobCreateDTO
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), userID, &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles HTTP requests to fetch a job by its ID.
func (h *JobHandler) Get(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), userID, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to retrieve all jobs owned by the caller.
func (h *JobHandler) List(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Cancel handles HTTP requests to cancel a pending, running or paused
// job. Returns HTTP 204 on success.
func (h *JobHandler) Cancel(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.service.CancelJob(c.Request.Context(), userID, id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete handles HTTP requests to delete a non-running job.
func (h *JobHandler) Delete(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteJob(c.Request.Context(), userID, id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Rerun handles HTTP requests to reset a settled job back to pending
// with fresh counters.
func (h *JobHandler) Rerun(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	if err := h.service.RerunJob(c.Request.Context(), userID, id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Resume handles HTTP requests to manually resume a quota-paused job.
// The body reports whether the resume actually happened.
func (h *JobHandler) Resume(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	resp, err := h.service.ResumeJob(c.Request.Context(), userID, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Submissions handles HTTP requests to list a job's submission history.
func (h *JobHandler) Submissions(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	id, ok := jobID(c)
	if !ok {
		return
	}

	subs, err := h.service.ListSubmissions(c.Request.Context(), userID, id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, subs)
}

// QuotaStatus handles HTTP requests for today's quota usage across the
// caller's service accounts.
func (h *JobHandler) QuotaStatus(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}

	status, err := h.service.QuotaStatus(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, status)
}
