package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/models"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type JobHandler struct {
	JobService *services.JobService
}

func NewJobHandler(j *services.JobService) *JobHandler {
	return &JobHandler{JobService: j}
}

// ParseJob is the POST /jobs/extract endpoint
func (h *JobHandler) ParseJob(c *gin.Context) {
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	extracted, err := h.JobService.ExtractJob(c.Request.Context(), utils.GetUserID(c), req.RawHTML)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", extracted)
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	job, err := h.JobService.CreateJob(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	// Whoever adds a job is tracking it.
	saved := true
	if _, err := h.JobService.UpsertStatus(c.Request.Context(), utils.GetUserID(c), job.ID, dtos.StatusPatch{Saved: &saved}); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, job, "Job created")
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var filter dtos.JobFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	filter.Normalize()

	jobs, total, err := h.JobService.GetAllJobs(c.Request.Context(), utils.GetUserID(c), filter)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, jobs, total, filter.Page, filter.PageSize)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	job, err := h.JobService.GetJob(c.Request.Context(), utils.GetUserID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", job)
}

func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.JobService.UserJobStats(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

// UpdateStatus is PUT /jobs/:id/status.
func (h *JobHandler) UpdateStatus(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var req dtos.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	row, err := h.JobService.UpdateStatus(c.Request.Context(), utils.GetUserID(c), id, req.Status, req.Notes)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Status updated", row)
}

// PatchStatus is PATCH /jobs/:id/status with any subset of the tracking fields.
func (h *JobHandler) PatchStatus(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var patch dtos.StatusPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	row, err := h.JobService.UpsertStatus(c.Request.Context(), utils.GetUserID(c), id, patch)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", row)
}

func (h *JobHandler) ToggleSaved(c *gin.Context) {
	h.toggle(c, h.JobService.ToggleSaved)
}

func (h *JobHandler) ToggleApplied(c *gin.Context) {
	h.toggle(c, h.JobService.ToggleApplied)
}

type toggleFunc func(ctx context.Context, userID string, jobID uint, current bool) (*models.UserJobStatus, error)

func (h *JobHandler) toggle(c *gin.Context, fn toggleFunc) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var req dtos.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	row, err := fn(c.Request.Context(), utils.GetUserID(c), id, req.Current)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", row)
}
