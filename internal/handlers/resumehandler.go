package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type ResumeHandler struct {
	ResumeService *services.ResumeService
}

func NewResumeHandler(r *services.ResumeService) *ResumeHandler {
	return &ResumeHandler{ResumeService: r}
}

func (h *ResumeHandler) Upload(c *gin.Context) {
	up, closeFn, err := formUpload(c, "file", false)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	defer closeFn()

	resume, err := h.ResumeService.Upload(c.Request.Context(), utils.GetUserID(c), up)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, resume, "Resume uploaded")
}

func (h *ResumeHandler) List(c *gin.Context) {
	resumes, err := h.ResumeService.List(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", resumes)
}

func (h *ResumeHandler) Get(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "resume")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	resume, err := h.ResumeService.Get(c.Request.Context(), utils.GetUserID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", resume)
}

func (h *ResumeHandler) SetDefault(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "resume")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	resume, err := h.ResumeService.SetDefault(c.Request.Context(), utils.GetUserID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Default resume set", resume)
}

func (h *ResumeHandler) Delete(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "resume")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.ResumeService.Delete(c.Request.Context(), utils.GetUserID(c), id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

func (h *ResumeHandler) Compare(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "resume")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var req dtos.CompareResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	cmp, err := h.ResumeService.Compare(c.Request.Context(), utils.GetUserID(c), id, req.JobID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, cmp, "Comparison complete")
}

// Comparisons is GET /comparisons?resume_id=.
func (h *ResumeHandler) Comparisons(c *gin.Context) {
	var q struct {
		ResumeID uint `form:"resume_id"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	out, err := h.ResumeService.Comparisons(c.Request.Context(), utils.GetUserID(c), q.ResumeID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}
