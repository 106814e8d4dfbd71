package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type ScraperHandler struct {
	ScraperService *services.ScraperService
}

func NewScraperHandler(s *services.ScraperService) *ScraperHandler {
	return &ScraperHandler{ScraperService: s}
}

func (h *ScraperHandler) ListConfigs(c *gin.Context) {
	out, err := h.ScraperService.ListConfigs(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func (h *ScraperHandler) GetConfig(c *gin.Context) {
	cfg, err := h.ScraperService.GetConfig(c.Request.Context(), c.Param("key"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", cfg)
}

func (h *ScraperHandler) UpdateConfig(c *gin.Context) {
	var req dtos.UpdateScraperConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	cfg, err := h.ScraperService.UpdateConfig(c.Request.Context(), c.Param("key"), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Scraper updated", cfg)
}

// Run is POST /admin/scrapers/:key/run. It answers 202 with the run's log row; progress is read
// from /admin/scrapers/runs/:id.
func (h *ScraperHandler) Run(c *gin.Context) {
	var overrides dtos.RunOverrides
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			utils.ErrorResponseWithError(c, utils.BindError(err))
			return
		}
	}
	entry, err := h.ScraperService.StartRun(c.Request.Context(), c.Param("key"), utils.GetUserID(c), &overrides)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Scraper started", entry)
}

func (h *ScraperHandler) RunStatus(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "run")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	p, err := h.ScraperService.RunStatus(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", p)
}

func (h *ScraperHandler) ActiveRuns(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", h.ScraperService.ActiveRuns())
}

func (h *ScraperHandler) CancelRun(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "run")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.ScraperService.CancelRun(id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Cancel requested", nil)
}

func (h *ScraperHandler) Logs(c *gin.Context) {
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	out, err := h.ScraperService.Logs(c.Request.Context(), q.Limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func (h *ScraperHandler) RemoteLogs(c *gin.Context) {
	out, err := h.ScraperService.RemoteLogs(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func (h *ScraperHandler) Stats(c *gin.Context) {
	stats, err := h.ScraperService.Stats(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

func (h *ScraperHandler) Health(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", h.ScraperService.Health(c.Request.Context()))
}
