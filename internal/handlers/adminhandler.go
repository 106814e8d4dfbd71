package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/store"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type AdminHandler struct {
	AdminService *services.AdminService
	Accounting   store.AccountingStore
}

func NewAdminHandler(a *services.AdminService, accounting store.AccountingStore) *AdminHandler {
	return &AdminHandler{AdminService: a, Accounting: accounting}
}

func actor(c *gin.Context) services.Actor {
	return services.Actor{ID: utils.GetUserID(c), IP: c.ClientIP()}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.AdminService.Stats(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var f dtos.UserFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	users, total, err := h.AdminService.ListUsers(c.Request.Context(), f)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	p := dtos.Pagination{Page: f.Page, PageSize: f.PageSize}
	p.Normalize()
	utils.ListSuccessResponse(c, users, total, p.Page, p.PageSize)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.AdminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", user)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req dtos.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	user, err := h.AdminService.UpdateUser(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User updated", user)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.AdminService.DeleteUser(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

func (h *AdminHandler) ListJobs(c *gin.Context) {
	var f dtos.JobFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	f.Normalize()
	jobs, total, err := h.AdminService.ListJobs(c.Request.Context(), f)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, jobs, total, f.Page, f.PageSize)
}

func (h *AdminHandler) CreateJob(c *gin.Context) {
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	if req.Source == "" {
		req.Source = "admin"
	}
	job, err := h.AdminService.CreateJob(c.Request.Context(), actor(c), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, job, "Job created")
}

func (h *AdminHandler) UpdateJob(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var req dtos.JobUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	job, err := h.AdminService.UpdateJob(c.Request.Context(), actor(c), id, &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Job updated", job)
}

func (h *AdminHandler) DeleteJob(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "job")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.AdminService.DeleteJob(c.Request.Context(), actor(c), id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

func (h *AdminHandler) ListResumes(c *gin.Context) {
	var p dtos.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	p.Normalize()
	out, total, err := h.AdminService.ListResumes(c.Request.Context(), p)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, out, total, p.Page, p.PageSize)
}

func (h *AdminHandler) DeleteResume(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "resume")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.AdminService.DeleteResume(c.Request.Context(), actor(c), id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	var q struct {
		dtos.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	q.Normalize()
	out, total, err := h.AdminService.ListSubscriptions(c.Request.Context(), q.Status, q.Pagination)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, out, total, q.Page, q.PageSize)
}

// UpdateSubscription is PUT /admin/users/:id/subscription.
func (h *AdminHandler) UpdateSubscription(c *gin.Context) {
	var req dtos.AdminUpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	sub, err := h.AdminService.UpdateSubscription(c.Request.Context(), actor(c), c.Param("id"), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Subscription updated", sub)
}

func (h *AdminHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.AdminService.CancelSubscription(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Subscription canceled", sub)
}

func (h *AdminHandler) Logs(c *gin.Context) {
	var p dtos.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	p.Normalize()
	out, total, err := h.AdminService.Logs(c.Request.Context(), p)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.ListSuccessResponse(c, out, total, p.Page, p.PageSize)
}

// The handlers below serve the accounting reads and writes of instances configured with
// accounting.source=api.

func (h *AdminHandler) GetPlan(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "plan")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	plan, err := h.Accounting.PlanByID(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", plan)
}

func (h *AdminHandler) UserSubscription(c *gin.Context) {
	sub, err := h.Accounting.SubscriptionForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", sub)
}

func (h *AdminHandler) UserUsage(c *gin.Context) {
	var q struct {
		PeriodStart time.Time `form:"period_start" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	if q.PeriodStart.IsZero() {
		q.PeriodStart = time.Now()
	}
	usage, err := h.Accounting.UsageForPeriod(c.Request.Context(), c.Param("id"), q.PeriodStart)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", usage)
}

func bindUsageRequest(c *gin.Context) (*store.UsageRequest, bool) {
	var req store.UsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return nil, false
	}
	if !req.Metric.Valid() {
		utils.ErrorResponse(c, http.StatusBadRequest, "unknown usage metric")
		return nil, false
	}
	if req.PeriodStart.IsZero() {
		req.PeriodStart = time.Now()
	}
	return &req, true
}

func (h *AdminHandler) IncrementUsage(c *gin.Context) {
	req, ok := bindUsageRequest(c)
	if !ok {
		return
	}
	if err := h.Accounting.IncrementUsage(c.Request.Context(), c.Param("id"), req.Metric, req.PeriodStart); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Usage recorded", nil)
}

func (h *AdminHandler) ConsumeUsage(c *gin.Context) {
	req, ok := bindUsageRequest(c)
	if !ok {
		return
	}
	consumed, err := h.Accounting.TryConsume(c.Request.Context(), c.Param("id"), req.Metric, req.PeriodStart, req.Limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", store.ConsumeResult{Consumed: consumed})
}
