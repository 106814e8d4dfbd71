package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type SubscriptionHandler struct {
	SubscriptionService *services.SubscriptionService
	UsageService        *services.UsageService
}

func NewSubscriptionHandler(s *services.SubscriptionService, u *services.UsageService) *SubscriptionHandler {
	return &SubscriptionHandler{SubscriptionService: s, UsageService: u}
}

func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans, err := h.SubscriptionService.Plans(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", plans)
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, err := h.SubscriptionService.GetUserSubscription(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", sub)
}

func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req dtos.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	sub, err := h.SubscriptionService.CreateSubscription(c.Request.Context(), utils.GetUserID(c), req.PlanID, req.BillingCycle)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, sub, "Subscription created")
}

func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	var req dtos.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	sub, err := h.SubscriptionService.ChangePlan(c.Request.Context(), utils.GetUserID(c), req.PlanID, req.BillingCycle)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Plan changed", sub)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req dtos.CancelSubscriptionRequest
	// An empty body cancels immediately.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponseWithError(c, utils.BindError(err))
			return
		}
	}
	sub, err := h.SubscriptionService.CancelSubscription(c.Request.Context(), utils.GetUserID(c), req.AtPeriodEnd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Subscription canceled", sub)
}

func (h *SubscriptionHandler) Payments(c *gin.Context) {
	out, err := h.SubscriptionService.PaymentHistory(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func (h *SubscriptionHandler) Usage(c *gin.Context) {
	summary, err := h.UsageService.GetUsage(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

func (h *SubscriptionHandler) Limits(c *gin.Context) {
	summary, err := h.UsageService.GetUsage(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", summary.Limits)
}
