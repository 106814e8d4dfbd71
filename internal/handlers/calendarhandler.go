package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type CalendarHandler struct {
	CalendarService *services.CalendarService
}

func NewCalendarHandler(s *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{CalendarService: s}
}

func (h *CalendarHandler) Create(c *gin.Context) {
	var req dtos.CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	ev, err := h.CalendarService.Create(c.Request.Context(), utils.GetUserID(c), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, ev, "Event created")
}

// List is GET /calendar?from=&to= with RFC 3339 bounds.
func (h *CalendarHandler) List(c *gin.Context) {
	var r dtos.CalendarRange
	if err := c.ShouldBindQuery(&r); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	events, err := h.CalendarService.List(c.Request.Context(), utils.GetUserID(c), r.From, r.To)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", events)
}

func (h *CalendarHandler) Get(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "event")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	ev, err := h.CalendarService.Get(c.Request.Context(), utils.GetUserID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", ev)
}

func (h *CalendarHandler) Update(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "event")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	var req dtos.CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	ev, err := h.CalendarService.Update(c.Request.Context(), utils.GetUserID(c), id, &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Event updated", ev)
}

func (h *CalendarHandler) Delete(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "event")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.CalendarService.Delete(c.Request.Context(), utils.GetUserID(c), id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}
