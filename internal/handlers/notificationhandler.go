package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

const streamKeepAlive = 25 * time.Second

type NotificationHandler struct {
	NotificationService *services.NotificationService
}

func NewNotificationHandler(s *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{NotificationService: s}
}

func (h *NotificationHandler) List(c *gin.Context) {
	var q struct {
		Unread bool `form:"unread"`
		Limit  int  `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	out, err := h.NotificationService.List(c.Request.Context(), utils.GetUserID(c), q.Unread, q.Limit)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.NotificationService.UnreadCount(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "notification")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	n, err := h.NotificationService.MarkRead(c.Request.Context(), utils.GetUserID(c), id)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", n)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.NotificationService.MarkAllRead(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, err := utils.ParseUintParam(c, "id", "notification")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if err := h.NotificationService.Delete(c.Request.Context(), utils.GetUserID(c), id); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.NoContentResponse(c)
}

// Stream is GET /notifications/stream, a server-sent event stream of the caller's
// notification changes.
func (h *NotificationHandler) Stream(c *gin.Context) {
	events, unsubscribe := h.NotificationService.Subscribe(utils.GetUserID(c))
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(strings.ToLower(ev.Type), ev)
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}
