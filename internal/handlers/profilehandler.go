package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type ProfileHandler struct {
	ProfileService *services.ProfileService
}

func NewProfileHandler(p *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{ProfileService: p}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.ProfileService.Get(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", user)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req dtos.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	user, err := h.ProfileService.Update(c.Request.Context(), utils.GetUserID(c), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile updated", user)
}

func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	up, closeFn, err := formUpload(c, "avatar", false)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	defer closeFn()

	user, err := h.ProfileService.UploadAvatar(c.Request.Context(), utils.GetUserID(c), up)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Avatar updated", user)
}
