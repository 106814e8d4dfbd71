package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/services"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type AuthHandler struct {
	AuthService *services.AuthService
}

func NewAuthHandler(a *services.AuthService) *AuthHandler {
	return &AuthHandler{AuthService: a}
}

// Register accepts JSON, or a multipart form when an avatar is attached.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dtos.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	var avatar *services.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		up, closeFn, err := formUpload(c, "avatar", true)
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
		defer closeFn()
		avatar = up
	}

	resp, err := h.AuthService.Register(c.Request.Context(), &req, avatar)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.CreatedResponse(c, resp, "Account created")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dtos.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	resp, err := h.AuthService.Login(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Logged in", resp)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dtos.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}
	resp, err := h.AuthService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.AuthService.Me(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", user)
}
