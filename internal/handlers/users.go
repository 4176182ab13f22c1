package handlers

import (
	"net/http"
	"strings"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type AvatarUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

type SetAvatarRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) AvatarUploadURL(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AvatarUploadRequest
	if !bindJSON(c, &req) {
		return
	}

	upload, err := h.userService.AvatarUploadURL(c.Request.Context(), userID, req.FileName, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func (h *UserHandler) SetAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SetAvatarRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.userService.SetAvatar(c.Request.Context(), userID, req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Search looks a user up by their shareable register id.
func (h *UserHandler) Search(c *gin.Context) {
	registerID := strings.TrimSpace(c.Query("registerId"))
	if registerID == "" {
		badRequest(c, "registerId query parameter is required")
		return
	}

	profile, err := h.userService.GetByRegisterID(c.Request.Context(), registerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile.Summary())
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
