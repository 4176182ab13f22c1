package handlers

import (
	"net/http"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RegistrationResponse struct {
	RegisterID string `json:"registerId"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	registerID, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{RegisterID: registerID})
}
