package handlers

import (
	"net/http"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type JoinRequestHandler struct {
	joins services.JoinRequestService
}

func NewJoinRequestHandler(joins services.JoinRequestService) *JoinRequestHandler {
	return &JoinRequestHandler{joins: joins}
}

type CreateJoinRequest struct {
	GroupID uuid.UUID `json:"groupId"`
}

func (h *JoinRequestHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateJoinRequest
	if !bindJSON(c, &req) {
		return
	}

	jr, err := h.joins.RequestToJoin(c.Request.Context(), userID, req.GroupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jr)
}

func (h *JoinRequestHandler) Respond(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	decision, ok := parseDecision(c)
	if !ok {
		return
	}

	jr, err := h.joins.Respond(c.Request.Context(), requestID, userID, decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Join request " + string(jr.Status),
		"request": jr,
	})
}

func (h *JoinRequestHandler) ListForOwner(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.joins.ListForOwner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *JoinRequestHandler) ListForUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.joins.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}
