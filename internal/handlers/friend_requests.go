package handlers

import (
	"net/http"

	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type FriendRequestHandler struct {
	friends services.FriendRequestService
}

func NewFriendRequestHandler(friends services.FriendRequestService) *FriendRequestHandler {
	return &FriendRequestHandler{friends: friends}
}

type SendFriendRequest struct {
	ToUserID uuid.UUID `json:"toUserId"`
}

type RespondRequest struct {
	Status string `json:"status" binding:"required"`
}

func parseDecision(c *gin.Context) (models.Decision, bool) {
	var req RespondRequest
	if !bindJSON(c, &req) {
		return "", false
	}
	decision, ok := models.ParseDecision(req.Status)
	if !ok {
		badRequest(c, "status must be accepted or rejected")
		return "", false
	}
	return decision, true
}

func (h *FriendRequestHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendFriendRequest
	if !bindJSON(c, &req) {
		return
	}

	fr, err := h.friends.Send(c.Request.Context(), userID, req.ToUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fr)
}

func (h *FriendRequestHandler) ListPending(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.friends.ListPending(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *FriendRequestHandler) ListSent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.friends.ListSent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *FriendRequestHandler) Respond(c *gin.Context) {
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

	fr, err := h.friends.Respond(c.Request.Context(), requestID, userID, decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Friend request " + string(fr.Status),
		"request": fr,
	})
}

// ListFriends is public: anyone may see whom a user is friends with, but
// only as summaries without contact details.
func (h *FriendRequestHandler) ListFriends(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	friends, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Summaries(friends))
}
