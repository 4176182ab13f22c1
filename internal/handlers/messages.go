package handlers

import (
	"net/http"
	"strconv"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type MessageHandler struct {
	messages services.MessageService
}

func NewMessageHandler(messages services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type SendMessageRequest struct {
	ToUserID uuid.UUID `json:"toUserId"`
	Content  string    `json:"content"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), userID, req.ToUserID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := uuidParam(c, "userId")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	msgs, err := h.messages.Conversation(c.Request.Context(), userID, otherID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
