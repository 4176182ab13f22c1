package handlers

import (
	"net/http"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type GroupHandler struct {
	groups services.GroupService
	joins  services.JoinRequestService
}

func NewGroupHandler(groups services.GroupService, joins services.JoinRequestService) *GroupHandler {
	return &GroupHandler{groups: groups, joins: joins}
}

type InviteRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.groups.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	group, err := h.groups.GetByID(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// ListForUser is mounted behind RequireSelf("userId").
func (h *GroupHandler) ListForUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	groups, err := h.groups.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) ListPublic(c *gin.Context) {
	groups, err := h.groups.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var patch services.GroupUpdate
	if !bindJSON(c, &patch) {
		return
	}

	group, err := h.groups.Update(c.Request.Context(), groupID, userID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Delete(c.Request.Context(), groupID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group deleted successfully"})
}

func (h *GroupHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	members, err := h.groups.ListMembers(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *GroupHandler) Invite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req InviteRequest
	if !bindJSON(c, &req) {
		return
	}

	jr, err := h.joins.Invite(c.Request.Context(), userID, groupID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jr)
}
