package handlers

import (
	"net/http"

	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var patch services.TaskUpdate
	if !bindJSON(c, &patch) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), id, userID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Complete(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted successfully"})
}

// tasksForUser serves the /tasks/user/:userId family; the route decides the
// scope. Mounted behind RequireSelf("userId").
func (h *TaskHandler) tasksForUser(scope services.TaskScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var groupID *uuid.UUID
		if raw := c.Param("groupId"); raw != "" {
			id, ok := uuidParam(c, "groupId")
			if !ok {
				return
			}
			groupID = &id
		}

		tasks, err := h.taskService.ListForUser(c.Request.Context(), userID, scope, groupID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func (h *TaskHandler) GetTasksByUser(c *gin.Context) {
	h.tasksForUser(services.ScopeAll)(c)
}

func (h *TaskHandler) GetPersonalTasks(c *gin.Context) {
	h.tasksForUser(services.ScopePersonal)(c)
}

func (h *TaskHandler) GetTeamTasks(c *gin.Context) {
	h.tasksForUser(services.ScopeTeam)(c)
}

func (h *TaskHandler) GetGroupTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "groupId")
	if !ok {
		return
	}

	tasks, err := h.taskService.ListForGroup(c.Request.Context(), groupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
