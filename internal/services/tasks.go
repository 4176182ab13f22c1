package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Match the max tags on CreateTaskRequest; both count runes.
const (
	maxTaskTitle       = 200
	maxTaskDescription = 5000
)

type TaskScope string

const (
	ScopeAll      TaskScope = "all"
	ScopePersonal TaskScope = "personal"
	ScopeTeam     TaskScope = "team"
)

func (s TaskScope) Valid() bool {
	switch s {
	case ScopeAll, ScopePersonal, ScopeTeam:
		return true
	}
	return false
}

type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	GroupID     *uuid.UUID          `json:"groupId"`
	AssigneeID  *uuid.UUID          `json:"assigneeId"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate"`
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Status       *models.TaskStatus   `json:"status"`
	Priority     *models.TaskPriority `json:"priority"`
	DueDate      *time.Time           `json:"dueDate"`
	ClearDueDate bool                 `json:"clearDueDate"`
}

type TaskService interface {
	Create(ctx context.Context, caller uuid.UUID, req CreateTaskRequest) (*models.Task, error)
	Get(ctx context.Context, id, viewer uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, id, by uuid.UUID, patch TaskUpdate) (*models.Task, error)
	Complete(ctx context.Context, id, by uuid.UUID) (*models.Task, error)
	Delete(ctx context.Context, id, by uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID, scope TaskScope, groupID *uuid.UUID) ([]models.Task, error)
	ListForGroup(ctx context.Context, groupID, by uuid.UUID) ([]models.Task, error)
}

type TaskServiceImpl struct {
	db     *gorm.DB
	events events.Publisher
}

func NewTaskService(db *gorm.DB, publisher events.Publisher) *TaskServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TaskServiceImpl{db: db, events: publisher}
}

func (s *TaskServiceImpl) Create(ctx context.Context, caller uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, validationErrorf("invalid status %q", req.Status)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, validationErrorf("invalid priority %q", req.Priority)
	}

	assignee := caller
	if req.AssigneeID != nil && *req.AssigneeID != uuid.Nil {
		assignee = *req.AssigneeID
	}
	var groupID *uuid.UUID
	if req.GroupID != nil && *req.GroupID != uuid.Nil {
		groupID = req.GroupID
	}

	db := s.db.WithContext(ctx)
	if assignee != caller && groupID == nil {
		return nil, forbiddenf("tasks for other users must belong to a group")
	}
	if groupID != nil {
		if _, err := findGroup(db, *groupID); err != nil {
			return nil, err
		}
		for _, id := range []uuid.UUID{caller, assignee} {
			member, err := isGroupMember(db, *groupID, id)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, forbiddenf("user %s is not a member of the group", id)
			}
		}
	}

	var dueDate *time.Time
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		dueDate = &d
	}

	task := models.Task{
		UserID:      assignee,
		CreatedBy:   caller,
		GroupID:     groupID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     dueDate,
	}
	if err := db.Create(&task).Error; err != nil {
		return nil, err
	}

	if assignee != caller {
		s.events.Publish(ctx, events.Event{Type: events.TaskAssigned, Recipient: assignee, Payload: task})
	}
	logger.WithService("tasks").Info("task created", "task_id", task.ID, "owner", assignee, "group_id", groupID)
	return &task, nil
}

func (s *TaskServiceImpl) find(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "task not found")
	}
	return &task, nil
}

// canView reports whether viewer may read task: its owner always may, and
// so does any member of the task's group.
func (s *TaskServiceImpl) canView(ctx context.Context, task *models.Task, viewer uuid.UUID) error {
	if task.UserID == viewer || task.CreatedBy == viewer {
		return nil
	}
	if task.GroupID != nil {
		member, err := isGroupMember(s.db.WithContext(ctx), *task.GroupID, viewer)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
	}
	return forbiddenf("you do not have access to this task")
}

// authorizeGroup checks that the group exists and by belongs to it.
func (s *TaskServiceImpl) authorizeGroup(ctx context.Context, groupID, by uuid.UUID) error {
	db := s.db.WithContext(ctx)
	if _, err := findGroup(db, groupID); err != nil {
		return err
	}
	member, err := isGroupMember(db, groupID, by)
	if err != nil {
		return err
	}
	if !member {
		return forbiddenf("you are not a member of this group")
	}
	return nil
}

func (s *TaskServiceImpl) Get(ctx context.Context, id, viewer uuid.UUID) (*models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, task, viewer); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) owned(ctx context.Context, id, by uuid.UUID) (*models.Task, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != by {
		return nil, forbiddenf("only the task owner may modify it")
	}
	return task, nil
}

func (s *TaskServiceImpl) Update(ctx context.Context, id, by uuid.UUID, patch TaskUpdate) (*models.Task, error) {
	task, err := s.owned(ctx, id, by)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationErrorf("title must not be empty")
		}
		if utf8.RuneCountInString(title) > maxTaskTitle {
			return nil, validationErrorf("title must be at most %d characters", maxTaskTitle)
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		if utf8.RuneCountInString(*patch.Description) > maxTaskDescription {
			return nil, validationErrorf("description must be at most %d characters", maxTaskDescription)
		}
		updates["description"] = *patch.Description
	}
	if patch.Status != nil {
		if !task.Status.CanTransitionTo(*patch.Status) {
			return nil, validationErrorf("invalid status %q", *patch.Status)
		}
		updates["status"] = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, validationErrorf("invalid priority %q", *patch.Priority)
		}
		updates["priority"] = *patch.Priority
	}
	switch {
	case patch.ClearDueDate:
		updates["due_date"] = nil
		updates["reminder_sent_at"] = nil
	case patch.DueDate != nil:
		updates["due_date"] = patch.DueDate.UTC()
		updates["reminder_sent_at"] = nil
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.find(ctx, id)
}

func (s *TaskServiceImpl) Complete(ctx context.Context, id, by uuid.UUID) (*models.Task, error) {
	status := models.TaskCompleted
	return s.Update(ctx, id, by, TaskUpdate{Status: &status})
}

func (s *TaskServiceImpl) Delete(ctx context.Context, id, by uuid.UUID) error {
	task, err := s.owned(ctx, id, by)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return err
	}
	logger.WithService("tasks").Info("task deleted", "task_id", id, "by", by)
	return nil
}

func (s *TaskServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID, scope TaskScope, groupID *uuid.UUID) ([]models.Task, error) {
	if scope == "" {
		scope = ScopeAll
	}
	if !scope.Valid() {
		return nil, validationErrorf("invalid scope %q", scope)
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	switch scope {
	case ScopePersonal:
		query = query.Where("group_id IS NULL")
	case ScopeTeam:
		if groupID != nil {
			query = query.Where("group_id = ?", *groupID)
		} else {
			query = query.Where("group_id IS NOT NULL")
		}
	}

	tasks := []models.Task{}
	if err := query.Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskServiceImpl) ListForGroup(ctx context.Context, groupID, by uuid.UUID) ([]models.Task, error) {
	if err := s.authorizeGroup(ctx, groupID, by); err != nil {
		return nil, err
	}
	return s.groupTasks(ctx, groupID)
}

func (s *TaskServiceImpl) groupTasks(ctx context.Context, groupID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}
