package services

import (
	"context"
	"fmt"
	"time"

	"teamhub/backend/internal/cache"
	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
)

const (
	taskTTL     = 30 * time.Minute
	taskListTTL = 5 * time.Minute
)

// CachedTaskService serves task reads through the multi-level cache.
// Authorization is always evaluated against the database; only task data
// is cached.
type CachedTaskService struct {
	taskService *TaskServiceImpl
	cache       *cache.MultiLevelCache
}

func NewCachedTaskService(taskService *TaskServiceImpl, cacheInstance *cache.MultiLevelCache) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
	}
}

func taskKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}

func userTasksKey(userID uuid.UUID, scope TaskScope, groupID *uuid.UUID) string {
	group := "-"
	if groupID != nil {
		group = groupID.String()
	}
	return fmt.Sprintf("user_tasks:%s:%s:%s", userID.String(), scope, group)
}

func groupTasksKey(groupID uuid.UUID) string {
	return fmt.Sprintf("group_tasks:%s", groupID.String())
}

func (s *CachedTaskService) invalidate(task *models.Task) {
	s.cache.Delete(taskKey(task.ID))
	s.cache.DeletePattern(fmt.Sprintf("user_tasks:%s:*", task.UserID.String()))
	if task.GroupID != nil {
		s.cache.Delete(groupTasksKey(*task.GroupID))
	}
}

func (s *CachedTaskService) Create(ctx context.Context, caller uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	task, err := s.taskService.Create(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	s.invalidate(task)
	s.cache.Set(taskKey(task.ID), task, taskTTL)
	return task, nil
}

func (s *CachedTaskService) Get(ctx context.Context, id, viewer uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.cache.Get(taskKey(id), &task); err != nil {
		fresh, err := s.taskService.find(ctx, id)
		if err != nil {
			return nil, err
		}
		task = *fresh
		s.cache.Set(taskKey(id), task, taskTTL)
	}

	if err := s.taskService.canView(ctx, &task, viewer); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *CachedTaskService) Update(ctx context.Context, id, by uuid.UUID, patch TaskUpdate) (*models.Task, error) {
	task, err := s.taskService.Update(ctx, id, by, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(task)
	return task, nil
}

func (s *CachedTaskService) Complete(ctx context.Context, id, by uuid.UUID) (*models.Task, error) {
	task, err := s.taskService.Complete(ctx, id, by)
	if err != nil {
		return nil, err
	}
	s.invalidate(task)
	return task, nil
}

func (s *CachedTaskService) Delete(ctx context.Context, id, by uuid.UUID) error {
	task, getErr := s.taskService.find(ctx, id)

	if err := s.taskService.Delete(ctx, id, by); err != nil {
		return err
	}

	if getErr == nil {
		s.invalidate(task)
	} else {
		s.cache.Delete(taskKey(id))
	}
	return nil
}

func (s *CachedTaskService) ListForUser(ctx context.Context, userID uuid.UUID, scope TaskScope, groupID *uuid.UUID) ([]models.Task, error) {
	if scope == "" {
		scope = ScopeAll
	}
	cacheKey := userTasksKey(userID, scope, groupID)

	var cachedTasks []models.Task
	if err := s.cache.Get(cacheKey, &cachedTasks); err == nil {
		return cachedTasks, nil
	}

	tasks, err := s.taskService.ListForUser(ctx, userID, scope, groupID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, tasks, taskListTTL)
	return tasks, nil
}

func (s *CachedTaskService) ListForGroup(ctx context.Context, groupID, by uuid.UUID) ([]models.Task, error) {
	if err := s.taskService.authorizeGroup(ctx, groupID, by); err != nil {
		return nil, err
	}

	cacheKey := groupTasksKey(groupID)
	var cachedTasks []models.Task
	if err := s.cache.Get(cacheKey, &cachedTasks); err == nil {
		return cachedTasks, nil
	}

	tasks, err := s.taskService.groupTasks(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, tasks, taskListTTL)
	return tasks, nil
}

// GroupDeleted drops every cached list that may still hold the group's
// tasks. Owners of those tasks are not known any more, so all per-user
// lists go.
func (s *CachedTaskService) GroupDeleted(groupID uuid.UUID) {
	s.cache.Delete(groupTasksKey(groupID))
	s.cache.DeletePattern("user_tasks:*")
	s.cache.DeletePattern("task:*")
}

// InvalidateTask is used by background jobs that modify tasks directly.
func (s *CachedTaskService) InvalidateTask(task *models.Task) {
	s.invalidate(task)
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}
