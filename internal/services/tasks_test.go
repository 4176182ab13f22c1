package services_test

import (
	"errors"
	"strings"
	"time"

	"teamhub/backend/internal/cache"
	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"
)

func (s *ServiceSuite) TestPersonalAndTeamScopes() {
	owner := s.createUser("owner")
	member := s.createUser("member")
	outsider := s.createUser("outsider")
	group := s.createGroup(owner, "Eng", false)
	s.joinGroup(owner, group.ID, member)

	personal, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "personal"})
	s.Require().NoError(err)
	s.True(personal.IsPersonal())
	s.Equal(models.TaskPending, personal.Status)
	s.Equal(models.PriorityMedium, personal.Priority)

	team, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "team", GroupID: &group.ID, Priority: models.PriorityHigh})
	s.Require().NoError(err)

	personalList, err := s.tasks.ListForUser(s.ctx, owner, services.ScopePersonal, nil)
	s.Require().NoError(err)
	s.Require().Len(personalList, 1)
	s.Equal(personal.ID, personalList[0].ID)

	teamList, err := s.tasks.ListForUser(s.ctx, owner, services.ScopeTeam, nil)
	s.Require().NoError(err)
	s.Require().Len(teamList, 1)
	s.Equal(team.ID, teamList[0].ID)

	byGroup, err := s.tasks.ListForUser(s.ctx, owner, services.ScopeTeam, &group.ID)
	s.Require().NoError(err)
	s.Len(byGroup, 1)

	all, err := s.tasks.ListForUser(s.ctx, owner, services.ScopeAll, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(personal.ID, all[0].ID)
	s.Equal(team.ID, all[1].ID)

	groupTasks, err := s.tasks.ListForGroup(s.ctx, group.ID, member)
	s.Require().NoError(err)
	s.Require().Len(groupTasks, 1)
	s.Equal(team.ID, groupTasks[0].ID)

	_, err = s.tasks.ListForGroup(s.ctx, group.ID, outsider)
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.tasks.Get(s.ctx, team.ID, member)
	s.NoError(err)
	_, err = s.tasks.Get(s.ctx, personal.ID, member)
	s.True(errors.Is(err, services.ErrForbidden))
}

func (s *ServiceSuite) TestCreateTaskRules() {
	owner := s.createUser("owner")
	member := s.createUser("member")
	outsider := s.createUser("outsider")
	group := s.createGroup(owner, "Eng", false)
	s.joinGroup(owner, group.ID, member)

	_, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "  "})
	s.True(errors.Is(err, services.ErrValidation))

	_, err = s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "x", Priority: "urgent"})
	s.True(errors.Is(err, services.ErrValidation))

	_, err = s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "x", AssigneeID: &member})
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.tasks.Create(s.ctx, outsider, services.CreateTaskRequest{Title: "x", GroupID: &group.ID})
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "x", GroupID: &group.ID, AssigneeID: &outsider})
	s.True(errors.Is(err, services.ErrForbidden))

	assigned, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "review", GroupID: &group.ID, AssigneeID: &member})
	s.Require().NoError(err)
	s.Equal(member, assigned.UserID)
	s.Equal(owner, assigned.CreatedBy)

	notified := s.recorder.OfType(events.TaskAssigned)
	s.Require().Len(notified, 1)
	s.Equal(member, notified[0].Recipient)
}

func (s *ServiceSuite) TestTaskTitleLimitCountsCharacters() {
	owner := s.createUser("owner")

	title := strings.Repeat("é", 200)
	task, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: title})
	s.Require().NoError(err)

	updated, err := s.tasks.Update(s.ctx, task.ID, owner, services.TaskUpdate{Title: &title})
	s.Require().NoError(err)
	s.Equal(title, updated.Title)

	tooLong := strings.Repeat("é", 201)
	_, err = s.tasks.Update(s.ctx, task.ID, owner, services.TaskUpdate{Title: &tooLong})
	s.True(errors.Is(err, services.ErrValidation))
}

func (s *ServiceSuite) TestOnlyOwnerMutatesTask() {
	owner := s.createUser("owner")
	member := s.createUser("member")
	group := s.createGroup(owner, "Eng", false)
	s.joinGroup(owner, group.ID, member)

	task, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "team", GroupID: &group.ID})
	s.Require().NoError(err)

	title := "hijacked"
	_, err = s.tasks.Update(s.ctx, task.ID, member, services.TaskUpdate{Title: &title})
	s.True(errors.Is(err, services.ErrForbidden))
	_, err = s.tasks.Complete(s.ctx, task.ID, member)
	s.True(errors.Is(err, services.ErrForbidden))
	s.True(errors.Is(s.tasks.Delete(s.ctx, task.ID, member), services.ErrForbidden))

	completed, err := s.tasks.Complete(s.ctx, task.ID, owner)
	s.Require().NoError(err)
	s.Equal(models.TaskCompleted, completed.Status)

	reopened := models.TaskInProgress
	updated, err := s.tasks.Update(s.ctx, task.ID, owner, services.TaskUpdate{Status: &reopened})
	s.Require().NoError(err)
	s.Equal(models.TaskInProgress, updated.Status)

	bogus := models.TaskStatus("archived")
	_, err = s.tasks.Update(s.ctx, task.ID, owner, services.TaskUpdate{Status: &bogus})
	s.True(errors.Is(err, services.ErrValidation))

	s.Require().NoError(s.tasks.Delete(s.ctx, task.ID, owner))
	_, err = s.tasks.Get(s.ctx, task.ID, owner)
	s.True(errors.Is(err, services.ErrNotFound))
}

func (s *ServiceSuite) TestCachedTaskServiceInvalidatesOnMutation() {
	owner := s.createUser("owner")
	cached := services.NewCachedTaskService(s.tasks, cache.NewMultiLevelCache(nil, time.Minute))

	first, err := cached.ListForUser(s.ctx, owner, services.ScopeAll, nil)
	s.Require().NoError(err)
	s.Empty(first)

	task, err := cached.Create(s.ctx, owner, services.CreateTaskRequest{Title: "write tests"})
	s.Require().NoError(err)

	listed, err := cached.ListForUser(s.ctx, owner, services.ScopeAll, nil)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)

	done, err := cached.Complete(s.ctx, task.ID, owner)
	s.Require().NoError(err)
	s.Equal(models.TaskCompleted, done.Status)

	got, err := cached.Get(s.ctx, task.ID, owner)
	s.Require().NoError(err)
	s.Equal(models.TaskCompleted, got.Status)

	listed, err = cached.ListForUser(s.ctx, owner, services.ScopeAll, nil)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(models.TaskCompleted, listed[0].Status)

	s.Require().NoError(cached.Delete(s.ctx, task.ID, owner))
	listed, err = cached.ListForUser(s.ctx, owner, services.ScopeAll, nil)
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *ServiceSuite) TestCachedGroupTasksStillAuthorize() {
	owner := s.createUser("owner")
	outsider := s.createUser("outsider")
	group := s.createGroup(owner, "Eng", false)
	cached := services.NewCachedTaskService(s.tasks, cache.NewMultiLevelCache(nil, time.Minute))

	_, err := cached.Create(s.ctx, owner, services.CreateTaskRequest{Title: "team", GroupID: &group.ID})
	s.Require().NoError(err)

	tasks, err := cached.ListForGroup(s.ctx, group.ID, owner)
	s.Require().NoError(err)
	s.Len(tasks, 1)

	_, err = cached.ListForGroup(s.ctx, group.ID, outsider)
	s.True(errors.Is(err, services.ErrForbidden))
}
