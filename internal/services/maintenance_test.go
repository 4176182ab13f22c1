package services_test

import (
	"time"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"
)

func (s *ServiceSuite) TestSendDueReminders() {
	owner := s.createUser("owner")
	soon := time.Now().Add(2 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	due, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "due soon", DueDate: &soon})
	s.Require().NoError(err)
	_, err = s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "due later", DueDate: &later})
	s.Require().NoError(err)
	_, err = s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "done", DueDate: &soon, Status: models.TaskCompleted})
	s.Require().NoError(err)

	maintenance := services.NewMaintenanceService(s.db, s.recorder, nil)

	sent, err := maintenance.SendDueReminders(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, sent)

	sent, err = maintenance.SendDueReminders(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Zero(sent)

	reminders := s.recorder.OfType(events.TaskDueSoon)
	s.Require().Len(reminders, 1)
	s.Equal(owner, reminders[0].Recipient)

	moved := time.Now().Add(3 * time.Hour)
	_, err = s.tasks.Update(s.ctx, due.ID, owner, services.TaskUpdate{DueDate: &moved})
	s.Require().NoError(err)

	sent, err = maintenance.SendDueReminders(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(1, sent)
}

func (s *ServiceSuite) TestPurgeSettledRequests() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	carol := s.createUser("carol")

	old, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	_, err = s.friends.Respond(s.ctx, old.ID, bob, models.DecisionReject)
	s.Require().NoError(err)
	longAgo := time.Now().UTC().Add(-90 * 24 * time.Hour)
	s.Require().NoError(s.db.Model(&models.FriendRequest{}).Where("id = ?", old.ID).Update("responded_at", longAgo).Error)

	_, err = s.friends.Send(s.ctx, alice, carol)
	s.Require().NoError(err)

	maintenance := services.NewMaintenanceService(s.db, nil, nil)
	removed, err := maintenance.PurgeSettledRequests(s.ctx, 30*24*time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	var remaining int64
	s.Require().NoError(s.db.Model(&models.FriendRequest{}).Count(&remaining).Error)
	s.Equal(int64(1), remaining)
}
