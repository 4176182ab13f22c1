package services_test

import (
	"errors"
	"strings"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"

	"github.com/gofrs/uuid"
)

func (s *ServiceSuite) TestCreateGroupWithProposedMembers() {
	owner := s.createUser("owner")
	m1 := s.createUser("m1")
	m2 := s.createUser("m2")

	group := s.createGroup(owner, "Eng", false, m1, m2, m1, owner)
	s.Equal([]uuid.UUID{owner}, group.Members)

	var reqs []models.JoinRequest
	s.Require().NoError(s.db.Where("group_id = ?", group.ID).Find(&reqs).Error)
	s.Require().Len(reqs, 3)

	accepted, pending := 0, 0
	for _, r := range reqs {
		switch r.Status {
		case models.JoinRequestAccepted:
			accepted++
			s.Equal(owner, r.UserID)
		case models.JoinRequestPending:
			pending++
			s.Equal(owner, r.InitiatedBy)
		}
	}
	s.Equal(1, accepted)
	s.Equal(2, pending)

	s.Len(s.recorder.OfType(events.GroupInvitation), 2)
}

func (s *ServiceSuite) TestCreateGroupValidation() {
	owner := s.createUser("owner")

	_, err := s.groups.Create(s.ctx, owner, services.CreateGroupRequest{Name: "   "})
	s.True(errors.Is(err, services.ErrValidation))

	_, err = s.groups.Create(s.ctx, owner, services.CreateGroupRequest{
		Name:    "Ghosts",
		Members: []uuid.UUID{uuid.Must(uuid.NewV4())},
	})
	s.True(errors.Is(err, services.ErrNotFound))

	var count int64
	s.Require().NoError(s.db.Model(&models.Group{}).Count(&count).Error)
	s.Zero(count)
}

func (s *ServiceSuite) TestPrivateGroupVisibility() {
	owner := s.createUser("owner")
	stranger := s.createUser("stranger")

	private := s.createGroup(owner, "Secret", true)
	public := s.createGroup(owner, "Open", false)

	_, err := s.groups.GetByID(s.ctx, private.ID, stranger)
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.groups.ListMembers(s.ctx, private.ID, stranger)
	s.True(errors.Is(err, services.ErrForbidden))

	got, err := s.groups.GetByID(s.ctx, public.ID, stranger)
	s.Require().NoError(err)
	s.Equal("Open", got.Name)

	listed, err := s.groups.ListPublic(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(public.ID, listed[0].ID)

	_, err = s.groups.GetByID(s.ctx, uuid.Must(uuid.NewV4()), owner)
	s.True(errors.Is(err, services.ErrNotFound))
}

func (s *ServiceSuite) TestListGroupsForUser() {
	owner := s.createUser("owner")
	member := s.createUser("member")
	other := s.createUser("other")

	eng := s.createGroup(owner, "Eng", false)
	s.createGroup(other, "Ops", false)
	s.joinGroup(owner, eng.ID, member)

	groups, err := s.groups.ListForUser(s.ctx, member)
	s.Require().NoError(err)
	s.Require().Len(groups, 1)
	s.Equal(eng.ID, groups[0].ID)
	s.ElementsMatch([]uuid.UUID{owner, member}, groups[0].Members)
}

func (s *ServiceSuite) TestGroupMutationsAreOwnerOnly() {
	owner := s.createUser("owner")
	member := s.createUser("member")
	group := s.createGroup(owner, "Eng", false)
	s.joinGroup(owner, group.ID, member)

	name := "Platform"
	_, err := s.groups.Update(s.ctx, group.ID, member, services.GroupUpdate{Name: &name})
	s.True(errors.Is(err, services.ErrForbidden))

	err = s.groups.Delete(s.ctx, group.ID, member)
	s.True(errors.Is(err, services.ErrForbidden))

	updated, err := s.groups.Update(s.ctx, group.ID, owner, services.GroupUpdate{Name: &name})
	s.Require().NoError(err)
	s.Equal("Platform", updated.Name)

	empty := " "
	_, err = s.groups.Update(s.ctx, group.ID, owner, services.GroupUpdate{Name: &empty})
	s.True(errors.Is(err, services.ErrValidation))

	accented := strings.Repeat("é", 100)
	updated, err = s.groups.Update(s.ctx, group.ID, owner, services.GroupUpdate{Name: &accented})
	s.Require().NoError(err)
	s.Equal(accented, updated.Name)

	tooLong := strings.Repeat("é", 101)
	_, err = s.groups.Update(s.ctx, group.ID, owner, services.GroupUpdate{Name: &tooLong})
	s.True(errors.Is(err, services.ErrValidation))
}

func (s *ServiceSuite) TestDeleteGroupRemovesTeamTasks() {
	owner := s.createUser("owner")
	group := s.createGroup(owner, "Eng", false)

	teamTask, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "ship", GroupID: &group.ID})
	s.Require().NoError(err)
	personal, err := s.tasks.Create(s.ctx, owner, services.CreateTaskRequest{Title: "laundry"})
	s.Require().NoError(err)

	s.Require().NoError(s.groups.Delete(s.ctx, group.ID, owner))

	_, err = s.tasks.Get(s.ctx, teamTask.ID, owner)
	s.True(errors.Is(err, services.ErrNotFound))
	_, err = s.tasks.Get(s.ctx, personal.ID, owner)
	s.NoError(err)

	var members int64
	s.Require().NoError(s.db.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&members).Error)
	s.Zero(members)
}
