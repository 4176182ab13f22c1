package services_test

import (
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"

	"github.com/gofrs/uuid"
)

func (s *ServiceSuite) TestFriendsThenGroupScenario() {
	u1 := s.createUser("u1")
	u2 := s.createUser("u2")

	req, err := s.friends.Send(s.ctx, u1, u2)
	s.Require().NoError(err)
	_, err = s.friends.Respond(s.ctx, req.ID, u2, models.DecisionAccept)
	s.Require().NoError(err)

	f1, err := s.friends.ListFriends(s.ctx, u1)
	s.Require().NoError(err)
	s.Require().Len(f1, 1)
	s.Equal(u2, f1[0].ID)

	f2, err := s.friends.ListFriends(s.ctx, u2)
	s.Require().NoError(err)
	s.Require().Len(f2, 1)
	s.Equal(u1, f2[0].ID)

	eng, err := s.groups.Create(s.ctx, u1, services.CreateGroupRequest{Name: "Eng", Members: []uuid.UUID{u2}})
	s.Require().NoError(err)

	pending, err := s.joins.ListForUser(s.ctx, u2)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(models.JoinRequestPending, pending[0].Status)
	s.Require().NotNil(pending[0].Group)
	s.Equal("Eng", pending[0].Group.Name)

	_, err = s.joins.Respond(s.ctx, pending[0].ID, u2, models.DecisionAccept)
	s.Require().NoError(err)

	members, err := s.groups.ListMembers(s.ctx, eng.ID, u1)
	s.Require().NoError(err)
	s.Require().Len(members, 2)
	s.Equal(u1, members[0].ID)
	s.Equal(u2, members[1].ID)
}
