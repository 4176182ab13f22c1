package services_test

import (
	"errors"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"

	"github.com/gofrs/uuid"
)

func (s *ServiceSuite) TestSelfJoinRequestFlow() {
	owner := s.createUser("owner")
	applicant := s.createUser("applicant")
	group := s.createGroup(owner, "Open", false)

	jr, err := s.joins.RequestToJoin(s.ctx, applicant, group.ID)
	s.Require().NoError(err)
	s.False(jr.IsInvitation())

	_, err = s.joins.RequestToJoin(s.ctx, applicant, group.ID)
	s.True(errors.Is(err, services.ErrDuplicateRequest))

	forOwner, err := s.joins.ListForOwner(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(forOwner, 1)
	s.Equal(applicant, forOwner[0].UserID)
	s.Require().NotNil(forOwner[0].User)
	s.Require().NotNil(forOwner[0].Group)
	s.Equal("Open", forOwner[0].Group.Name)

	_, err = s.joins.Respond(s.ctx, jr.ID, applicant, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.joins.Respond(s.ctx, jr.ID, owner, models.DecisionAccept)
	s.Require().NoError(err)

	member, err := s.groups.IsMember(s.ctx, group.ID, applicant)
	s.Require().NoError(err)
	s.True(member)

	_, err = s.joins.RequestToJoin(s.ctx, applicant, group.ID)
	s.True(errors.Is(err, services.ErrAlreadyMember))

	s.Len(s.recorder.OfType(events.JoinRequestCreated), 1)
	s.Len(s.recorder.OfType(events.JoinRequestAccepted), 1)
}

func (s *ServiceSuite) TestPrivateGroupRequiresInvitation() {
	owner := s.createUser("owner")
	applicant := s.createUser("applicant")
	member := s.createUser("member")
	group := s.createGroup(owner, "Secret", true)

	_, err := s.joins.RequestToJoin(s.ctx, applicant, group.ID)
	s.True(errors.Is(err, services.ErrForbidden))

	s.joinGroup(owner, group.ID, member)
	_, err = s.joins.Invite(s.ctx, member, group.ID, applicant)
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.joins.Invite(s.ctx, owner, uuid.Must(uuid.NewV4()), applicant)
	s.True(errors.Is(err, services.ErrNotFound))

	_, err = s.joins.Invite(s.ctx, owner, group.ID, uuid.Must(uuid.NewV4()))
	s.True(errors.Is(err, services.ErrNotFound))
}

func (s *ServiceSuite) TestInvitationAnsweredByInvitee() {
	owner := s.createUser("owner")
	invitee := s.createUser("invitee")
	group := s.createGroup(owner, "Eng", false, invitee)

	mine, err := s.joins.ListForUser(s.ctx, invitee)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.True(mine[0].IsInvitation())

	_, err = s.joins.Respond(s.ctx, mine[0].ID, owner, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrForbidden))

	rejected, err := s.joins.Respond(s.ctx, mine[0].ID, invitee, models.DecisionReject)
	s.Require().NoError(err)
	s.Equal(models.JoinRequestRejected, rejected.Status)

	members, err := s.groups.ListMembers(s.ctx, group.ID, owner)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(owner, members[0].ID)

	_, err = s.joins.Respond(s.ctx, mine[0].ID, invitee, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrAlreadyHandled))

	mine, err = s.joins.ListForUser(s.ctx, invitee)
	s.Require().NoError(err)
	s.Empty(mine)
}

func (s *ServiceSuite) TestAcceptAddsMemberOnce() {
	owner := s.createUser("owner")
	invitee := s.createUser("invitee")
	group := s.createGroup(owner, "Eng", false, invitee)

	mine, err := s.joins.ListForUser(s.ctx, invitee)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)

	_, err = s.joins.Respond(s.ctx, mine[0].ID, invitee, models.DecisionAccept)
	s.Require().NoError(err)
	_, err = s.joins.Respond(s.ctx, mine[0].ID, invitee, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrAlreadyHandled))

	var rows int64
	s.Require().NoError(s.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, invitee).
		Count(&rows).Error)
	s.Equal(int64(1), rows)
}
