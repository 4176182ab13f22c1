package services_test

import (
	"errors"
	"sync"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/services"

	"github.com/gofrs/uuid"
)

func (s *ServiceSuite) TestSendFriendRequest() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	req, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.Equal(models.FriendRequestPending, req.Status)

	pending, err := s.friends.ListPending(s.ctx, bob)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Require().NotNil(pending[0].From)
	s.Equal(alice, pending[0].From.ID)

	sent, err := s.friends.ListSent(s.ctx, alice)
	s.Require().NoError(err)
	s.Len(sent, 1)

	created := s.recorder.OfType(events.FriendRequestCreated)
	s.Require().Len(created, 1)
	s.Equal(bob, created[0].Recipient)
}

func (s *ServiceSuite) TestSendFriendRequestFailures() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	_, err := s.friends.Send(s.ctx, alice, alice)
	s.True(errors.Is(err, services.ErrValidation))

	_, err = s.friends.Send(s.ctx, alice, uuid.Must(uuid.NewV4()))
	s.True(errors.Is(err, services.ErrNotFound))

	_, err = s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	_, err = s.friends.Send(s.ctx, alice, bob)
	s.True(errors.Is(err, services.ErrDuplicateRequest))
}

func (s *ServiceSuite) TestResendAfterRejection() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	first, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	_, err = s.friends.Respond(s.ctx, first.ID, bob, models.DecisionReject)
	s.Require().NoError(err)

	second, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
	s.Equal(models.FriendRequestPending, second.Status)

	friends, err := s.friends.ListFriends(s.ctx, bob)
	s.Require().NoError(err)
	s.Empty(friends)
}

func (s *ServiceSuite) TestAcceptFriendRequestOnce() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	req, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)

	_, err = s.friends.Respond(s.ctx, req.ID, alice, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrForbidden))

	accepted, err := s.friends.Respond(s.ctx, req.ID, bob, models.DecisionAccept)
	s.Require().NoError(err)
	s.Equal(models.FriendRequestAccepted, accepted.Status)
	s.NotNil(accepted.RespondedAt)

	_, err = s.friends.Respond(s.ctx, req.ID, bob, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrAlreadyHandled))

	aliceFriends, err := s.friends.ListFriends(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(aliceFriends, 1)
	s.Equal(bob, aliceFriends[0].ID)

	bobFriends, err := s.friends.ListFriends(s.ctx, bob)
	s.Require().NoError(err)
	s.Require().Len(bobFriends, 1)
	s.Equal(alice, bobFriends[0].ID)

	s.Len(s.recorder.OfType(events.FriendRequestAccepted), 1)
}

func (s *ServiceSuite) TestResendAfterAcceptance() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	first, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	_, err = s.friends.Respond(s.ctx, first.ID, bob, models.DecisionAccept)
	s.Require().NoError(err)

	second, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
	s.Equal(models.FriendRequestPending, second.Status)

	_, err = s.friends.Send(s.ctx, alice, bob)
	s.True(errors.Is(err, services.ErrDuplicateRequest))

	_, err = s.friends.Respond(s.ctx, second.ID, bob, models.DecisionAccept)
	s.Require().NoError(err)

	friends, err := s.friends.ListFriends(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(friends, 1)
	s.Equal(bob, friends[0].ID)
}

func (s *ServiceSuite) TestConcurrentAcceptSucceedsOnce() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	req, err := s.friends.Send(s.ctx, alice, bob)
	s.Require().NoError(err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		handled   int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.friends.Respond(s.ctx, req.ID, bob, models.DecisionAccept)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, services.ErrAlreadyHandled):
				handled++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(4, handled)

	var rows int64
	s.Require().NoError(s.db.Model(&models.Friendship{}).Count(&rows).Error)
	s.Equal(int64(2), rows)
}

func (s *ServiceSuite) TestRespondUnknownRequest() {
	alice := s.createUser("alice")

	_, err := s.friends.Respond(s.ctx, uuid.Must(uuid.NewV4()), alice, models.DecisionAccept)
	s.True(errors.Is(err, services.ErrNotFound))
}
