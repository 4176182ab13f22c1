package services_test

import (
	"errors"
	"fmt"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/services"

	"github.com/gofrs/uuid"
)

func (s *ServiceSuite) TestMessagesBetweenFriends() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	s.befriend(alice, bob)

	for i := 0; i < 3; i++ {
		_, err := s.messages.Send(s.ctx, alice, bob, fmt.Sprintf("hello %d", i))
		s.Require().NoError(err)
	}
	_, err := s.messages.Send(s.ctx, bob, alice, "hi back")
	s.Require().NoError(err)

	convo, err := s.messages.Conversation(s.ctx, bob, alice, 0)
	s.Require().NoError(err)
	s.Require().Len(convo, 4)
	s.Equal("hello 0", convo[0].Content)
	s.Equal("hi back", convo[3].Content)

	latest, err := s.messages.Conversation(s.ctx, alice, bob, 2)
	s.Require().NoError(err)
	s.Require().Len(latest, 2)
	s.Equal("hello 2", latest[0].Content)
	s.Equal("hi back", latest[1].Content)

	s.Len(s.recorder.OfType(events.MessageCreated), 4)
}

func (s *ServiceSuite) TestMessageRules() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")

	_, err := s.messages.Send(s.ctx, alice, bob, "  ")
	s.True(errors.Is(err, services.ErrValidation))

	_, err = s.messages.Send(s.ctx, alice, uuid.Must(uuid.NewV4()), "hello")
	s.True(errors.Is(err, services.ErrNotFound))

	_, err = s.messages.Send(s.ctx, alice, bob, "hello")
	s.True(errors.Is(err, services.ErrForbidden))

	_, err = s.messages.Conversation(s.ctx, alice, bob, 10)
	s.True(errors.Is(err, services.ErrForbidden))
}
