package services_test

import (
	"errors"
	"strings"

	"teamhub/backend/internal/services"
)

func (s *ServiceSuite) TestRegisterThenAuthenticate() {
	registerID, err := s.auth.Register(s.ctx, services.RegistrationRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "  Ada@Example.com ",
		Password:  "password123",
	})
	s.Require().NoError(err)
	s.True(strings.HasPrefix(registerID, "REG-"))
	s.Len(registerID, 12)

	profile, err := s.users.GetByRegisterID(s.ctx, strings.ToLower(registerID))
	s.Require().NoError(err)
	s.Equal("ada@example.com", profile.Email)

	session, err := s.auth.Authenticate(s.ctx, "ADA@example.com", "password123")
	s.Require().NoError(err)
	s.Equal(profile.ID, session.User.ID)

	claims, err := s.auth.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(profile.ID, claims.UserID)
}

func (s *ServiceSuite) TestAuthenticateFailures() {
	s.createUser("bob")

	_, err := s.auth.Authenticate(s.ctx, "nobody@example.com", "password123")
	s.True(errors.Is(err, services.ErrNotFound))

	var email string
	s.Require().NoError(s.db.Table("users").Select("email").Limit(1).Scan(&email).Error)
	_, err = s.auth.Authenticate(s.ctx, email, "wrong-password")
	s.True(errors.Is(err, services.ErrInvalidCredentials))
}

func (s *ServiceSuite) TestRegisterValidationAndDuplicates() {
	req := services.RegistrationRequest{FirstName: "Eve", LastName: "Smith", Email: "eve@example.com", Password: "password123"}
	_, err := s.auth.Register(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.auth.Register(s.ctx, req)
	s.True(errors.Is(err, services.ErrDuplicateEmail))

	short := req
	short.Email = "other@example.com"
	short.Password = "short"
	_, err = s.auth.Register(s.ctx, short)
	s.True(errors.Is(err, services.ErrValidation))

	bad := req
	bad.Email = "not-an-email"
	_, err = s.auth.Register(s.ctx, bad)
	s.True(errors.Is(err, services.ErrValidation))

	multibyte := req
	multibyte.Email = "accents@example.com"
	multibyte.Password = strings.Repeat("é", 40)
	_, err = s.auth.Register(s.ctx, multibyte)
	s.True(errors.Is(err, services.ErrValidation))

	multibyte.Password = strings.Repeat("é", 36)
	_, err = s.auth.Register(s.ctx, multibyte)
	s.NoError(err)
}

func (s *ServiceSuite) TestLogoutRevokesSession() {
	_, err := s.auth.Register(s.ctx, services.RegistrationRequest{
		FirstName: "Tim", LastName: "Berners", Email: "tim@example.com", Password: "password123",
	})
	s.Require().NoError(err)

	session, err := s.auth.Authenticate(s.ctx, "tim@example.com", "password123")
	s.Require().NoError(err)
	claims, err := s.auth.ValidateSession(s.ctx, session.Token)
	s.Require().NoError(err)

	s.Require().NoError(s.auth.Logout(s.ctx, claims))

	_, err = s.auth.ValidateSession(s.ctx, session.Token)
	s.True(errors.Is(err, services.ErrUnauthorized))
}

func (s *ServiceSuite) TestUpdateProfile() {
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	bobProfile, err := s.users.GetByID(s.ctx, bob)
	s.Require().NoError(err)

	updated, err := s.users.UpdateProfile(s.ctx, alice, services.ProfileUpdate{
		FirstName: "Alice",
		LastName:  "Liddell",
		Email:     "alice.new@example.com",
		Bio:       "  down the rabbit hole ",
	})
	s.Require().NoError(err)
	s.Equal("Liddell", updated.LastName)
	s.Equal("down the rabbit hole", updated.Bio)

	_, err = s.users.UpdateProfile(s.ctx, alice, services.ProfileUpdate{
		FirstName: "Alice", LastName: "Liddell", Email: bobProfile.Email,
	})
	s.True(errors.Is(err, services.ErrDuplicateEmail))

	_, err = s.users.UpdateProfile(s.ctx, alice, services.ProfileUpdate{
		FirstName: "", LastName: "Liddell", Email: "alice.new@example.com",
	})
	s.True(errors.Is(err, services.ErrValidation))
}

func (s *ServiceSuite) TestAvatarWithoutStorage() {
	alice := s.createUser("alice")

	_, err := s.users.AvatarUploadURL(s.ctx, alice, "me.png", "image/png")
	s.True(errors.Is(err, services.ErrUnavailable))
}
