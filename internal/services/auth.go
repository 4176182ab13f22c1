package services

import (
	"context"
	"errors"
	"time"

	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/security"

	"gorm.io/gorm"
)

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (string, error)
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	ValidateSession(ctx context.Context, token string) (*security.SessionClaims, error)
	Logout(ctx context.Context, claims *security.SessionClaims) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.PublicProfile
}

type AuthServiceImpl struct {
	db         *gorm.DB
	tokens     security.TokenManager
	revocation security.RevocationStore
	bcryptCost int
}

func NewAuthService(db *gorm.DB, tokens security.TokenManager, revocation security.RevocationStore, bcryptCost int) *AuthServiceImpl {
	if revocation == nil {
		revocation = security.NewMemoryRevocationStore()
	}
	return &AuthServiceImpl{
		db:         db,
		tokens:     tokens,
		revocation: revocation,
		bcryptCost: bcryptCost,
	}
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "no account for this email")
	}

	if err := security.VerifyPassword(user.Password, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, claims, err := s.tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	logger.WithService("auth").Info("user logged in", "user_id", user.ID)
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user.Public(),
	}, nil
}

// ValidateSession verifies the token signature and expiry and rejects
// tokens revoked by logout.
func (s *AuthServiceImpl) ValidateSession(ctx context.Context, token string) (*security.SessionClaims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	revoked, err := s.revocation.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.Warn("revocation lookup failed", "error", err)
		return nil, ErrUnavailable
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, claims *security.SessionClaims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return ErrUnauthorized
	}
	if err := s.revocation.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	logger.WithService("auth").Info("user logged out", "user_id", claims.UserID)
	return nil
}
