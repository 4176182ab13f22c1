package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/security"

	"gorm.io/gorm"
)

type RegistrationRequest struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

const (
	registerIDPrefix   = "REG-"
	registerIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	registerIDLength   = 8
	registerIDAttempts = 5

	// bcrypt only accepts passwords up to 72 bytes.
	maxPasswordBytes = 72
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newRegisterID returns a human-shareable code such as REG-7KQ2M9XA. The
// alphabet leaves out characters that are easy to misread.
func newRegisterID() (string, error) {
	var b strings.Builder
	b.WriteString(registerIDPrefix)
	max := big.NewInt(int64(len(registerIDAlphabet)))
	for i := 0; i < registerIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(registerIDAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *AuthServiceImpl) uniqueRegisterID(ctx context.Context) (string, error) {
	for i := 0; i < registerIDAttempts; i++ {
		id, err := newRegisterID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("register_id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a unique register id")
}

// Register creates an identity and returns only its register id.
func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (string, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return "", err
	}
	if len(req.Password) > maxPasswordBytes {
		return "", validationErrorf("password must be at most %d bytes", maxPasswordBytes)
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return "", err
	}
	if existing > 0 {
		return "", ErrDuplicateEmail
	}

	hashed, err := security.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	registerID, err := s.uniqueRegisterID(ctx)
	if err != nil {
		return "", err
	}

	user := models.User{
		RegisterID: registerID,
		Email:      req.Email,
		Password:   hashed,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", ErrDuplicateEmail
		}
		return "", err
	}

	logger.WithService("auth").Info("user registered", "user_id", user.ID, "register_id", registerID)
	return registerID, nil
}
