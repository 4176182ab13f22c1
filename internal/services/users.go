package services

import (
	"context"
	"errors"
	"strings"

	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"
	"teamhub/backend/internal/storage"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ProfileUpdate struct {
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"max=32"`
	Bio       string `json:"bio" validate:"max=500"`
	Twitter   string `json:"twitter" validate:"max=100"`
	LinkedIn  string `json:"linkedin" validate:"max=200"`
	GitHub    string `json:"github" validate:"max=100"`
}

type AvatarUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error)
	GetByRegisterID(ctx context.Context, registerID string) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.PublicProfile, error)
	AvatarUploadURL(ctx context.Context, id uuid.UUID, fileName, contentType string) (*AvatarUpload, error)
	SetAvatar(ctx context.Context, id uuid.UUID, key string) (*models.PublicProfile, error)
	PublicProfiles(ctx context.Context, ids []uuid.UUID) ([]models.PublicProfile, error)
}

type UserServiceImpl struct {
	db      *gorm.DB
	avatars storage.AvatarStore
}

// NewUserService accepts a nil avatar store; avatar operations then
// report ErrUnavailable and profiles carry no avatar URL.
func NewUserService(db *gorm.DB, avatars storage.AvatarStore) *UserServiceImpl {
	return &UserServiceImpl{db: db, avatars: avatars}
}

func (s *UserServiceImpl) profile(ctx context.Context, u *models.User) models.PublicProfile {
	p := u.Public()
	if u.AvatarKey != "" && s.avatars != nil {
		url, err := s.avatars.PresignDownload(ctx, u.AvatarKey)
		if err != nil {
			logger.Warn("failed to presign avatar", "user_id", u.ID, "error", err)
		} else {
			p.AvatarURL = url
		}
	}
	return p
}

func (s *UserServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	p := s.profile(ctx, &user)
	return &p, nil
}

func (s *UserServiceImpl) GetByRegisterID(ctx context.Context, registerID string) (*models.PublicProfile, error) {
	registerID = strings.ToUpper(strings.TrimSpace(registerID))
	if registerID == "" {
		return nil, validationErrorf("registerId is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "register_id = ?", registerID).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	p := s.profile(ctx, &user)
	return &p, nil
}

// PublicProfiles resolves ids in the order given. Unknown ids are skipped.
func (s *UserServiceImpl) PublicProfiles(ctx context.Context, ids []uuid.UUID) ([]models.PublicProfile, error) {
	if len(ids) == 0 {
		return []models.PublicProfile{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	out := make([]models.PublicProfile, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, s.profile(ctx, u))
		}
	}
	return out, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.PublicProfile, error) {
	update.FirstName = strings.TrimSpace(update.FirstName)
	update.LastName = strings.TrimSpace(update.LastName)
	update.Email = normalizeEmail(update.Email)
	if err := validateStruct(update); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	if update.Email != user.Email {
		var taken int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", update.Email, id).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			return nil, ErrDuplicateEmail
		}
	}

	err := db.Model(&user).Updates(map[string]interface{}{
		"first_name": update.FirstName,
		"last_name":  update.LastName,
		"email":      update.Email,
		"phone":      strings.TrimSpace(update.Phone),
		"bio":        strings.TrimSpace(update.Bio),
		"twitter":    strings.TrimSpace(update.Twitter),
		"linkedin":   strings.TrimSpace(update.LinkedIn),
		"github":     strings.TrimSpace(update.GitHub),
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	p := s.profile(ctx, &user)
	return &p, nil
}

func (s *UserServiceImpl) AvatarUploadURL(ctx context.Context, id uuid.UUID, fileName, contentType string) (*AvatarUpload, error) {
	if s.avatars == nil {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, validationErrorf("fileName is required")
	}

	url, key, err := s.avatars.PresignUpload(ctx, id, fileName, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFileType) {
			return nil, validationErrorf("avatar must be a jpeg, png, gif or webp image")
		}
		return nil, err
	}
	return &AvatarUpload{UploadURL: url, Key: key}, nil
}

// SetAvatar records an uploaded object as the user's avatar. Only keys
// issued for this user are accepted.
func (s *UserServiceImpl) SetAvatar(ctx context.Context, id uuid.UUID, key string) (*models.PublicProfile, error) {
	if s.avatars == nil {
		return nil, ErrUnavailable
	}
	if !s.avatars.OwnsKey(id, key) {
		return nil, validationErrorf("avatar key does not belong to this user")
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", id).Update("avatar_key", key)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, notFoundf("user not found")
	}
	return s.GetByID(ctx, id)
}
