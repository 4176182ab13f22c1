package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	RegisterID string    `json:"register_id" gorm:"uniqueIndex;size:16;not null"`
	Email      string    `json:"email" gorm:"uniqueIndex;not null"`
	Password   string    `json:"-" gorm:"not null"`

	FirstName string `json:"first_name" gorm:"not null"`
	LastName  string `json:"last_name" gorm:"not null"`
	Phone     string `json:"phone,omitempty"`
	Bio       string `json:"bio,omitempty"`
	AvatarKey string `json:"avatar_key,omitempty"`

	Twitter  string `json:"twitter,omitempty"`
	LinkedIn string `json:"linkedin,omitempty" gorm:"column:linkedin"`
	GitHub   string `json:"github,omitempty" gorm:"column:github"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id
	}
	return nil
}

// PublicProfile is the outward view of a User. It never carries the
// password hash or the raw avatar storage key.
type PublicProfile struct {
	ID         uuid.UUID `json:"id"`
	RegisterID string    `json:"register_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Twitter    string    `json:"twitter,omitempty"`
	LinkedIn   string    `json:"linkedin,omitempty"`
	GitHub     string    `json:"github,omitempty"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		RegisterID: u.RegisterID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Phone:      u.Phone,
		Bio:        u.Bio,
		Twitter:    u.Twitter,
		LinkedIn:   u.LinkedIn,
		GitHub:     u.GitHub,
	}
}

// ProfileSummary is what unauthenticated callers may see of a user.
type ProfileSummary struct {
	ID         uuid.UUID `json:"id"`
	RegisterID string    `json:"register_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
}

func (p PublicProfile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:         p.ID,
		RegisterID: p.RegisterID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		AvatarURL:  p.AvatarURL,
	}
}

func Summaries(profiles []PublicProfile) []ProfileSummary {
	out := make([]ProfileSummary, len(profiles))
	for i, p := range profiles {
		out[i] = p.Summary()
	}
	return out
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Friendship is one direction of the symmetric friend set. Accepting a
// friend request writes both directions.
type Friendship struct {
	UserID    uuid.UUID `json:"user_id" gorm:"primaryKey;type:uuid"`
	FriendID  uuid.UUID `json:"friend_id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
}
