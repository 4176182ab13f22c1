package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type FriendRequest struct {
	ID          uuid.UUID           `json:"id" gorm:"primaryKey;type:uuid"`
	FromUserID  uuid.UUID           `json:"from_user_id" gorm:"type:uuid;not null;index:idx_friend_requests_pair"`
	ToUserID    uuid.UUID           `json:"to_user_id" gorm:"type:uuid;not null;index:idx_friend_requests_pair;index"`
	Status      FriendRequestStatus `json:"status" gorm:"size:16;not null;default:'pending'"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`

	From *PublicProfile `json:"from,omitempty" gorm:"-"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.Status == "" {
		r.Status = FriendRequestPending
	}
	return nil
}
