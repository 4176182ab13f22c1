package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	FromUserID uuid.UUID `json:"from_user_id" gorm:"type:uuid;not null;index:idx_messages_pair"`
	ToUserID   uuid.UUID `json:"to_user_id" gorm:"type:uuid;not null;index:idx_messages_pair"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

// All lists every persisted model in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Friendship{},
		&FriendRequest{},
		&Group{},
		&GroupMember{},
		&JoinRequest{},
		&Task{},
		&Message{},
	}
}
