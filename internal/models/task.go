package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID             uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID         uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index"`
	CreatedBy      uuid.UUID    `json:"created_by" gorm:"type:uuid;not null"`
	GroupID        *uuid.UUID   `json:"group_id,omitempty" gorm:"type:uuid;index"`
	Title          string       `json:"title" gorm:"not null"`
	Description    string       `json:"description"`
	Status         TaskStatus   `json:"status" gorm:"size:16;not null;default:'pending'"`
	Priority       TaskPriority `json:"priority" gorm:"size:16;not null;default:'medium'"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	ReminderSentAt *time.Time   `json:"-"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}

func (t *Task) IsPersonal() bool {
	return t.GroupID == nil
}
