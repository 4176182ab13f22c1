package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Group struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	IsPrivate   bool      `json:"is_private" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []uuid.UUID `json:"members,omitempty" gorm:"-"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		g.ID = id
	}
	return nil
}

// GroupMember rows form the member set of a group; the composite key keeps
// entries unique.
type GroupMember struct {
	GroupID  uuid.UUID `json:"group_id" gorm:"primaryKey;type:uuid"`
	UserID   uuid.UUID `json:"user_id" gorm:"primaryKey;type:uuid;index"`
	JoinedAt time.Time `json:"joined_at"`
}

type JoinRequest struct {
	ID          uuid.UUID         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index:idx_join_requests_pair"`
	GroupID     uuid.UUID         `json:"group_id" gorm:"type:uuid;not null;index:idx_join_requests_pair"`
	InitiatedBy uuid.UUID         `json:"initiated_by" gorm:"type:uuid;not null"`
	Status      JoinRequestStatus `json:"status" gorm:"size:16;not null;default:'pending'"`
	RequestedAt time.Time         `json:"requested_at" gorm:"autoCreateTime"`
	RespondedAt *time.Time        `json:"responded_at,omitempty"`

	Group *Group         `json:"group,omitempty" gorm:"-"`
	User  *PublicProfile `json:"user,omitempty" gorm:"-"`
}

func (r *JoinRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.Status == "" {
		r.Status = JoinRequestPending
	}
	return nil
}

// IsInvitation reports whether the request was issued by someone other than
// the user it concerns, i.e. the group owner inviting them.
func (r *JoinRequest) IsInvitation() bool {
	return r.InitiatedBy != r.UserID
}
