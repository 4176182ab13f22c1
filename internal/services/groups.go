package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	maxGroupName        = 100
	maxGroupDescription = 1000
)

type CreateGroupRequest struct {
	Name        string      `json:"name" validate:"required,max=100"`
	Description string      `json:"description" validate:"max=1000"`
	IsPrivate   bool        `json:"isPrivate"`
	Members     []uuid.UUID `json:"members"`
}

type GroupUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"isPrivate"`
}

type GroupService interface {
	Create(ctx context.Context, owner uuid.UUID, req CreateGroupRequest) (*models.Group, error)
	GetByID(ctx context.Context, id, viewer uuid.UUID) (*models.Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	ListPublic(ctx context.Context) ([]models.Group, error)
	Update(ctx context.Context, id, by uuid.UUID, patch GroupUpdate) (*models.Group, error)
	Delete(ctx context.Context, id, by uuid.UUID) error
	ListMembers(ctx context.Context, id, viewer uuid.UUID) ([]models.PublicProfile, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// GroupDeletionHook is told about groups removed together with their
// team tasks, so derived caches can drop them.
type GroupDeletionHook interface {
	GroupDeleted(groupID uuid.UUID)
}

type GroupServiceImpl struct {
	db       *gorm.DB
	profiles UserService
	events   events.Publisher
	onDelete GroupDeletionHook
}

func NewGroupService(db *gorm.DB, profiles UserService, publisher events.Publisher) *GroupServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &GroupServiceImpl{db: db, profiles: profiles, events: publisher}
}

func (s *GroupServiceImpl) SetDeletionHook(hook GroupDeletionHook) {
	s.onDelete = hook
}

func isGroupMember(db *gorm.DB, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func findGroup(db *gorm.DB, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := db.First(&group, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "group not found")
	}
	return &group, nil
}

func (s *GroupServiceImpl) loadMembers(db *gorm.DB, groups []models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}

	var rows []models.GroupMember
	if err := db.Where("group_id IN ?", ids).Order("joined_at ASC").Find(&rows).Error; err != nil {
		return err
	}

	byGroup := make(map[uuid.UUID][]uuid.UUID, len(groups))
	for _, r := range rows {
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r.UserID)
	}
	for i := range groups {
		groups[i].Members = byGroup[groups[i].ID]
		if groups[i].Members == nil {
			groups[i].Members = []uuid.UUID{}
		}
	}
	return nil
}

func (s *GroupServiceImpl) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return isGroupMember(s.db.WithContext(ctx), groupID, userID)
}

// Create stores the group with the owner as its only member, an accepted
// join request for the owner and a pending invitation per proposed member.
func (s *GroupServiceImpl) Create(ctx context.Context, owner uuid.UUID, req CreateGroupRequest) (*models.Group, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	invitees := make([]uuid.UUID, 0, len(req.Members))
	seen := map[uuid.UUID]bool{owner: true}
	for _, id := range req.Members {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		invitees = append(invitees, id)
	}

	db := s.db.WithContext(ctx)
	if len(invitees) > 0 {
		var found int64
		if err := db.Model(&models.User{}).Where("id IN ?", invitees).Count(&found).Error; err != nil {
			return nil, err
		}
		if int(found) != len(invitees) {
			return nil, notFoundf("one or more proposed members do not exist")
		}
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     owner,
		IsPrivate:   req.IsPrivate,
	}
	var invitations []models.JoinRequest

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Create(&models.GroupMember{GroupID: group.ID, UserID: owner, JoinedAt: now}).Error; err != nil {
			return err
		}

		ownerRecord := models.JoinRequest{
			UserID:      owner,
			GroupID:     group.ID,
			InitiatedBy: owner,
			Status:      models.JoinRequestAccepted,
			RequestedAt: now,
			RespondedAt: &now,
		}
		if err := tx.Create(&ownerRecord).Error; err != nil {
			return err
		}

		for _, userID := range invitees {
			jr, err := createPendingJoinRequest(tx, group.ID, userID, owner)
			if err != nil {
				return err
			}
			invitations = append(invitations, *jr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, jr := range invitations {
		s.events.Publish(ctx, events.Event{Type: events.GroupInvitation, Recipient: jr.UserID, Payload: jr})
	}

	group.Members = []uuid.UUID{owner}
	logger.WithService("groups").Info("group created", "group_id", group.ID, "owner", owner, "invitations", len(invitations))
	return &group, nil
}

func (s *GroupServiceImpl) GetByID(ctx context.Context, id, viewer uuid.UUID) (*models.Group, error) {
	db := s.db.WithContext(ctx)
	group, err := findGroup(db, id)
	if err != nil {
		return nil, err
	}

	if group.IsPrivate {
		member, err := isGroupMember(db, id, viewer)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, forbiddenf("this group is private")
		}
	}

	groups := []models.Group{*group}
	if err := s.loadMembers(db, groups); err != nil {
		return nil, err
	}
	return &groups[0], nil
}

func (s *GroupServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	db := s.db.WithContext(ctx)
	memberOf := db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)

	groups := []models.Group{}
	err := db.Where("owner_id = ? OR id IN (?)", userID, memberOf).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	if err := s.loadMembers(db, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupServiceImpl) ListPublic(ctx context.Context) ([]models.Group, error) {
	db := s.db.WithContext(ctx)

	groups := []models.Group{}
	if err := db.Where("is_private = ?", false).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	if err := s.loadMembers(db, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupServiceImpl) Update(ctx context.Context, id, by uuid.UUID, patch GroupUpdate) (*models.Group, error) {
	db := s.db.WithContext(ctx)
	group, err := findGroup(db, id)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != by {
		return nil, forbiddenf("only the group owner may update the group")
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, validationErrorf("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxGroupName {
			return nil, validationErrorf("name must be at most %d characters", maxGroupName)
		}
		updates["name"] = name
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if utf8.RuneCountInString(description) > maxGroupDescription {
			return nil, validationErrorf("description must be at most %d characters", maxGroupDescription)
		}
		updates["description"] = description
	}
	if patch.IsPrivate != nil {
		updates["is_private"] = *patch.IsPrivate
	}

	if len(updates) > 0 {
		if err := db.Model(group).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, id, by)
}

// Delete removes the group together with its members, join requests and
// team tasks.
func (s *GroupServiceImpl) Delete(ctx context.Context, id, by uuid.UUID) error {
	db := s.db.WithContext(ctx)
	group, err := findGroup(db, id)
	if err != nil {
		return err
	}
	if group.OwnerID != by {
		return forbiddenf("only the group owner may delete the group")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.JoinRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		return err
	}

	if s.onDelete != nil {
		s.onDelete.GroupDeleted(id)
	}
	logger.WithService("groups").Info("group deleted", "group_id", id, "by", by)
	return nil
}

func (s *GroupServiceImpl) ListMembers(ctx context.Context, id, viewer uuid.UUID) ([]models.PublicProfile, error) {
	db := s.db.WithContext(ctx)
	group, err := findGroup(db, id)
	if err != nil {
		return nil, err
	}

	if group.IsPrivate {
		member, err := isGroupMember(db, id, viewer)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, forbiddenf("this group is private")
		}
	}

	var ids []uuid.UUID
	err = db.Model(&models.GroupMember{}).
		Where("group_id = ?", id).
		Order("joined_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.profiles.PublicProfiles(ctx, ids)
}
