package services

import (
	"context"
	"errors"
	"time"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JoinRequestService interface {
	RequestToJoin(ctx context.Context, userID, groupID uuid.UUID) (*models.JoinRequest, error)
	Invite(ctx context.Context, by, groupID, userID uuid.UUID) (*models.JoinRequest, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.JoinRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.JoinRequest, error)
	Respond(ctx context.Context, requestID, by uuid.UUID, decision models.Decision) (*models.JoinRequest, error)
}

type JoinRequestServiceImpl struct {
	db       *gorm.DB
	profiles UserService
	events   events.Publisher
}

func NewJoinRequestService(db *gorm.DB, profiles UserService, publisher events.Publisher) *JoinRequestServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &JoinRequestServiceImpl{db: db, profiles: profiles, events: publisher}
}

// createPendingJoinRequest inserts a pending record for (group, user). The
// caller has already resolved the group; the user must exist and must not
// be a member yet.
func createPendingJoinRequest(tx *gorm.DB, groupID, userID, initiatedBy uuid.UUID) (*models.JoinRequest, error) {
	ok, err := userExists(tx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("user %s not found", userID)
	}

	member, err := isGroupMember(tx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	var pending int64
	err = tx.Model(&models.JoinRequest{}).
		Where("group_id = ? AND user_id = ? AND status = ?", groupID, userID, models.JoinRequestPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrDuplicateRequest
	}

	jr := models.JoinRequest{
		UserID:      userID,
		GroupID:     groupID,
		InitiatedBy: initiatedBy,
		Status:      models.JoinRequestPending,
	}
	if err := tx.Create(&jr).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}
	return &jr, nil
}

func (s *JoinRequestServiceImpl) RequestToJoin(ctx context.Context, userID, groupID uuid.UUID) (*models.JoinRequest, error) {
	if groupID == uuid.Nil {
		return nil, validationErrorf("groupId is required")
	}

	db := s.db.WithContext(ctx)
	group, err := findGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if group.IsPrivate {
		return nil, forbiddenf("private groups accept members by invitation only")
	}

	jr, err := createPendingJoinRequest(db, groupID, userID, userID)
	if err != nil {
		return nil, err
	}

	jr.Group = group
	s.events.Publish(ctx, events.Event{Type: events.JoinRequestCreated, Recipient: group.OwnerID, Payload: jr})
	logger.WithService("join_requests").Info("join requested", "request_id", jr.ID, "group_id", groupID, "user_id", userID)
	return jr, nil
}

func (s *JoinRequestServiceImpl) Invite(ctx context.Context, by, groupID, userID uuid.UUID) (*models.JoinRequest, error) {
	if userID == uuid.Nil {
		return nil, validationErrorf("userId is required")
	}

	db := s.db.WithContext(ctx)
	group, err := findGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != by {
		return nil, forbiddenf("only the group owner may invite members")
	}

	jr, err := createPendingJoinRequest(db, groupID, userID, by)
	if err != nil {
		return nil, err
	}

	jr.Group = group
	s.events.Publish(ctx, events.Event{Type: events.GroupInvitation, Recipient: userID, Payload: jr})
	logger.WithService("join_requests").Info("member invited", "request_id", jr.ID, "group_id", groupID, "user_id", userID)
	return jr, nil
}

func (s *JoinRequestServiceImpl) attachGroups(db *gorm.DB, reqs []models.JoinRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.GroupID)
	}

	var groups []models.Group
	if err := db.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*models.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}
	for i := range reqs {
		reqs[i].Group = byID[reqs[i].GroupID]
	}
	return nil
}

func (s *JoinRequestServiceImpl) attachUsers(ctx context.Context, reqs []models.JoinRequest) error {
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.UserID)
	}
	profiles, err := s.profiles.PublicProfiles(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]models.PublicProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range reqs {
		if p, ok := byID[reqs[i].UserID]; ok {
			p := p
			reqs[i].User = &p
		}
	}
	return nil
}

// ListForOwner returns every request, in any state, concerning a group the
// owner runs. The owner's own membership record is left out.
func (s *JoinRequestServiceImpl) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.JoinRequest, error) {
	db := s.db.WithContext(ctx)
	owned := db.Model(&models.Group{}).Select("id").Where("owner_id = ?", ownerID)

	reqs := []models.JoinRequest{}
	err := db.Where("group_id IN (?) AND user_id <> ?", owned, ownerID).
		Order("requested_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	if err := s.attachGroups(db, reqs); err != nil {
		return nil, err
	}
	if err := s.attachUsers(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *JoinRequestServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.JoinRequest, error) {
	db := s.db.WithContext(ctx)

	reqs := []models.JoinRequest{}
	err := db.Where("user_id = ? AND status = ?", userID, models.JoinRequestPending).
		Order("requested_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	if err := s.attachGroups(db, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// Respond settles a pending request. Invitations are answered by the
// invited user, self requests by the group owner.
func (s *JoinRequestServiceImpl) Respond(ctx context.Context, requestID, by uuid.UUID, decision models.Decision) (*models.JoinRequest, error) {
	next := models.JoinRequestStatus(decision)
	if !next.Valid() || next == models.JoinRequestPending {
		return nil, validationErrorf("status must be accepted or rejected")
	}

	var (
		jr    models.JoinRequest
		group *models.Group
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&jr, "id = ?", requestID).Error; err != nil {
			return notFoundOr(err, "join request not found")
		}

		var err error
		group, err = findGroup(tx, jr.GroupID)
		if err != nil {
			return err
		}

		if jr.IsInvitation() {
			if by != jr.UserID {
				return forbiddenf("only the invited user may answer an invitation")
			}
		} else if by != group.OwnerID {
			return forbiddenf("only the group owner may answer a join request")
		}

		if !jr.Status.CanTransitionTo(next) {
			return ErrAlreadyHandled
		}

		now := time.Now().UTC()
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", requestID, models.JoinRequestPending).
			Updates(map[string]interface{}{"status": next, "responded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyHandled
		}
		jr.Status = next
		jr.RespondedAt = &now

		if next != models.JoinRequestAccepted {
			return nil
		}
		member := models.GroupMember{GroupID: jr.GroupID, UserID: jr.UserID, JoinedAt: now}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	jr.Group = group
	recipient := jr.InitiatedBy
	if jr.IsInvitation() {
		recipient = group.OwnerID
	}
	eventType := events.JoinRequestRejected
	if next == models.JoinRequestAccepted {
		eventType = events.JoinRequestAccepted
	}
	s.events.Publish(ctx, events.Event{Type: eventType, Recipient: recipient, Payload: jr})
	logger.WithService("join_requests").Info("join request answered", "request_id", jr.ID, "status", next)
	return &jr, nil
}
