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

type FriendRequestService interface {
	Send(ctx context.Context, from, to uuid.UUID) (*models.FriendRequest, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	Respond(ctx context.Context, requestID, by uuid.UUID, decision models.Decision) (*models.FriendRequest, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicProfile, error)
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type FriendRequestServiceImpl struct {
	db       *gorm.DB
	profiles UserService
	events   events.Publisher
}

func NewFriendRequestService(db *gorm.DB, profiles UserService, publisher events.Publisher) *FriendRequestServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &FriendRequestServiceImpl{db: db, profiles: profiles, events: publisher}
}

func userExists(db *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *FriendRequestServiceImpl) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	return count > 0, err
}

func (s *FriendRequestServiceImpl) Send(ctx context.Context, from, to uuid.UUID) (*models.FriendRequest, error) {
	if to == uuid.Nil {
		return nil, validationErrorf("toUserId is required")
	}

	db := s.db.WithContext(ctx)
	for _, id := range []uuid.UUID{from, to} {
		ok, err := userExists(db, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFoundf("user %s not found", id)
		}
	}

	if from == to {
		return nil, validationErrorf("cannot send a friend request to yourself")
	}

	var pending int64
	err := db.Model(&models.FriendRequest{}).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", from, to, models.FriendRequestPending).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrDuplicateRequest
	}

	req := models.FriendRequest{
		FromUserID: from,
		ToUserID:   to,
		Status:     models.FriendRequestPending,
	}
	if err := db.Create(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	s.events.Publish(ctx, events.Event{
		Type:      events.FriendRequestCreated,
		Recipient: to,
		Payload:   req,
	})
	logger.WithService("friends").Info("friend request sent", "request_id", req.ID, "from", from, "to", to)
	return &req, nil
}

// attachSenders fills in the sender's public profile on each request.
func (s *FriendRequestServiceImpl) attachSenders(ctx context.Context, reqs []models.FriendRequest) error {
	ids := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.FromUserID)
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
		if p, ok := byID[reqs[i].FromUserID]; ok {
			p := p
			reqs[i].From = &p
		}
	}
	return nil
}

func (s *FriendRequestServiceImpl) ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	reqs := []models.FriendRequest{}
	err := s.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	if err := s.attachSenders(ctx, reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *FriendRequestServiceImpl) ListSent(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	reqs := []models.FriendRequest{}
	err := s.db.WithContext(ctx).
		Where("from_user_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

// Respond settles a pending request. The status change and, on accept, the
// symmetric friendship rows commit together; a concurrent responder loses
// the conditional update and gets ErrAlreadyHandled.
func (s *FriendRequestServiceImpl) Respond(ctx context.Context, requestID, by uuid.UUID, decision models.Decision) (*models.FriendRequest, error) {
	next := models.FriendRequestStatus(decision)
	if !next.Valid() || next == models.FriendRequestPending {
		return nil, validationErrorf("status must be accepted or rejected")
	}

	var req models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", requestID).Error; err != nil {
			return notFoundOr(err, "friend request not found")
		}
		if req.ToUserID != by {
			return forbiddenf("only the recipient may respond to this request")
		}
		if !req.Status.CanTransitionTo(next) {
			return ErrAlreadyHandled
		}

		now := time.Now().UTC()
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", requestID, models.FriendRequestPending).
			Updates(map[string]interface{}{"status": next, "responded_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyHandled
		}
		req.Status = next
		req.RespondedAt = &now

		if next != models.FriendRequestAccepted {
			return nil
		}
		pair := []models.Friendship{
			{UserID: req.FromUserID, FriendID: req.ToUserID, CreatedAt: now},
			{UserID: req.ToUserID, FriendID: req.FromUserID, CreatedAt: now},
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pair).Error
	})
	if err != nil {
		return nil, err
	}

	eventType := events.FriendRequestRejected
	if next == models.FriendRequestAccepted {
		eventType = events.FriendRequestAccepted
	}
	s.events.Publish(ctx, events.Event{Type: eventType, Recipient: req.FromUserID, Payload: req})
	logger.WithService("friends").Info("friend request answered", "request_id", req.ID, "status", next)
	return &req, nil
}

func (s *FriendRequestServiceImpl) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicProfile, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return s.profiles.PublicProfiles(ctx, ids)
}
