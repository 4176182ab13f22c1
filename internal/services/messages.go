package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
	maxMessageLength         = 4000
)

type MessageService interface {
	Send(ctx context.Context, from, to uuid.UUID, content string) (*models.Message, error)
	Conversation(ctx context.Context, a, b uuid.UUID, limit int) ([]models.Message, error)
}

type MessageServiceImpl struct {
	db      *gorm.DB
	friends FriendRequestService
	events  events.Publisher
}

func NewMessageService(db *gorm.DB, friends FriendRequestService, publisher events.Publisher) *MessageServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MessageServiceImpl{db: db, friends: friends, events: publisher}
}

func (s *MessageServiceImpl) requireFriends(ctx context.Context, a, b uuid.UUID) error {
	ok, err := s.friends.AreFriends(ctx, a, b)
	if err != nil {
		return err
	}
	if !ok {
		return forbiddenf("messages can only be exchanged between friends")
	}
	return nil
}

func (s *MessageServiceImpl) Send(ctx context.Context, from, to uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationErrorf("content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, validationErrorf("content must be at most %d characters", maxMessageLength)
	}

	db := s.db.WithContext(ctx)
	ok, err := userExists(db, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundf("user %s not found", to)
	}
	if err := s.requireFriends(ctx, from, to); err != nil {
		return nil, err
	}

	msg := models.Message{FromUserID: from, ToUserID: to, Content: content}
	if err := db.Create(&msg).Error; err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.Event{Type: events.MessageCreated, Recipient: to, Payload: msg})
	return &msg, nil
}

// Conversation returns the latest messages between a and b, oldest first.
func (s *MessageServiceImpl) Conversation(ctx context.Context, a, b uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	if limit > maxConversationLimit {
		limit = maxConversationLimit
	}
	if err := s.requireFriends(ctx, a, b); err != nil {
		return nil, err
	}

	msgs := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
