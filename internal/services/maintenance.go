package services

import (
	"context"
	"time"

	"teamhub/backend/internal/events"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/models"

	"gorm.io/gorm"
)

// TaskInvalidator is notified when a background job rewrites a task row.
type TaskInvalidator interface {
	InvalidateTask(task *models.Task)
}

// MaintenanceService holds the queries run by scheduled jobs.
type MaintenanceService struct {
	db          *gorm.DB
	events      events.Publisher
	invalidator TaskInvalidator
	now         func() time.Time
}

func NewMaintenanceService(db *gorm.DB, publisher events.Publisher, invalidator TaskInvalidator) *MaintenanceService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MaintenanceService{db: db, events: publisher, invalidator: invalidator, now: time.Now}
}

// SendDueReminders notifies owners of open tasks due within window. Each
// task is reminded once per due date.
func (s *MaintenanceService) SendDueReminders(ctx context.Context, window time.Duration) (int, error) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	err := db.Where("due_date IS NOT NULL AND due_date > ? AND due_date <= ?", now, now.Add(window)).
		Where("status <> ? AND reminder_sent_at IS NULL", models.TaskCompleted).
		Order("due_date ASC").
		Find(&tasks).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range tasks {
		task := &tasks[i]
		res := db.Model(&models.Task{}).
			Where("id = ? AND reminder_sent_at IS NULL", task.ID).
			Update("reminder_sent_at", now)
		if res.Error != nil {
			return sent, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		s.events.Publish(ctx, events.Event{Type: events.TaskDueSoon, Recipient: task.UserID, Payload: task})
		if s.invalidator != nil {
			s.invalidator.InvalidateTask(task)
		}
		sent++
	}

	if sent > 0 {
		logger.WithService("maintenance").Info("task reminders sent", "count", sent)
	}
	return sent, nil
}

// PurgeSettledRequests deletes answered friend and join requests older
// than retention. Pending requests are never removed.
func (s *MaintenanceService) PurgeSettledRequests(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)
	var removed int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("status <> ? AND responded_at IS NOT NULL AND responded_at < ?", models.FriendRequestPending, cutoff).
			Delete(&models.FriendRequest{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("status = ? AND responded_at IS NOT NULL AND responded_at < ?", models.JoinRequestRejected, cutoff).
			Delete(&models.JoinRequest{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.WithService("maintenance").Info("settled requests purged", "count", removed, "cutoff", cutoff)
	return removed, nil
}
