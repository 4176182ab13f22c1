package worker

import (
	"context"
	"time"

	"teamhub/backend/internal/config"
	"teamhub/backend/internal/logger"
)

// MaintenanceRunner is the work behind the periodic jobs.
type MaintenanceRunner interface {
	SendDueReminders(ctx context.Context, window time.Duration) (int, error)
	PurgeSettledRequests(ctx context.Context, retention time.Duration) (int64, error)
}

func RegisterMaintenanceJobs(r Registrar, runner MaintenanceRunner, cfg config.JobsConfig) {
	log := logger.WithService("maintenance")

	r.RegisterHandler(JobTypeTaskReminder, func(ctx context.Context, job *Job) error {
		sent, err := runner.SendDueReminders(ctx, cfg.ReminderWindow)
		if err != nil {
			return err
		}
		if sent > 0 {
			log.Info("sent task reminders", "count", sent, "job_id", job.ID)
		}
		return nil
	})

	r.RegisterHandler(JobTypeCleanup, func(ctx context.Context, job *Job) error {
		purged, err := runner.PurgeSettledRequests(ctx, cfg.RequestRetention)
		if err != nil {
			return err
		}
		log.Info("purged settled requests", "count", purged, "job_id", job.ID)
		return nil
	})
}
