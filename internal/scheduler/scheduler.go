package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"teamhub/backend/internal/config"
	"teamhub/backend/internal/logger"
	"teamhub/backend/internal/worker"
)

// Scheduler turns cron ticks into jobs handed to a dispatcher.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher worker.Dispatcher
	timeout    time.Duration
}

// NewScheduler registers the maintenance schedules from cfg. Schedules use
// the standard five-field cron syntax or descriptors such as "@every 15m".
func NewScheduler(dispatcher worker.Dispatcher, cfg config.JobsConfig) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		dispatcher: dispatcher,
		timeout:    time.Minute,
	}

	if err := s.register(cfg.ReminderSchedule, worker.ReminderQueue, worker.JobTypeTaskReminder); err != nil {
		return nil, err
	}
	if err := s.register(cfg.CleanupSchedule, worker.MaintenanceQueue, worker.JobTypeCleanup); err != nil {
		return nil, err
	}

	logger.Info("cron jobs registered", "count", len(s.cron.Entries()))
	return s, nil
}

func (s *Scheduler) register(spec, queue string, jobType worker.JobType) error {
	if spec == "" {
		logger.Warn("cron job disabled, empty schedule", "job", jobType)
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.dispatch(queue, jobType) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, jobType, err)
	}
	return nil
}

func (s *Scheduler) dispatch(queue string, jobType worker.JobType) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.dispatcher.Enqueue(ctx, queue, jobType, map[string]interface{}{
		"scheduled_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		logger.Error("failed to dispatch scheduled job", "job", jobType, "error", err)
	}
}

func (s *Scheduler) Start() {
	logger.Info("starting cron scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	logger.Info("stopping cron scheduler")
	<-s.cron.Stop().Done()
	logger.Info("cron scheduler stopped")
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
