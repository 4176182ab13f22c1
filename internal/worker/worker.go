package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"

	"teamhub/backend/internal/logger"
)

type JobType string

const (
	JobTypeTaskReminder JobType = "task_reminder"
	JobTypeCleanup      JobType = "cleanup"
)

const (
	DefaultQueue     = "default"
	ReminderQueue    = "reminders"
	MaintenanceQueue = "maintenance"

	scheduledSet = "jobs:scheduled"
	deadQueue    = "jobs:dead"
)

const (
	defaultMaxTries   = 3
	defaultJobTimeout = 30 * time.Second
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Queue     string                 `json:"queue"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

// Registrar accepts handlers for job types.
type Registrar interface {
	RegisterHandler(jobType JobType, handler JobHandler)
}

// Dispatcher hands a job off for execution, either to a queue or inline.
type Dispatcher interface {
	Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error
}

var ErrNoHandler = errors.New("no handler registered")

func newJob(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   payload,
		MaxTries:  defaultMaxTries,
		CreatedAt: now,
		ProcessAt: processAt,
	}
}

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	retryBase    time.Duration
	log          *slog.Logger
	mu           sync.RWMutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	PollInterval time.Duration
	Queues       []string
	// RetryBase is the delay before the first retry; later retries double it.
	RetryBase time.Duration
}

func NewWorker(config WorkerConfig) *Worker {
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	retryBase := config.RetryBase
	if retryBase <= 0 {
		retryBase = time.Minute
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		pollInterval: poll,
		retryBase:    retryBase,
		log:          logger.WithService("worker"),
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches concurrency consumers plus one goroutine that moves due
// scheduled jobs back onto their queues.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info("starting worker", "concurrency", concurrency, "queues", w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx)
	}

	w.wg.Add(1)
	go w.schedulerLoop(ctx)
}

func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.log.Info("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.processNextJob(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("error processing job", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) schedulerLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.promoteDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
				w.log.Error("failed to promote scheduled jobs", "error", err)
			}
		}
	}
}

// promoteDue moves scheduled jobs whose time has come onto their queue. ZRem
// decides ownership so concurrent workers never promote the same job twice.
func (w *Worker) promoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := w.client.ZRangeByScore(ctx, scheduledSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}

	moved := 0
	for _, data := range members {
		removed, err := w.client.ZRem(ctx, scheduledSet, data).Result()
		if err != nil {
			return moved, fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			w.log.Error("dropping malformed scheduled job", "error", err)
			continue
		}
		if err := w.client.RPush(ctx, job.Queue, data).Err(); err != nil {
			return moved, fmt.Errorf("failed to enqueue scheduled job: %w", err)
		}
		moved++
	}
	return moved, nil
}

func (w *Worker) processNextJob(ctx context.Context) error {
	result, err := w.client.BLPop(ctx, w.pollInterval, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	if time.Now().Before(job.ProcessAt) {
		return schedule(ctx, w.client, &job)
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		w.log.Error("no handler for job", "job_id", job.ID, "type", job.Type)
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("%w for job type %s", ErrNoHandler, job.Type))
	}

	log := w.log.With("job_id", job.ID, "type", job.Type)
	log.Debug("processing job")

	jobCtx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		log.Debug("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		log.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
		return w.retryJob(ctx, job)
	}

	log.Error("job failed permanently", "attempts", job.Attempts, "error", err)
	return w.moveToDeadQueue(ctx, job, err)
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = time.Now().Add(delay)
	return schedule(ctx, w.client, job)
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.client.RPush(ctx, deadQueue, deadJobData).Err()
}

func schedule(ctx context.Context, client *redis.Client, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return client.ZAdd(ctx, scheduledSet, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

// JobQueue is the producer side of Worker.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	job := newJob(queue, jobType, payload, processAt)
	if processAt.After(time.Now()) {
		return schedule(ctx, q.client, job)
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) DeadLetterSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, deadQueue).Result()
}

// InlineDispatcher runs handlers synchronously. It stands in for the Redis
// queue when Redis is not configured.
type InlineDispatcher struct {
	mu       sync.RWMutex
	handlers map[JobType]JobHandler
	log      *slog.Logger
}

func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{
		handlers: make(map[JobType]JobHandler),
		log:      logger.WithService("worker"),
	}
}

func (d *InlineDispatcher) RegisterHandler(jobType JobType, handler JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = handler
}

func (d *InlineDispatcher) Enqueue(ctx context.Context, queue string, jobType JobType, payload map[string]interface{}) error {
	d.mu.RLock()
	handler, ok := d.handlers[jobType]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for job type %s", ErrNoHandler, jobType)
	}

	job := newJob(queue, jobType, payload, time.Now())
	job.Attempts = 1

	jobCtx, cancel := context.WithTimeout(ctx, defaultJobTimeout)
	defer cancel()
	if err := handler(jobCtx, job); err != nil {
		d.log.Error("inline job failed", "job_id", job.ID, "type", jobType, "error", err)
		return err
	}
	return nil
}
