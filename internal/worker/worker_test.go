package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub/backend/internal/config"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestJobQueue_Enqueue(t *testing.T) {
	client, mr := setupRedis(t)
	q := NewJobQueue(client)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, ReminderQueue, JobTypeTaskReminder, map[string]interface{}{"source": "test"}))

	size, err := q.GetQueueSize(ctx, ReminderQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	raw, err := mr.Lpop(ReminderQueue)
	require.NoError(t, err)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, JobTypeTaskReminder, job.Type)
	assert.Equal(t, ReminderQueue, job.Queue)
	assert.Equal(t, defaultMaxTries, job.MaxTries)
	assert.NotEmpty(t, job.ID)
}

func TestJobQueue_EnqueueAt_FutureGoesToSchedule(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)
	ctx := context.Background()

	require.NoError(t, q.EnqueueAt(ctx, MaintenanceQueue, JobTypeCleanup, nil, time.Now().Add(time.Hour)))

	size, err := q.GetQueueSize(ctx, MaintenanceQueue)
	require.NoError(t, err)
	assert.Zero(t, size)

	scheduled, err := client.ZCard(ctx, scheduledSet).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), scheduled)
}

func TestWorker_PromoteDue(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)
	w := NewWorker(WorkerConfig{RedisClient: client, Queues: []string{MaintenanceQueue}})
	ctx := context.Background()

	require.NoError(t, q.EnqueueAt(ctx, MaintenanceQueue, JobTypeCleanup, nil, time.Now().Add(time.Minute)))
	require.NoError(t, q.EnqueueAt(ctx, MaintenanceQueue, JobTypeCleanup, nil, time.Now().Add(time.Hour)))

	moved, err := w.promoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved)

	moved, err = w.promoteDue(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	size, err := q.GetQueueSize(ctx, MaintenanceQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestWorker_ProcessesJob(t *testing.T) {
	client, _ := setupRedis(t)
	q := NewJobQueue(client)
	w := NewWorker(WorkerConfig{RedisClient: client, Queues: []string{ReminderQueue}, PollInterval: 100 * time.Millisecond})

	done := make(chan string, 1)
	w.RegisterHandler(JobTypeTaskReminder, func(ctx context.Context, job *Job) error {
		done <- job.Payload["task"].(string)
		return nil
	})

	w.Start(context.Background(), 2)
	defer w.Stop()

	require.NoError(t, q.Enqueue(context.Background(), ReminderQueue, JobTypeTaskReminder, map[string]interface{}{"task": "abc"}))

	select {
	case got := <-done:
		assert.Equal(t, "abc", got)
	case <-time.After(3 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestWorker_FailedJobIsRescheduledThenDead(t *testing.T) {
	client, _ := setupRedis(t)
	w := NewWorker(WorkerConfig{RedisClient: client, Queues: []string{DefaultQueue}})
	ctx := context.Background()

	var calls int32
	w.RegisterHandler(JobTypeCleanup, func(context.Context, *Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})

	job := newJob(DefaultQueue, JobTypeCleanup, nil, time.Now())
	job.MaxTries = 2

	require.NoError(t, w.executeJob(ctx, job))
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.ProcessAt.After(time.Now()))

	scheduled, err := client.ZCard(ctx, scheduledSet).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), scheduled)

	require.NoError(t, w.executeJob(ctx, job))
	dead, err := NewJobQueue(client).DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWorker_UnknownJobTypeGoesToDeadQueue(t *testing.T) {
	client, _ := setupRedis(t)
	w := NewWorker(WorkerConfig{RedisClient: client})
	ctx := context.Background()

	require.NoError(t, w.executeJob(ctx, newJob(DefaultQueue, "unknown", nil, time.Now())))

	dead, err := NewJobQueue(client).DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestInlineDispatcher(t *testing.T) {
	d := NewInlineDispatcher()
	ctx := context.Background()

	err := d.Enqueue(ctx, DefaultQueue, JobTypeCleanup, nil)
	assert.ErrorIs(t, err, ErrNoHandler)

	ran := false
	d.RegisterHandler(JobTypeCleanup, func(context.Context, *Job) error {
		ran = true
		return nil
	})
	require.NoError(t, d.Enqueue(ctx, DefaultQueue, JobTypeCleanup, nil))
	assert.True(t, ran)
}

type fakeRunner struct {
	window    time.Duration
	retention time.Duration
	err       error
}

func (f *fakeRunner) SendDueReminders(_ context.Context, window time.Duration) (int, error) {
	f.window = window
	return 2, f.err
}

func (f *fakeRunner) PurgeSettledRequests(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 5, f.err
}

func TestRegisterMaintenanceJobs(t *testing.T) {
	d := NewInlineDispatcher()
	runner := &fakeRunner{}
	cfg := config.JobsConfig{ReminderWindow: 6 * time.Hour, RequestRetention: 48 * time.Hour}
	RegisterMaintenanceJobs(d, runner, cfg)

	ctx := context.Background()
	require.NoError(t, d.Enqueue(ctx, ReminderQueue, JobTypeTaskReminder, nil))
	require.NoError(t, d.Enqueue(ctx, MaintenanceQueue, JobTypeCleanup, nil))

	assert.Equal(t, 6*time.Hour, runner.window)
	assert.Equal(t, 48*time.Hour, runner.retention)

	runner.err = errors.New("db down")
	assert.Error(t, d.Enqueue(ctx, ReminderQueue, JobTypeTaskReminder, nil))
}
