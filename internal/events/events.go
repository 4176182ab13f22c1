package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"teamhub/backend/internal/logger"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	FriendRequestCreated  = "friend_request.created"
	FriendRequestAccepted = "friend_request.accepted"
	FriendRequestRejected = "friend_request.rejected"
	GroupInvitation       = "group.invitation"
	JoinRequestCreated    = "join_request.created"
	JoinRequestAccepted   = "join_request.accepted"
	JoinRequestRejected   = "join_request.rejected"
	MessageCreated        = "message.created"
	TaskAssigned          = "task.assigned"
	TaskDueSoon           = "task.due_soon"
)

// Event is a notification addressed to one identity.
type Event struct {
	Type       string      `json:"type"`
	Recipient  uuid.UUID   `json:"recipient"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher delivers events best-effort. Implementations must not block
// the caller on slow consumers and never report delivery failures.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// ChannelFor is the pub/sub channel carrying a recipient's events.
func ChannelFor(recipient uuid.UUID) string {
	return "teamhub:events:" + recipient.String()
}

const (
	defaultPublishBuffer  = 256
	defaultPublishTimeout = 2 * time.Second
)

// RedisPublisher queues events and publishes them from a background
// goroutine. When the queue is full the event is dropped and logged.
type RedisPublisher struct {
	client  *redis.Client
	timeout time.Duration
	queue   chan Event
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewRedisPublisher starts the publishing goroutine. bufferSize <= 0 uses
// the default queue length.
func NewRedisPublisher(client *redis.Client, bufferSize int) *RedisPublisher {
	if bufferSize <= 0 {
		bufferSize = defaultPublishBuffer
	}
	p := &RedisPublisher{
		client:  client,
		timeout: defaultPublishTimeout,
		queue:   make(chan Event, bufferSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *RedisPublisher) Publish(_ context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}

	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		logger.Warn("event queue full, dropping event", "type", event.Type, "recipient", event.Recipient)
	}
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		p.send(event)
	}
}

func (p *RedisPublisher) send(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.failed.Add(1)
		logger.Warn("failed to encode event", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, ChannelFor(event.Recipient), data).Err(); err != nil {
		p.failed.Add(1)
		logger.Warn("failed to publish event", "type", event.Type, "recipient", event.Recipient, "error", err)
		return
	}
	p.published.Add(1)
}

// Close stops accepting events and waits for the queue to drain.
func (p *RedisPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *RedisPublisher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"queued":    len(p.queue),
		"capacity":  cap(p.queue),
		"published": p.published.Load(),
		"dropped":   p.dropped.Load(),
		"failed":    p.failed.Load(),
	}
}

// Subscribe streams decoded events for one recipient until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, recipient uuid.UUID) (<-chan Event, error) {
	sub := client.Subscribe(ctx, ChannelFor(recipient))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Recorder keeps published events in memory. Used in tests and for local
// runs without Redis.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
