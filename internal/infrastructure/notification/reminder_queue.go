// Package notification hands reminder intents to the delivery workers.
// Delivery itself (email, SMS) happens outside this service.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list holding pending reminders
const DefaultQueueKey = "invoicing:reminders"

// ErrQueueEmpty is returned by Dequeue when nothing arrived before the timeout
var ErrQueueEmpty = errors.New("reminder queue is empty")

// RedisReminderQueue is a FIFO on a Redis list: producers LPUSH, workers BRPOP.
type RedisReminderQueue struct {
	client redis.UniversalClient
	key    string
}

func NewRedisReminderQueue(client redis.UniversalClient, key string) *RedisReminderQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisReminderQueue{client: client, key: key}
}

func (q *RedisReminderQueue) Enqueue(ctx context.Context, intent appinvoicing.ReminderIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push reminder to %s: %w", q.key, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest reminder
func (q *RedisReminderQueue) Dequeue(ctx context.Context, timeout time.Duration) (appinvoicing.ReminderIntent, error) {
	var intent appinvoicing.ReminderIntent
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return intent, ErrQueueEmpty
	}
	if err != nil {
		return intent, fmt.Errorf("pop reminder from %s: %w", q.key, err)
	}
	// BRPOP replies [key, value]
	if err := json.Unmarshal([]byte(res[1]), &intent); err != nil {
		return intent, fmt.Errorf("decode reminder: %w", err)
	}
	return intent, nil
}

func (q *RedisReminderQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", q.key, err)
	}
	return n, nil
}

// InMemoryReminderQueue keeps reminders in process; used when Redis is disabled
type InMemoryReminderQueue struct {
	mu      sync.Mutex
	pending []appinvoicing.ReminderIntent
	limit   int
}

// NewInMemoryReminderQueue holds at most limit reminders; zero means unbounded
func NewInMemoryReminderQueue(limit int) *InMemoryReminderQueue {
	return &InMemoryReminderQueue{limit: limit}
}

func (q *InMemoryReminderQueue) Enqueue(_ context.Context, intent appinvoicing.ReminderIntent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.pending) >= q.limit {
		return fmt.Errorf("reminder queue full (%d pending)", len(q.pending))
	}
	q.pending = append(q.pending, intent)
	return nil
}

// Drain removes and returns all pending reminders in arrival order
func (q *InMemoryReminderQueue) Drain() []appinvoicing.ReminderIntent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *InMemoryReminderQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

var (
	_ appinvoicing.Notifier = (*RedisReminderQueue)(nil)
	_ appinvoicing.Notifier = (*InMemoryReminderQueue)(nil)
)
