package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intent(number string) appinvoicing.ReminderIntent {
	return appinvoicing.ReminderIntent{
		TenantID:      uuid.New(),
		InvoiceID:     uuid.New(),
		InvoiceNumber: number,
		TemplateID:    appinvoicing.DefaultReminderTemplate,
		Recipient:     "ap@example.com",
		QueuedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryReminderQueue_FIFO(t *testing.T) {
	q := NewInMemoryReminderQueue(0)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, intent("INV-1")))
	require.NoError(t, q.Enqueue(ctx, intent("INV-2")))
	n, _ := q.Len(ctx)
	assert.Equal(t, int64(2), n)

	drained := q.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "INV-1", drained[0].InvoiceNumber)
	assert.Equal(t, "INV-2", drained[1].InvoiceNumber)
	assert.Empty(t, q.Drain())
}

func TestInMemoryReminderQueue_Limit(t *testing.T) {
	q := NewInMemoryReminderQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, intent("INV-1")))
	err := q.Enqueue(ctx, intent("INV-2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestInMemoryReminderQueue_Concurrent(t *testing.T) {
	q := NewInMemoryReminderQueue(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(context.Background(), intent("INV"))
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 32)
}

func TestRedisReminderQueue_Defaults(t *testing.T) {
	q := NewRedisReminderQueue(redis.NewClient(&redis.Options{}), "")
	assert.Equal(t, DefaultQueueKey, q.key)
}

func TestRedisReminderQueue_WrapsConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisReminderQueue(client, "test:reminders")
	ctx := context.Background()

	err := q.Enqueue(ctx, intent("INV-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push reminder to test:reminders")

	_, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQueueEmpty)

	_, err = q.Len(ctx)
	assert.ErrorContains(t, err, "length of test:reminders")
}
