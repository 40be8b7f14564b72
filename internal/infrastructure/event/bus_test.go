package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	types []string
	err   error
	panic bool

	mu       sync.Mutex
	received []shared.DomainEvent
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	h.received = append(h.received, e)
	h.mu.Unlock()
	if h.panic {
		panic("handler exploded")
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func reminderEvent() shared.DomainEvent {
	return invoicing.NewReminderQueuedEvent(uuid.New(), uuid.New(), "INV-1", "invoice_reminder", "ap@example.com")
}

func deletedEvent() shared.DomainEvent {
	return &invoicing.InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(invoicing.EventTypeInvoiceDeleted, invoicing.AggregateTypeInvoice, uuid.New(), uuid.New()),
	}
}

func startedBus(t *testing.T, log *zap.Logger) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(log)
	require.NoError(t, bus.Start(context.Background()))
	return bus
}

func TestPublish_RoutesByType(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	reminders := &recordingHandler{}
	deletions := &recordingHandler{}
	bus.Subscribe(reminders, invoicing.EventTypeReminderQueued)
	bus.Subscribe(deletions, invoicing.EventTypeInvoiceDeleted)

	require.NoError(t, bus.Publish(context.Background(), reminderEvent(), reminderEvent(), deletedEvent()))

	assert.Equal(t, 2, reminders.count())
	assert.Equal(t, 1, deletions.count())
}

func TestSubscribe_UsesDeclaredTypes(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	h := &recordingHandler{types: []string{invoicing.EventTypeInvoiceDeleted}}
	bus.Subscribe(h)

	_ = bus.Publish(context.Background(), reminderEvent(), deletedEvent())
	assert.Equal(t, 1, h.count())
}

func TestSubscribe_WildcardReceivesEverything(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	h := &recordingHandler{}
	bus.Subscribe(h)

	_ = bus.Publish(context.Background(), reminderEvent(), deletedEvent())
	assert.Equal(t, 2, h.count())
}

func TestPublish_FailingHandlerDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := startedBus(t, zap.New(core))

	failing := &recordingHandler{err: errors.New("metrics backend down")}
	panicking := &recordingHandler{panic: true}
	healthy := &recordingHandler{}
	for _, h := range []*recordingHandler{failing, panicking, healthy} {
		bus.Subscribe(h, invoicing.EventTypeReminderQueued)
	}

	require.NoError(t, bus.Publish(context.Background(), reminderEvent()))

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, panicking.count())
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("event handler failed").Len())
}

func TestPublish_DroppedWhenStopped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := NewInMemoryEventBus(zap.New(core))
	h := &recordingHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(context.Background(), reminderEvent()))
	assert.Zero(t, h.count())
	assert.Equal(t, 1, logs.FilterMessage("event bus not running, dropping event").Len())

	require.NoError(t, bus.Start(context.Background()))
	_ = bus.Publish(context.Background(), reminderEvent())
	assert.Equal(t, 1, h.count())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))
	_ = bus.Publish(context.Background(), reminderEvent())
	assert.Equal(t, 1, h.count())
}

func TestUnsubscribe(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	h := &recordingHandler{}
	other := &recordingHandler{}
	bus.Subscribe(h, invoicing.EventTypeReminderQueued, invoicing.EventTypeInvoiceDeleted)
	bus.Subscribe(other, invoicing.EventTypeReminderQueued)

	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), reminderEvent(), deletedEvent())

	assert.Zero(t, h.count())
	assert.Equal(t, 1, other.count())
	_, stillRegistered := bus.byType[invoicing.EventTypeInvoiceDeleted]
	assert.False(t, stillRegistered)
}

func TestStop_HonoursContext(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	bus.inflight.Add(1)
	defer bus.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
