package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Metric attribute keys
var (
	AttrCurrency   = attribute.Key("currency")
	AttrMethod     = attribute.Key("payment_method")
	AttrFromStatus = attribute.Key("from_status")
	AttrToStatus   = attribute.Key("to_status")
	AttrSystem     = attribute.Key("system")
	AttrBulkAction = attribute.Key("bulk_action")
	AttrOutcome    = attribute.Key("outcome")
)

// InvoicingMetrics records payment, status and bulk-operation metrics.
// It subscribes to the domain event bus and observes the bulk processor.
type InvoicingMetrics struct {
	paymentsApplied   metric.Int64Counter
	paymentAmount     metric.Float64Counter
	paymentsReversed  metric.Int64Counter
	invoicesPaid      metric.Int64Counter
	statusTransitions metric.Int64Counter
	remindersQueued   metric.Int64Counter
	bulkItems         metric.Int64Counter
	bulkDuration      metric.Float64Histogram
}

// NewInvoicingMetrics creates the instruments on meter
func NewInvoicingMetrics(meter metric.Meter) (*InvoicingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &InvoicingMetrics{}
	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	m.paymentsApplied, err = meter.Int64Counter("invoicing_payments_applied_total",
		metric.WithDescription("Payments recorded against invoices"), metric.WithUnit("{payments}"))
	record(err)
	m.paymentAmount, err = meter.Float64Counter("invoicing_payment_amount_total",
		metric.WithDescription("Sum of recorded payment amounts in major currency units"))
	record(err)
	m.paymentsReversed, err = meter.Int64Counter("invoicing_payments_reversed_total",
		metric.WithDescription("Payments reversed"), metric.WithUnit("{payments}"))
	record(err)
	m.invoicesPaid, err = meter.Int64Counter("invoicing_invoices_paid_total",
		metric.WithDescription("Invoices that reached PAID"), metric.WithUnit("{invoices}"))
	record(err)
	m.statusTransitions, err = meter.Int64Counter("invoicing_status_transitions_total",
		metric.WithDescription("Invoice status transitions"), metric.WithUnit("{transitions}"))
	record(err)
	m.remindersQueued, err = meter.Int64Counter("invoicing_reminders_queued_total",
		metric.WithDescription("Payment reminders handed to the notifier"), metric.WithUnit("{reminders}"))
	record(err)
	m.bulkItems, err = meter.Int64Counter("invoicing_bulk_items_total",
		metric.WithDescription("Bulk operation items by outcome"), metric.WithUnit("{items}"))
	record(err)
	m.bulkDuration, err = meter.Float64Histogram("invoicing_bulk_operation_duration_seconds",
		metric.WithDescription("Bulk operation wall time"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...))
	record(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// EventTypes lists the domain events this handler consumes
func (m *InvoicingMetrics) EventTypes() []string {
	return []string{
		invoicing.EventTypePaymentApplied,
		invoicing.EventTypePaymentReversed,
		invoicing.EventTypeInvoicePaid,
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeReminderQueued,
	}
}

// Handle records the metric matching event
func (m *InvoicingMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.PaymentAppliedEvent:
		currency := AttrCurrency.String(e.Currency)
		m.paymentsApplied.Add(ctx, 1, metric.WithAttributes(currency, AttrMethod.String(string(e.Method))))
		m.paymentAmount.Add(ctx, e.Amount.InexactFloat64(), metric.WithAttributes(currency))
	case *invoicing.PaymentReversedEvent:
		m.paymentsReversed.Add(ctx, 1)
	case *invoicing.InvoicePaidEvent:
		m.invoicesPaid.Add(ctx, 1, metric.WithAttributes(AttrCurrency.String(e.Currency)))
	case *invoicing.InvoiceStatusChangedEvent:
		m.statusTransitions.Add(ctx, 1, metric.WithAttributes(
			AttrFromStatus.String(string(e.From)),
			AttrToStatus.String(string(e.To)),
			AttrSystem.Bool(e.System),
		))
	case *invoicing.ReminderQueuedEvent:
		m.remindersQueued.Add(ctx, 1)
	}
	return nil
}

// BulkOperationCompleted records the outcome of one bulk operation
func (m *InvoicingMetrics) BulkOperationCompleted(ctx context.Context, action string, succeeded, failed int, elapsed time.Duration) {
	actionAttr := AttrBulkAction.String(action)
	if succeeded > 0 {
		m.bulkItems.Add(ctx, int64(succeeded), metric.WithAttributes(actionAttr, AttrOutcome.String("succeeded")))
	}
	if failed > 0 {
		m.bulkItems.Add(ctx, int64(failed), metric.WithAttributes(actionAttr, AttrOutcome.String("failed")))
	}
	m.bulkDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(actionAttr))
}

var _ shared.EventHandler = (*InvoicingMetrics)(nil)
