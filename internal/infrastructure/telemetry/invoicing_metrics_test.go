package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*telemetry.InvoicingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewInvoicingMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func intSum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewInvoicingMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewInvoicingMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestInvoicingMetrics_HandleEvents(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	inv, err := invoicing.NewInvoice(uuid.New(), invoicing.InvoiceParams{
		InvoiceNumber: "INV-0001",
		CustomerName:  "Acme",
		Currency:      "EUR",
		DueDate:       time.Now().AddDate(0, 0, 30),
		Items: []invoicing.LineItemInput{
			{Description: "Service", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.Zero},
		},
	})
	require.NoError(t, err)
	payment, err := invoicing.NewPayment(inv, invoicing.PaymentParams{
		Amount: decimal.NewFromInt(40),
		Method: invoicing.PaymentMethodCard,
	}, time.Now())
	require.NoError(t, err)

	require.NoError(t, m.Handle(ctx, invoicing.NewPaymentAppliedEvent(inv, payment, invoicing.ReconciliationState{})))
	require.NoError(t, m.Handle(ctx, invoicing.NewPaymentAppliedEvent(inv, payment, invoicing.ReconciliationState{})))
	require.NoError(t, m.Handle(ctx, invoicing.NewInvoiceStatusChangedEvent(inv, invoicing.StatusDraft, invoicing.StatusSent, "", false)))
	require.NoError(t, m.Handle(ctx, invoicing.NewReminderQueuedEvent(inv.TenantID, inv.ID, inv.InvoiceNumber, "invoice_reminder", "a@b.test")))
	require.NoError(t, m.Handle(ctx, invoicing.NewInvoiceCreatedEvent(inv)))

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), intSum(t, metrics["invoicing_payments_applied_total"]))
	assert.Equal(t, int64(1), intSum(t, metrics["invoicing_status_transitions_total"]))
	assert.Equal(t, int64(1), intSum(t, metrics["invoicing_reminders_queued_total"]))

	amount, ok := metrics["invoicing_payment_amount_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, amount.DataPoints, 1)
	assert.InDelta(t, 80.0, amount.DataPoints[0].Value, 0.0001)
	currency, _ := amount.DataPoints[0].Attributes.Value(telemetry.AttrCurrency)
	assert.Equal(t, "EUR", currency.AsString())

	assert.NotContains(t, metrics, "invoicing_invoices_paid_total")
}

func TestInvoicingMetrics_BulkOperationCompleted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.BulkOperationCompleted(ctx, "mark_paid", 3, 1, 250*time.Millisecond)
	m.BulkOperationCompleted(ctx, "export", 0, 2, time.Second)

	metrics := collect(t, reader)
	items := metrics["invoicing_bulk_items_total"].Data.(metricdata.Sum[int64])
	byOutcome := map[string]int64{}
	for _, dp := range items.DataPoints {
		outcome, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		byOutcome[outcome.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"succeeded": 3, "failed": 3}, byOutcome)

	hist, ok := metrics["invoicing_bulk_operation_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestInvoicingMetrics_EventTypes(t *testing.T) {
	m, _ := newTestMetrics(t)
	assert.ElementsMatch(t, []string{
		invoicing.EventTypePaymentApplied,
		invoicing.EventTypePaymentReversed,
		invoicing.EventTypeInvoicePaid,
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeReminderQueued,
	}, m.EventTypes())
}
