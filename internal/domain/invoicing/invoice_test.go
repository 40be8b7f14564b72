package invoicing

import (
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() InvoiceParams {
	return InvoiceParams{
		InvoiceNumber: "INV-2025-001",
		CustomerName:  "Gulf Supplies",
		CustomerEmail: "ap@gulf.example",
		TaxID:         "100-2345-6789",
		DueDate:       testNow.Add(30 * 24 * time.Hour),
		Items: []LineItemInput{
			{Description: "Widgets", Quantity: dec("10"), UnitPrice: dec("95.50"), TaxRate: dec("5")},
		},
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("creates draft with totals", func(t *testing.T) {
		inv, err := NewInvoice(uuid.New(), validParams())
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, inv.Status)
		assert.Equal(t, valueobject.AED, inv.Currency)
		assert.Equal(t, "955.00", inv.Subtotal.StringFixed(2))
		assert.Equal(t, "47.75", inv.TaxAmount.StringFixed(2))
		assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount)))
		require.Len(t, inv.LineItems, 1)
		assert.Equal(t, inv.ID, inv.LineItems[0].InvoiceID)
		require.Len(t, inv.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeInvoiceCreated, inv.GetDomainEvents()[0].EventType())
	})

	tests := []struct {
		name   string
		mutate func(p *InvoiceParams)
	}{
		{"empty number", func(p *InvoiceParams) { p.InvoiceNumber = " " }},
		{"empty customer", func(p *InvoiceParams) { p.CustomerName = "" }},
		{"bad email", func(p *InvoiceParams) { p.CustomerEmail = "not-an-email" }},
		{"bad tax id", func(p *InvoiceParams) { p.TaxID = "#1" }},
		{"unknown currency", func(p *InvoiceParams) { p.Currency = "ZZQ" }},
		{"no due date", func(p *InvoiceParams) { p.DueDate = time.Time{} }},
		{"no items", func(p *InvoiceParams) { p.Items = nil }},
		{"tax rate out of range", func(p *InvoiceParams) { p.Items[0].TaxRate = dec("150") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)
			_, err := NewInvoice(uuid.New(), params)
			require.Error(t, err)
			assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		})
	}
}

func TestUpdateDraft(t *testing.T) {
	inv, err := NewInvoice(uuid.New(), validParams())
	require.NoError(t, err)

	params := validParams()
	params.Items = append(params.Items, LineItemInput{Description: "Delivery", Quantity: dec("1"), UnitPrice: dec("45"), TaxRate: decimal.Zero})
	require.NoError(t, inv.UpdateDraft(params, testNow))
	assert.Equal(t, "1000.00", inv.Subtotal.StringFixed(2))
	assert.Len(t, inv.LineItems, 2)

	_, err = inv.TransitionTo(StatusSent, DefaultStatusValidator(), "", testNow)
	require.NoError(t, err)

	err = inv.UpdateDraft(validParams(), testNow)
	require.Error(t, err)
	assert.Equal(t, CodeInvoiceNotEditable, shared.AsDomainError(err).Code)
	assert.Equal(t, "1000.00", inv.Subtotal.StringFixed(2), "totals are frozen outside DRAFT")
}

func TestTransitionToSentFinalizesTax(t *testing.T) {
	inv := newDraftInvoice(t, "100.00")
	tr, err := inv.TransitionTo(StatusSent, DefaultStatusValidator(), "issued", testNow)
	require.NoError(t, err)
	assert.Equal(t, Transition{From: StatusDraft, To: StatusSent, AppliedAt: testNow}, tr)
	require.NotNil(t, inv.SentAt)
	require.NotNil(t, inv.TaxFinalizedAt)
}

func TestFinalizeTax(t *testing.T) {
	inv := newDraftInvoice(t, "100.00")
	require.NoError(t, inv.FinalizeTax(testNow))
	assert.Equal(t, CodeTaxAlreadyFinalized, shared.AsDomainError(inv.FinalizeTax(testNow)).Code)
	assert.Equal(t, CodeTaxAlreadyFinalized, shared.AsDomainError(inv.UpdateDraft(validParams(), testNow)).Code)
}

func TestOverdueHelpers(t *testing.T) {
	inv := newSentInvoice(t, "100.00")
	assert.False(t, inv.IsOverdue(testNow))
	assert.Equal(t, 0, inv.DaysOverdue(testNow))

	later := inv.DueDate.Add(3*24*time.Hour + time.Hour)
	assert.True(t, inv.IsOverdue(later))
	assert.Equal(t, 3, inv.DaysOverdue(later))

	inv.Status = StatusPaid
	assert.False(t, inv.IsOverdue(later))
}

func TestVersionMovesOncePerLoad(t *testing.T) {
	inv := newSentInvoice(t, "100.00")
	inv.MarkLoaded()
	loaded := inv.Version

	r := NewReconciler(nil, ReversalByDueDate)
	_, err := r.ApplyPayment(inv, newPayment(t, inv, "100.00"), testNow)
	require.NoError(t, err)

	assert.Equal(t, loaded+1, inv.Version, "payment and auto-transition share one version step")
	assert.Equal(t, loaded, inv.LoadedVersion())
}
