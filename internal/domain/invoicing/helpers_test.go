package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newDraftInvoice(t *testing.T, total string) *Invoice {
	t.Helper()
	inv, err := NewInvoice(uuid.New(), InvoiceParams{
		InvoiceNumber: "INV-0001",
		CustomerName:  "Acme Trading LLC",
		CustomerEmail: "billing@acme.example",
		Currency:      "AED",
		DueDate:       testNow.Add(14 * 24 * time.Hour),
		Items: []LineItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: dec(total), TaxRate: decimal.Zero},
		},
	})
	require.NoError(t, err)
	inv.CreatedAt = testNow
	return inv
}

func newSentInvoice(t *testing.T, total string) *Invoice {
	t.Helper()
	inv := newDraftInvoice(t, total)
	_, err := inv.TransitionTo(StatusSent, DefaultStatusValidator(), "", testNow)
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func newPayment(t *testing.T, inv *Invoice, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(inv, PaymentParams{
		Amount:   dec(amount),
		Method:   PaymentMethodBankTransfer,
		Verified: true,
	}, testNow)
	require.NoError(t, err)
	return p
}
