package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCash,
		PaymentMethodCheque, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is money received against an invoice. It belongs to the invoice
// aggregate but is addressable by its own ID. After creation only the
// verification flag and the reversal stamp may change.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	Reference      string          `json:"reference"`
	PaymentDate    time.Time       `json:"payment_date"`
	Verified       bool            `json:"verified"`
	VerifiedAt     *time.Time      `json:"verified_at,omitempty"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
	RecordedBy     *uuid.UUID      `json:"recorded_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentParams carries the caller-supplied fields of a new payment
type PaymentParams struct {
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
	PaymentDate time.Time
	Verified    bool
	RecordedBy  *uuid.UUID
}

// NewPayment creates a payment for the given invoice
func NewPayment(inv *Invoice, params PaymentParams, now time.Time) (*Payment, error) {
	if !params.Amount.IsPositive() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "payment amount must be positive")
	}
	scale := inv.Currency.MinorUnits()
	if !params.Amount.Equal(params.Amount.Round(scale)) {
		return nil, shared.NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("payment amount has more than %d decimal places", scale))
	}
	if params.Method == "" {
		params.Method = PaymentMethodOther
	}
	if !params.Method.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidPaymentMethod,
			fmt.Sprintf("unknown payment method %q", params.Method))
	}
	if len(params.Reference) > 100 {
		return nil, shared.NewValidationError(CodeInvalidInvoice, "payment reference cannot exceed 100 characters")
	}
	paymentDate := params.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	p := &Payment{
		ID:          uuid.New(),
		TenantID:    inv.TenantID,
		InvoiceID:   inv.ID,
		Amount:      params.Amount,
		Method:      params.Method,
		Reference:   strings.TrimSpace(params.Reference),
		PaymentDate: paymentDate,
		Verified:    params.Verified,
		RecordedBy:  params.RecordedBy,
		CreatedAt:   now,
	}
	if p.Verified {
		p.VerifiedAt = &now
	}
	return p, nil
}

// IsReversed returns true once the payment has been reversed
func (p *Payment) IsReversed() bool {
	return p.ReversedAt != nil
}

// CountsTowardsPaid returns true if the payment contributes to totalPaid
func (p *Payment) CountsTowardsPaid() bool {
	return p.Verified && !p.IsReversed()
}

func (p *Payment) markVerified(now time.Time) {
	p.Verified = true
	p.VerifiedAt = &now
}

func (p *Payment) markReversed(reason string, now time.Time) {
	p.ReversedAt = &now
	p.ReversalReason = reason
}
