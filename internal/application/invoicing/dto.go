package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID          `json:"id"`
	TenantID        uuid.UUID          `json:"tenant_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	TaxID           string             `json:"tax_id,omitempty"`
	Currency        string             `json:"currency"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	TaxAmount       decimal.Decimal    `json:"tax_amount"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	Outstanding     decimal.Decimal    `json:"outstanding_amount"`
	FormattedTotal  string             `json:"formatted_total"`
	Status          string             `json:"status"`
	AllowedStatuses []string           `json:"allowed_statuses"`
	DueDate         time.Time          `json:"due_date"`
	IsOverdue       bool               `json:"is_overdue"`
	Notes           string             `json:"notes,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	TaxFinalizedAt  *time.Time         `json:"tax_finalized_at,omitempty"`
	LineItems       []LineItemResponse `json:"line_items"`
	Payments        []PaymentResponse  `json:"payments"`
	CreatedBy       *uuid.UUID         `json:"created_by,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	NetAmount   decimal.Decimal `json:"net_amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Reference      string          `json:"reference,omitempty"`
	PaymentDate    time.Time       `json:"payment_date"`
	Verified       bool            `json:"verified"`
	VerifiedAt     *time.Time      `json:"verified_at,omitempty"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason string          `json:"reversal_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PaymentOutcomeResponse is returned by payment operations
type PaymentOutcomeResponse struct {
	Payment        PaymentResponse `json:"payment"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Remaining      decimal.Decimal `json:"remaining"`
	IsFullyPaid    bool            `json:"is_fully_paid"`
	PreviousStatus string          `json:"previous_status"`
	Status         string          `json:"status"`
	Transitioned   bool            `json:"transitioned"`
}

// ToInvoiceResponse converts an invoice aggregate to its response form
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	paid := inv.VerifiedPaidAmount()
	allowed := inv.Status.AllowedTransitions()
	allowedNames := make([]string, len(allowed))
	for i, s := range allowed {
		allowedNames[i] = s.String()
	}

	resp := InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		CustomerEmail:   inv.CustomerEmail,
		TaxID:           inv.TaxID,
		Currency:        inv.Currency.String(),
		Subtotal:        inv.Subtotal,
		TaxAmount:       inv.TaxAmount,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      paid,
		Outstanding:     inv.TotalAmount.Sub(paid),
		FormattedTotal:  valueobject.FormatAmount(inv.TotalAmount, inv.Currency),
		Status:          inv.Status.String(),
		AllowedStatuses: allowedNames,
		DueDate:         inv.DueDate,
		IsOverdue:       inv.IsOverdue(now),
		Notes:           inv.Notes,
		SentAt:          inv.SentAt,
		PaidAt:          inv.PaidAt,
		TaxFinalizedAt:  inv.TaxFinalizedAt,
		LineItems:       make([]LineItemResponse, len(inv.LineItems)),
		Payments:        make([]PaymentResponse, len(inv.Payments)),
		CreatedBy:       inv.CreatedBy,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
	for i, li := range inv.LineItems {
		resp.LineItems[i] = LineItemResponse{
			ID:          li.ID,
			LineNumber:  li.LineNumber,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			TaxRate:     li.TaxRate,
			NetAmount:   li.NetAmount(),
		}
	}
	for i := range inv.Payments {
		resp.Payments[i] = ToPaymentResponse(&inv.Payments[i])
	}
	return resp
}

// ToPaymentResponse converts a payment to its response form
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		InvoiceID:      p.InvoiceID,
		Amount:         p.Amount,
		Method:         string(p.Method),
		Reference:      p.Reference,
		PaymentDate:    p.PaymentDate,
		Verified:       p.Verified,
		VerifiedAt:     p.VerifiedAt,
		ReversedAt:     p.ReversedAt,
		ReversalReason: p.ReversalReason,
		CreatedAt:      p.CreatedAt,
	}
}

func toPaymentOutcomeResponse(o *invoicing.PaymentOutcome) *PaymentOutcomeResponse {
	return &PaymentOutcomeResponse{
		Payment:        ToPaymentResponse(&o.Payment),
		TotalPaid:      o.TotalPaid,
		Remaining:      o.Remaining,
		IsFullyPaid:    o.IsFullyPaid,
		PreviousStatus: o.PreviousStatus.String(),
		Status:         o.Status.String(),
		Transitioned:   o.Transitioned,
	}
}
