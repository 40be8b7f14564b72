package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published by the invoice aggregate
const (
	EventTypeInvoiceCreated       = "InvoiceCreated"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoicePaid          = "InvoicePaid"
	EventTypePaymentApplied       = "PaymentApplied"
	EventTypePaymentReversed      = "PaymentReversed"
	EventTypeInvoiceDeleted       = "InvoiceDeleted"
	EventTypeReminderQueued       = "ReminderQueued"
)

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		TotalAmount:     inv.TotalAmount,
		Currency:        inv.Currency.String(),
	}
}

// InvoiceStatusChangedEvent is raised on every status change.
// System is set for changes not requested by a user (payment reversal).
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string        `json:"invoice_number"`
	From          InvoiceStatus `json:"from"`
	To            InvoiceStatus `json:"to"`
	Reason        string        `json:"reason,omitempty"`
	System        bool          `json:"system"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to InvoiceStatus, reason string, system bool) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		From:            from,
		To:              to,
		Reason:          reason,
		System:          system,
	}
}

// InvoicePaidEvent is raised when an invoice reaches PAID
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Currency      string          `json:"currency"`
	PaidAt        time.Time       `json:"paid_at"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now().UTC()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      inv.VerifiedPaidAmount(),
		Currency:        inv.Currency.String(),
		PaidAt:          paidAt,
	}
}

// PaymentAppliedEvent is raised when a payment is recorded
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Currency  string          `json:"currency"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(inv *Invoice, p *Payment, state ReconciliationState) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypeInvoice, inv.ID, inv.TenantID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Method:          p.Method,
		Currency:        inv.Currency.String(),
		TotalPaid:       state.TotalPaid,
		Remaining:       state.Remaining,
	}
}

// PaymentReversedEvent is raised when a payment is reversed
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	PreviousStatus InvoiceStatus   `json:"previous_status"`
	Status         InvoiceStatus   `json:"status"`
}

// NewPaymentReversedEvent creates a new PaymentReversedEvent
func NewPaymentReversedEvent(inv *Invoice, p *Payment, previous InvoiceStatus) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, AggregateTypeInvoice, inv.ID, inv.TenantID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Reason:          p.ReversalReason,
		PreviousStatus:  previous,
		Status:          inv.Status,
	}
}

// InvoiceDeletedEvent is raised after an invoice and its dependents are removed
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(inv *Invoice) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
	}
}

// ReminderQueuedEvent is a request to deliver a payment reminder
type ReminderQueuedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
	TemplateID    string `json:"template_id"`
	Recipient     string `json:"recipient"`
}

// NewReminderQueuedEvent creates a new ReminderQueuedEvent
func NewReminderQueuedEvent(tenantID, invoiceID uuid.UUID, invoiceNumber, templateID, recipient string) *ReminderQueuedEvent {
	return &ReminderQueuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReminderQueued, AggregateTypeInvoice, invoiceID, tenantID),
		InvoiceNumber:   invoiceNumber,
		TemplateID:      templateID,
		Recipient:       recipient,
	}
}
