package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Invoice numbers are unique per tenant (see the invoices migration).
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber  string                  `gorm:"type:varchar(50);not null;index"`
	CustomerName   string                  `gorm:"type:varchar(200);not null"`
	CustomerEmail  string                  `gorm:"type:varchar(254)"`
	TaxID          string                  `gorm:"type:varchar(20)"`
	Subtotal       decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	TaxAmount      decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	TotalAmount    decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Currency       string                  `gorm:"type:varchar(3);not null"`
	Status         invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DueDate        time.Time               `gorm:"not null;index"`
	Notes          string                  `gorm:"type:text"`
	SentAt         *time.Time
	PaidAt         *time.Time
	TaxFinalizedAt *time.Time
	LineItems      []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
	Payments       []InvoicePaymentModel  `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// The returned aggregate is marked as loaded at the persisted version.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		CustomerName:        m.CustomerName,
		CustomerEmail:       m.CustomerEmail,
		TaxID:               m.TaxID,
		Subtotal:            m.Subtotal,
		TaxAmount:           m.TaxAmount,
		TotalAmount:         m.TotalAmount,
		Currency:            valueobject.Currency(m.Currency),
		Status:              m.Status,
		DueDate:             m.DueDate.UTC(),
		Notes:               m.Notes,
		SentAt:              m.SentAt,
		PaidAt:              m.PaidAt,
		TaxFinalizedAt:      m.TaxFinalizedAt,
		LineItems:           make([]invoicing.LineItem, len(m.LineItems)),
		Payments:            make([]invoicing.Payment, len(m.Payments)),
	}
	for i := range m.LineItems {
		inv.LineItems[i] = m.LineItems[i].ToDomain()
	}
	for i := range m.Payments {
		inv.Payments[i] = m.Payments[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerName = inv.CustomerName
	m.CustomerEmail = inv.CustomerEmail
	m.TaxID = inv.TaxID
	m.Subtotal = inv.Subtotal
	m.TaxAmount = inv.TaxAmount
	m.TotalAmount = inv.TotalAmount
	m.Currency = inv.Currency.String()
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.TaxFinalizedAt = inv.TaxFinalizedAt
	m.LineItems = make([]InvoiceLineItemModel, len(inv.LineItems))
	for i := range inv.LineItems {
		m.LineItems[i].FromDomain(&inv.LineItems[i])
	}
	m.Payments = make([]InvoicePaymentModel, len(inv.Payments))
	for i := range inv.Payments {
		m.Payments[i].FromDomain(&inv.Payments[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceLineItemModel is the persistence model for LineItem.
type InvoiceLineItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber  int             `gorm:"not null"`
	Description string          `gorm:"type:varchar(500)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(7,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *InvoiceLineItemModel) ToDomain() invoicing.LineItem {
	return invoicing.LineItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		LineNumber:  m.LineNumber,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		TaxRate:     m.TaxRate,
	}
}

// FromDomain populates the persistence model from a domain LineItem.
func (m *InvoiceLineItemModel) FromDomain(li *invoicing.LineItem) {
	m.ID = li.ID
	m.InvoiceID = li.InvoiceID
	m.LineNumber = li.LineNumber
	m.Description = li.Description
	m.Quantity = li.Quantity
	m.UnitPrice = li.UnitPrice
	m.TaxRate = li.TaxRate
}

// InvoicePaymentModel is the persistence model for Payment.
type InvoicePaymentModel struct {
	ID             uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Method         invoicing.PaymentMethod `gorm:"type:varchar(30);not null"`
	Reference      string                  `gorm:"type:varchar(100)"`
	PaymentDate    time.Time               `gorm:"not null"`
	Verified       bool                    `gorm:"not null;default:false"`
	VerifiedAt     *time.Time
	ReversedAt     *time.Time
	ReversalReason string     `gorm:"type:varchar(500)"`
	RecordedBy     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *InvoicePaymentModel) ToDomain() invoicing.Payment {
	return invoicing.Payment{
		ID:             m.ID,
		TenantID:       m.TenantID,
		InvoiceID:      m.InvoiceID,
		Amount:         m.Amount,
		Method:         m.Method,
		Reference:      m.Reference,
		PaymentDate:    m.PaymentDate.UTC(),
		Verified:       m.Verified,
		VerifiedAt:     m.VerifiedAt,
		ReversedAt:     m.ReversedAt,
		ReversalReason: m.ReversalReason,
		RecordedBy:     m.RecordedBy,
		CreatedAt:      m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *InvoicePaymentModel) FromDomain(p *invoicing.Payment) {
	m.ID = p.ID
	m.TenantID = p.TenantID
	m.InvoiceID = p.InvoiceID
	m.Amount = p.Amount
	m.Method = p.Method
	m.Reference = p.Reference
	m.PaymentDate = p.PaymentDate
	m.Verified = p.Verified
	m.VerifiedAt = p.VerifiedAt
	m.ReversedAt = p.ReversedAt
	m.ReversalReason = p.ReversalReason
	m.RecordedBy = p.RecordedBy
	m.CreatedAt = p.CreatedAt
}
