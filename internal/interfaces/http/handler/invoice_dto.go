package handler

import (
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one billed line
type LineItemRequest struct {
	Description string          `json:"description" binding:"required,max=500" example:"Consulting, March"`
	Quantity    decimal.Decimal `json:"quantity" binding:"positive_decimal" swaggertype:"string" example:"2"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string" example:"450.00"`
	TaxRate     decimal.Decimal `json:"tax_rate" swaggertype:"string" example:"5"`
}

// InvoiceRequest carries the editable fields of a draft invoice
// @Description Request body for creating or updating a draft invoice
type InvoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number" binding:"required,max=50" example:"INV-2025-0001"`
	CustomerName  string            `json:"customer_name" binding:"required,max=200" example:"Acme Trading LLC"`
	CustomerEmail string            `json:"customer_email" binding:"omitempty,email,max=200" example:"billing@acme.test"`
	TaxID         string            `json:"tax_id" binding:"max=50" example:"DE123456789"`
	Currency      string            `json:"currency" binding:"required,len=3" example:"EUR"`
	DueDate       time.Time         `json:"due_date" binding:"required" example:"2025-04-30T00:00:00Z"`
	Notes         string            `json:"notes" binding:"max=2000"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,max=200,dive"`
}

func (r InvoiceRequest) toParams() invoicing.InvoiceParams {
	items := make([]invoicing.LineItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = invoicing.LineItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
		}
	}
	return invoicing.InvoiceParams{
		InvoiceNumber: r.InvoiceNumber,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		TaxID:         r.TaxID,
		Currency:      strings.ToUpper(r.Currency),
		DueDate:       r.DueDate,
		Notes:         r.Notes,
		Items:         items,
	}
}

// ListInvoicesRequest holds invoice list filters
type ListInvoicesRequest struct {
	dto.ListRequest
	Status   string `form:"status" example:"SENT,OVERDUE"`
	Overdue  bool   `form:"overdue"`
	Customer string `form:"customer"`
	Search   string `form:"search"`
}

// statuses splits the comma separated status filter
func (r ListInvoicesRequest) statuses() []string {
	if strings.TrimSpace(r.Status) == "" {
		return nil
	}
	parts := strings.Split(r.Status, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ChangeStatusRequest asks for a status transition
// @Description Request body for changing an invoice's status
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,invoice_status" example:"SENT"`
	Reason string `json:"reason" binding:"max=500" example:"Sent to customer by email"`
}

// DeleteInvoiceRequest is the optional body of a delete
type DeleteInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ApplyPaymentRequest records a payment
// @Description Request body for applying a payment to an invoice
type ApplyPaymentRequest struct {
	Amount              decimal.Decimal `json:"amount" binding:"positive_decimal" swaggertype:"string" example:"250.00"`
	Method              string          `json:"method" binding:"required,payment_method" example:"BANK_TRANSFER"`
	Reference           string          `json:"reference" binding:"max=100" example:"SEPA-2025-03-10-77"`
	PaymentDate         *time.Time      `json:"payment_date" example:"2025-03-10T00:00:00Z"`
	PendingVerification bool            `json:"pending_verification"`
}

// ReversePaymentRequest reverses an applied payment
// @Description Request body for reversing a payment
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500" example:"Chargeback"`
}

// BulkRequest asks for one action over many invoices
// @Description Request body for a bulk invoice operation
type BulkRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
	Action     string   `json:"action" binding:"required" example:"update_status"`
	Status     string   `json:"status" example:"SENT"`
	TemplateID string   `json:"template_id" example:"invoice_reminder"`
	Reason     string   `json:"reason" binding:"max=500"`
	Archive    bool     `json:"archive"`
	Workers    int      `json:"workers" binding:"omitempty,min=1,max=64"`
}

// AuditListRequest holds audit trail filters
type AuditListRequest struct {
	dto.ListRequest
	EntityType string     `form:"entity_type" example:"invoice"`
	EntityID   string     `form:"entity_id" binding:"omitempty,uuid"`
	Action     string     `form:"action"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// MarkOverdueRequest optionally sets the reference time for overdue marking
type MarkOverdueRequest struct {
	AsOf *time.Time `json:"as_of" example:"2025-04-01T00:00:00Z"`
}
