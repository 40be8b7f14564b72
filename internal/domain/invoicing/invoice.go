package invoicing

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type used in events and audit records
const AggregateTypeInvoice = "Invoice"

var taxIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-]{4,19}$`)

var _ shared.AggregateRoot = (*Invoice)(nil)

// Invoice is the invoice aggregate root. It owns its line items and payments.
// TotalAmount always equals Subtotal + TaxAmount and is frozen once the
// invoice leaves DRAFT.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber  string               `json:"invoice_number"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	TaxID          string               `json:"tax_id,omitempty"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Currency       valueobject.Currency `json:"currency"`
	Status         InvoiceStatus        `json:"status"`
	DueDate        time.Time            `json:"due_date"`
	Notes          string               `json:"notes,omitempty"`
	SentAt         *time.Time           `json:"sent_at,omitempty"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
	TaxFinalizedAt *time.Time           `json:"tax_finalized_at,omitempty"`
	LineItems      []LineItem           `json:"line_items"`
	Payments       []Payment            `json:"payments"`
}

// LineItemInput is a line item as supplied by a caller
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// InvoiceParams carries the editable fields of a draft invoice
type InvoiceParams struct {
	InvoiceNumber string
	CustomerName  string
	CustomerEmail string
	TaxID         string
	Currency      string
	DueDate       time.Time
	Notes         string
	Items         []LineItemInput
}

// NewInvoice creates a DRAFT invoice with calculated totals
func NewInvoice(tenantID uuid.UUID, params InvoiceParams) (*Invoice, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidInvoice, "tenant ID cannot be empty")
	}
	number := strings.TrimSpace(params.InvoiceNumber)
	if number == "" {
		return nil, shared.NewValidationError(CodeInvalidInvoice, "invoice number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewValidationError(CodeInvalidInvoice, "invoice number cannot exceed 50 characters")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       number,
		Status:              StatusDraft,
		LineItems:           []LineItem{},
		Payments:            []Payment{},
	}
	if err := inv.applyDraft(params); err != nil {
		return nil, err
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// UpdateDraft replaces the editable fields and line items of a DRAFT invoice
func (inv *Invoice) UpdateDraft(params InvoiceParams, now time.Time) error {
	if inv.Status != StatusDraft {
		return shared.NewBusinessRuleViolation(CodeInvoiceNotEditable,
			fmt.Sprintf("invoice in %s status cannot be edited", inv.Status))
	}
	if inv.TaxFinalizedAt != nil {
		return shared.NewBusinessRuleViolation(CodeTaxAlreadyFinalized, "invoice tax amount is finalized and cannot be edited")
	}
	if err := inv.applyDraft(params); err != nil {
		return err
	}
	inv.Touch(now)
	inv.IncrementVersion()
	return nil
}

func (inv *Invoice) applyDraft(params InvoiceParams) error {
	name := strings.TrimSpace(params.CustomerName)
	if name == "" {
		return shared.NewValidationError(CodeInvalidInvoice, "customer name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewValidationError(CodeInvalidInvoice, "customer name cannot exceed 200 characters")
	}
	email := strings.TrimSpace(params.CustomerEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return shared.NewValidationError(CodeInvalidInvoice, "customer email is not a valid address")
		}
	}
	taxID := strings.TrimSpace(params.TaxID)
	if taxID != "" && !taxIDPattern.MatchString(taxID) {
		return shared.NewValidationError(CodeInvalidInvoice, "tax ID must be 5-20 letters, digits or dashes")
	}
	currencyCode := params.Currency
	if currencyCode == "" {
		currencyCode = string(valueobject.DefaultCurrency)
	}
	currency, err := valueobject.ParseCurrency(currencyCode)
	if err != nil {
		return shared.NewValidationError(CodeInvalidCurrency, err.Error())
	}
	if params.DueDate.IsZero() {
		return shared.NewValidationError(CodeInvalidInvoice, "due date is required")
	}
	if len(params.Items) == 0 {
		return shared.NewValidationError(CodeInvalidInvoice, "invoice must have at least one line item")
	}

	items := make([]LineItem, 0, len(params.Items))
	for i, in := range params.Items {
		items = append(items, LineItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			LineNumber:  i + 1,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
		})
	}
	totals, err := CalculateTotals(items, currency)
	if err != nil {
		return err
	}

	inv.CustomerName = name
	inv.CustomerEmail = email
	inv.TaxID = taxID
	inv.Currency = currency
	inv.DueDate = params.DueDate.UTC()
	inv.Notes = params.Notes
	inv.LineItems = items
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.TotalAmount = totals.GrandTotal
	return nil
}

// FinalizeTax locks the tax amount. Finalized invoices cannot be deleted.
func (inv *Invoice) FinalizeTax(now time.Time) error {
	if inv.TaxFinalizedAt != nil {
		return shared.NewBusinessRuleViolation(CodeTaxAlreadyFinalized, "invoice tax amount is already finalized")
	}
	inv.TaxFinalizedAt = &now
	inv.Touch(now)
	inv.IncrementVersion()
	return nil
}

// Transition records an applied status change
type Transition struct {
	From      InvoiceStatus `json:"from"`
	To        InvoiceStatus `json:"to"`
	AppliedAt time.Time     `json:"applied_at"`
}

// TransitionTo moves the invoice to target after the validator approves it
func (inv *Invoice) TransitionTo(target InvoiceStatus, validator *StatusValidator, reason string, now time.Time) (Transition, error) {
	if err := validator.Validate(inv, target); err != nil {
		return Transition{}, err
	}
	return inv.setStatus(target, reason, false, now), nil
}

// setStatus applies a status change without validation. System-initiated
// changes (payment reversal) go through here directly.
func (inv *Invoice) setStatus(target InvoiceStatus, reason string, system bool, now time.Time) Transition {
	from := inv.Status
	inv.Status = target

	switch target {
	case StatusSent:
		if inv.SentAt == nil {
			inv.SentAt = &now
		}
		if inv.TaxFinalizedAt == nil {
			inv.TaxFinalizedAt = &now
		}
	case StatusPaid:
		inv.PaidAt = &now
	}
	if from == StatusPaid && target != StatusPaid {
		inv.PaidAt = nil
	}

	inv.Touch(now)
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, target, reason, system))
	if target == StatusPaid {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}
	return Transition{From: from, To: target, AppliedAt: now}
}

// RecordedAmount returns the sum of all non-reversed payments, verified or not
func (inv *Invoice) RecordedAmount() decimal.Decimal {
	sum := decimal.Zero
	for i := range inv.Payments {
		if !inv.Payments[i].IsReversed() {
			sum = sum.Add(inv.Payments[i].Amount)
		}
	}
	return sum
}

// VerifiedPaidAmount returns the sum of verified, non-reversed payments
func (inv *Invoice) VerifiedPaidAmount() decimal.Decimal {
	sum := decimal.Zero
	for i := range inv.Payments {
		if inv.Payments[i].CountsTowardsPaid() {
			sum = sum.Add(inv.Payments[i].Amount)
		}
	}
	return sum
}

// FindPayment returns the payment with the given ID
func (inv *Invoice) FindPayment(paymentID uuid.UUID) (*Payment, error) {
	for i := range inv.Payments {
		if inv.Payments[i].ID == paymentID {
			return &inv.Payments[i], nil
		}
	}
	return nil, shared.NewNotFoundError("payment")
}

// IsOverdue returns true if the invoice is unpaid and past its due date
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.Status == StatusDraft || inv.Status.IsTerminal() {
		return false
	}
	return now.After(inv.DueDate)
}

// DaysOverdue returns whole days past the due date, zero when not overdue
func (inv *Invoice) DaysOverdue(now time.Time) int {
	if !inv.IsOverdue(now) {
		return 0
	}
	return int(math.Floor(now.Sub(inv.DueDate).Hours() / 24))
}

// Snapshot returns the audited view of the invoice
func (inv *Invoice) Snapshot() map[string]any {
	return map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"status":         inv.Status.String(),
		"subtotal":       inv.Subtotal.String(),
		"tax_amount":     inv.TaxAmount.String(),
		"total_amount":   inv.TotalAmount.String(),
		"currency":       inv.Currency.String(),
		"paid_amount":    inv.VerifiedPaidAmount().String(),
		"due_date":       inv.DueDate.Format(time.DateOnly),
		"payment_count":  len(inv.Payments),
		"tax_finalized":  inv.TaxFinalizedAt != nil,
		"version":        inv.Version,
	}
}
