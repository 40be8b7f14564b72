package invoicing

import (
	"fmt"
	"strings"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	StatusDraft      InvoiceStatus = "DRAFT"
	StatusSent       InvoiceStatus = "SENT"
	StatusOverdue    InvoiceStatus = "OVERDUE"
	StatusPaid       InvoiceStatus = "PAID"
	StatusDisputed   InvoiceStatus = "DISPUTED"
	StatusWrittenOff InvoiceStatus = "WRITTEN_OFF"
	StatusCancelled  InvoiceStatus = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []InvoiceStatus{
	StatusDraft,
	StatusSent,
	StatusOverdue,
	StatusPaid,
	StatusDisputed,
	StatusWrittenOff,
	StatusCancelled,
}

// transitions is the complete edge table. Terminal states have no entry.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:    {StatusSent, StatusWrittenOff, StatusCancelled},
	StatusSent:     {StatusPaid, StatusOverdue, StatusDisputed, StatusWrittenOff},
	StatusOverdue:  {StatusPaid, StatusDisputed, StatusWrittenOff},
	StatusDisputed: {StatusPaid, StatusOverdue, StatusSent, StatusWrittenOff},
}

// ParseStatus parses a status name, case-insensitively
func ParseStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", shared.NewValidationError(CodeInvalidStatus, fmt.Sprintf("unknown invoice status %q", s))
	}
	return status, nil
}

// IsValid checks if the status is a known InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusOverdue, StatusPaid,
		StatusDisputed, StatusWrittenOff, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusWrittenOff || s == StatusCancelled
}

// AcceptsPayments returns true if payments may be recorded in this status
func (s InvoiceStatus) AcceptsPayments() bool {
	return s == StatusSent || s == StatusOverdue || s == StatusDisputed
}

// AllowedTransitions returns the statuses reachable in one step
func (s InvoiceStatus) AllowedTransitions() []InvoiceStatus {
	next := transitions[s]
	out := make([]InvoiceStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether (s, target) is an edge of the state machine
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// DefaultPaidThreshold is the share of the total that verified payments must
// reach before an invoice counts as fully paid.
var DefaultPaidThreshold = decimal.RequireFromString("0.99")

// StatusValidator decides whether a status change is legal.
// It never mutates the invoice and performs no I/O.
type StatusValidator struct {
	paidThreshold decimal.Decimal
}

// NewStatusValidator creates a validator. The threshold must be in (0, 1].
func NewStatusValidator(paidThreshold decimal.Decimal) (*StatusValidator, error) {
	if !paidThreshold.IsPositive() || paidThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.NewValidationError(CodeInvalidThresholdSetting,
			fmt.Sprintf("paid threshold must be in (0, 1], got %s", paidThreshold))
	}
	return &StatusValidator{paidThreshold: paidThreshold}, nil
}

// DefaultStatusValidator returns a validator using DefaultPaidThreshold
func DefaultStatusValidator() *StatusValidator {
	return &StatusValidator{paidThreshold: DefaultPaidThreshold}
}

// PaidThreshold returns the configured completeness threshold
func (v *StatusValidator) PaidThreshold() decimal.Decimal {
	return v.paidThreshold
}

// RequiredForPaid returns the verified amount needed before PAID is allowed
func (v *StatusValidator) RequiredForPaid(total decimal.Decimal) decimal.Decimal {
	return total.Mul(v.paidThreshold)
}

// IsFullyPaid reports whether paid meets the threshold for total
func (v *StatusValidator) IsFullyPaid(paid, total decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(v.RequiredForPaid(total))
}

// Validate checks the transition of inv to target
func (v *StatusValidator) Validate(inv *Invoice, target InvoiceStatus) error {
	if !target.IsValid() {
		return shared.NewValidationError(CodeInvalidStatus, fmt.Sprintf("unknown invoice status %q", target))
	}
	if !inv.Status.CanTransitionTo(target) {
		return shared.NewBusinessRuleViolation(CodeInvalidTransition,
			fmt.Sprintf("cannot transition invoice from %s to %s", inv.Status, target)).
			WithDetail("from", inv.Status.String()).
			WithDetail("to", target.String())
	}
	if target == StatusPaid {
		paid := inv.VerifiedPaidAmount()
		if !v.IsFullyPaid(paid, inv.TotalAmount) {
			return shared.NewBusinessRuleViolation(CodePaymentIncomplete,
				fmt.Sprintf("verified payments %s are below the required %s of total %s",
					paid.StringFixed(2), v.RequiredForPaid(inv.TotalAmount).StringFixed(2), inv.TotalAmount.StringFixed(2)))
		}
	}
	return nil
}
