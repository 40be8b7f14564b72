package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
)

// Deletion rejection reasons
const (
	ReasonNotDraft          = "only DRAFT invoices can be deleted"
	ReasonHasPayments       = "invoices with recorded payments cannot be deleted"
	ReasonTaxFinalized      = "invoices with a finalized tax amount cannot be deleted"
	reasonOutsideWindowText = "invoices created more than %d days ago cannot be deleted"
)

// DefaultDeletionWindow bounds how old a deletable draft may be
const DefaultDeletionWindow = 30 * 24 * time.Hour

// DeletionDecision is the outcome of a deletion eligibility check
type DeletionDecision struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Err returns a business rule violation listing every failed condition,
// or nil when deletion is allowed.
func (d DeletionDecision) Err() error {
	if d.Eligible {
		return nil
	}
	return shared.NewBusinessRuleViolation(CodeDeletionNotAllowed, strings.Join(d.Reasons, "; "))
}

// DeletionPolicy decides whether an invoice may be deleted
type DeletionPolicy struct {
	Window time.Duration
}

// NewDeletionPolicy creates a policy; a non-positive window uses the default
func NewDeletionPolicy(window time.Duration) DeletionPolicy {
	if window <= 0 {
		window = DefaultDeletionWindow
	}
	return DeletionPolicy{Window: window}
}

// Check evaluates every condition and reports each one that fails
func (p DeletionPolicy) Check(inv *Invoice, now time.Time) DeletionDecision {
	var reasons []string
	if inv.Status != StatusDraft {
		reasons = append(reasons, ReasonNotDraft)
	}
	if len(inv.Payments) > 0 {
		reasons = append(reasons, ReasonHasPayments)
	}
	if now.Sub(inv.CreatedAt) > p.Window {
		reasons = append(reasons, fmt.Sprintf(reasonOutsideWindowText, int(p.Window.Hours()/24)))
	}
	if inv.TaxFinalizedAt != nil {
		reasons = append(reasons, ReasonTaxFinalized)
	}
	return DeletionDecision{Eligible: len(reasons) == 0, Reasons: reasons}
}
