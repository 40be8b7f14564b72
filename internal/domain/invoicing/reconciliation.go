package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentState classifies how much of an invoice has been paid
type PaymentState string

const (
	PaymentStateUnpaid        PaymentState = "UNPAID"
	PaymentStatePartiallyPaid PaymentState = "PARTIALLY_PAID"
	PaymentStateFullyPaid     PaymentState = "FULLY_PAID"
)

// ReconciliationResult classifies the outcome of a reconciliation audit
type ReconciliationResult string

const (
	ResultReconciled ReconciliationResult = "RECONCILED"
	ResultOverpaid   ReconciliationResult = "OVERPAID"
	ResultUnderpaid  ReconciliationResult = "UNDERPAID"
)

// ReversalPolicy chooses the status a PAID invoice falls back to when a
// reversal leaves it no longer fully paid.
type ReversalPolicy string

const (
	// ReversalByDueDate returns to SENT before the due date and OVERDUE after it
	ReversalByDueDate ReversalPolicy = "due_date"
	// ReversalAlwaysOverdue always returns to OVERDUE
	ReversalAlwaysOverdue ReversalPolicy = "always_overdue"
)

// ParseReversalPolicy parses a configured policy name
func ParseReversalPolicy(s string) (ReversalPolicy, error) {
	switch p := ReversalPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ReversalByDueDate, nil
	case ReversalByDueDate, ReversalAlwaysOverdue:
		return p, nil
	}
	return "", fmt.Errorf("unknown reversal policy %q", s)
}

// ReconciliationState is the computed payment position of an invoice
type ReconciliationState struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalRecorded  decimal.Decimal `json:"total_recorded"`
	Remaining      decimal.Decimal `json:"remaining"`
	State          PaymentState    `json:"state"`
	IsFullyPaid    bool            `json:"is_fully_paid"`
	PaidThreshold  decimal.Decimal `json:"paid_threshold"`
	RequiredAmount decimal.Decimal `json:"required_amount"`
}

// ReconciliationAudit is the result of comparing payments against the total
type ReconciliationAudit struct {
	InvoiceID   uuid.UUID            `json:"invoice_id"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	TotalPaid   decimal.Decimal      `json:"total_paid"`
	Discrepancy decimal.Decimal      `json:"discrepancy"`
	Result      ReconciliationResult `json:"result"`
}

// PaymentOutcome describes the effect of applying, verifying or reversing a payment
type PaymentOutcome struct {
	Payment        Payment         `json:"payment"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Remaining      decimal.Decimal `json:"remaining"`
	IsFullyPaid    bool            `json:"is_fully_paid"`
	PreviousStatus InvoiceStatus   `json:"previous_status"`
	Status         InvoiceStatus   `json:"status"`
	Transitioned   bool            `json:"transitioned"`
}

// Reconciler correlates payments with an invoice and drives the automatic
// status changes that follow from them. It operates on a loaded aggregate;
// callers persist the result inside one atomic unit.
type Reconciler struct {
	validator *StatusValidator
	policy    ReversalPolicy
}

// NewReconciler creates a reconciler
func NewReconciler(validator *StatusValidator, policy ReversalPolicy) *Reconciler {
	if validator == nil {
		validator = DefaultStatusValidator()
	}
	if policy == "" {
		policy = ReversalByDueDate
	}
	return &Reconciler{validator: validator, policy: policy}
}

// Validator returns the status validator used for automatic transitions
func (r *Reconciler) Validator() *StatusValidator {
	return r.validator
}

// Reconcile computes totalPaid, remaining and the payment state
func (r *Reconciler) Reconcile(inv *Invoice) ReconciliationState {
	paid := inv.VerifiedPaidAmount()
	state := PaymentStateUnpaid
	fully := r.validator.IsFullyPaid(paid, inv.TotalAmount)
	switch {
	case fully:
		state = PaymentStateFullyPaid
	case paid.IsPositive():
		state = PaymentStatePartiallyPaid
	}
	return ReconciliationState{
		TotalAmount:    inv.TotalAmount,
		TotalPaid:      paid,
		TotalRecorded:  inv.RecordedAmount(),
		Remaining:      inv.TotalAmount.Sub(paid),
		State:          state,
		IsFullyPaid:    fully,
		PaidThreshold:  r.validator.PaidThreshold(),
		RequiredAmount: r.validator.RequiredForPaid(inv.TotalAmount),
	}
}

// ApplyPayment records a payment and transitions the invoice to PAID once
// fully paid. Overpayment is rejected before any status check, so a PAID
// invoice that receives more money reports an overpayment. On error the
// invoice is unchanged.
func (r *Reconciler) ApplyPayment(inv *Invoice, p *Payment, now time.Time) (*PaymentOutcome, error) {
	if !p.Amount.IsPositive() {
		return nil, shared.NewValidationError(CodeInvalidAmount, "payment amount must be positive")
	}
	if p.InvoiceID != inv.ID || p.TenantID != inv.TenantID {
		return nil, shared.NewValidationError(CodeInvalidInvoice, "payment does not belong to this invoice")
	}

	recorded := inv.RecordedAmount()
	if recorded.Add(p.Amount).GreaterThan(inv.TotalAmount) {
		outstanding := decimal.Max(inv.TotalAmount.Sub(recorded), decimal.Zero)
		return nil, shared.NewBusinessRuleViolation(CodeOverpayment,
			fmt.Sprintf("payment of %s exceeds the outstanding amount %s",
				p.Amount.StringFixed(inv.Currency.MinorUnits()), outstanding.StringFixed(inv.Currency.MinorUnits()))).
			WithDetail("outstanding", outstanding.String())
	}
	if !inv.Status.AcceptsPayments() {
		return nil, shared.NewBusinessRuleViolation(CodePaymentNotAllowed,
			fmt.Sprintf("invoice in %s status does not accept payments", inv.Status))
	}

	previous := inv.Status
	inv.Payments = append(inv.Payments, *p)
	inv.Touch(now)
	inv.IncrementVersion()

	state := r.Reconcile(inv)
	transitioned := false
	if state.IsFullyPaid && !inv.Status.IsTerminal() {
		if _, err := inv.TransitionTo(StatusPaid, r.validator, "payment completed invoice", now); err != nil {
			return nil, err
		}
		transitioned = true
	}

	inv.AddDomainEvent(NewPaymentAppliedEvent(inv, p, state))
	return &PaymentOutcome{
		Payment:        *p,
		TotalPaid:      state.TotalPaid,
		Remaining:      state.Remaining,
		IsFullyPaid:    state.IsFullyPaid,
		PreviousStatus: previous,
		Status:         inv.Status,
		Transitioned:   transitioned,
	}, nil
}

// VerifyPayment marks a recorded payment as verified and reconciles
func (r *Reconciler) VerifyPayment(inv *Invoice, paymentID uuid.UUID, now time.Time) (*PaymentOutcome, error) {
	p, err := inv.FindPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsReversed() {
		return nil, shared.NewBusinessRuleViolation(CodePaymentAlreadyReversed, "a reversed payment cannot be verified")
	}
	if p.Verified {
		return nil, shared.NewBusinessRuleViolation(CodePaymentAlreadyVerified, "payment is already verified")
	}

	previous := inv.Status
	p.markVerified(now)
	inv.Touch(now)
	inv.IncrementVersion()

	state := r.Reconcile(inv)
	transitioned := false
	if state.IsFullyPaid && inv.Status.CanTransitionTo(StatusPaid) {
		if _, err := inv.TransitionTo(StatusPaid, r.validator, "payment verification completed invoice", now); err != nil {
			return nil, err
		}
		transitioned = true
	}

	return &PaymentOutcome{
		Payment:        *p,
		TotalPaid:      state.TotalPaid,
		Remaining:      state.Remaining,
		IsFullyPaid:    state.IsFullyPaid,
		PreviousStatus: previous,
		Status:         inv.Status,
		Transitioned:   transitioned,
	}, nil
}

// ReversePayment stamps a payment as reversed. A PAID invoice that is no
// longer fully paid falls back according to the reversal policy; this is a
// system transition outside the user-facing edge table.
func (r *Reconciler) ReversePayment(inv *Invoice, paymentID uuid.UUID, reason string, now time.Time) (*PaymentOutcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError(CodeInvalidReversalReason, "reversal reason is required")
	}
	p, err := inv.FindPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsReversed() {
		return nil, shared.NewBusinessRuleViolation(CodePaymentAlreadyReversed, "payment is already reversed")
	}

	previous := inv.Status
	p.markReversed(reason, now)
	inv.Touch(now)
	inv.IncrementVersion()

	state := r.Reconcile(inv)
	transitioned := false
	if inv.Status == StatusPaid && !state.IsFullyPaid {
		inv.setStatus(r.reversalTarget(inv, now), "payment reversed: "+reason, true, now)
		transitioned = true
	}

	inv.AddDomainEvent(NewPaymentReversedEvent(inv, p, previous))
	return &PaymentOutcome{
		Payment:        *p,
		TotalPaid:      state.TotalPaid,
		Remaining:      state.Remaining,
		IsFullyPaid:    state.IsFullyPaid,
		PreviousStatus: previous,
		Status:         inv.Status,
		Transitioned:   transitioned,
	}, nil
}

func (r *Reconciler) reversalTarget(inv *Invoice, now time.Time) InvoiceStatus {
	if r.policy == ReversalAlwaysOverdue || now.After(inv.DueDate) {
		return StatusOverdue
	}
	return StatusSent
}

// AuditReconciliation compares verified payments against the total.
// It is pure: repeated calls without new payments give the same result.
func AuditReconciliation(inv *Invoice) ReconciliationAudit {
	paid := inv.VerifiedPaidAmount()
	discrepancy := paid.Sub(inv.TotalAmount)
	result := ResultReconciled
	switch discrepancy.Sign() {
	case 1:
		result = ResultOverpaid
	case -1:
		result = ResultUnderpaid
	}
	return ReconciliationAudit{
		InvoiceID:   inv.ID,
		TotalAmount: inv.TotalAmount,
		TotalPaid:   paid,
		Discrepancy: discrepancy,
		Result:      result,
	}
}
