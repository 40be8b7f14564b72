package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplyPaymentInput records money received against an invoice.
// Payments count towards the paid amount immediately unless
// PendingVerification is set.
type ApplyPaymentInput struct {
	TenantID            uuid.UUID
	ActorID             uuid.UUID
	InvoiceID           uuid.UUID
	Amount              decimal.Decimal
	Method              string
	Reference           string
	PaymentDate         time.Time
	PendingVerification bool
}

// PaymentRef identifies a payment of an invoice
type PaymentRef struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	InvoiceID uuid.UUID
	PaymentID uuid.UUID
}

// ReconciliationResponse is the payment position of one invoice
type ReconciliationResponse struct {
	InvoiceID uuid.UUID                     `json:"invoice_id"`
	Status    string                        `json:"status"`
	State     invoicing.ReconciliationState `json:"state"`
	Audit     invoicing.ReconciliationAudit `json:"audit"`
}

// PaymentService applies, verifies and reverses payments
type PaymentService struct {
	scope      TransactionScope
	invoices   invoicing.InvoiceRepository
	reconciler *invoicing.Reconciler
	publisher  shared.EventPublisher
	now        Clock
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(scope TransactionScope, invoices invoicing.InvoiceRepository, reconciler *invoicing.Reconciler) *PaymentService {
	if reconciler == nil {
		reconciler = invoicing.NewReconciler(nil, "")
	}
	return &PaymentService{
		scope:      scope,
		invoices:   invoices,
		reconciler: reconciler,
		now:        SystemClock,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock replaces the time source
func (s *PaymentService) SetClock(clock Clock) {
	s.now = clock
}

// Apply records a payment, reconciles and moves the invoice to PAID once
// verified payments reach the threshold.
func (s *PaymentService) Apply(ctx context.Context, in ApplyPaymentInput) (*PaymentOutcomeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, in.InvoiceID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	var recordedBy *uuid.UUID
	if in.ActorID != uuid.Nil {
		actor := in.ActorID
		recordedBy = &actor
	}

	now := s.now()
	var outcome *invoicing.PaymentOutcome
	inv, err := s.mutate(ctx, in.TenantID, in.InvoiceID, now, func(inv *invoicing.Invoice) ([]audit.Entry, error) {
		before := inv.Snapshot()
		payment, err := invoicing.NewPayment(inv, invoicing.PaymentParams{
			Amount:      in.Amount,
			Method:      invoicing.PaymentMethod(in.Method),
			Reference:   in.Reference,
			PaymentDate: in.PaymentDate,
			Verified:    !in.PendingVerification,
			RecordedBy:  recordedBy,
		}, now)
		if err != nil {
			return nil, err
		}
		outcome, err = s.reconciler.ApplyPayment(inv, payment, now)
		if err != nil {
			return nil, err
		}
		entry := invoiceEntry(inv, in.ActorID, audit.ActionPaymentApplied, before, "")
		entry.Metadata = paymentMetadata(&outcome.Payment)
		return s.withAutoTransition(entry, inv, in.ActorID, before, outcome, now), nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, outcome.Payment.ID.String())
	publishDomainEvents(ctx, s.publisher, inv)
	return toPaymentOutcomeResponse(outcome), nil
}

// Verify marks a pending payment as verified and reconciles
func (s *PaymentService) Verify(ctx context.Context, ref PaymentRef) (*PaymentOutcomeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "verify")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, ref.InvoiceID.String(),
		telemetry.SpanAttrPaymentID, ref.PaymentID.String(),
	)

	now := s.now()
	var outcome *invoicing.PaymentOutcome
	inv, err := s.mutate(ctx, ref.TenantID, ref.InvoiceID, now, func(inv *invoicing.Invoice) ([]audit.Entry, error) {
		before := inv.Snapshot()
		var err error
		outcome, err = s.reconciler.VerifyPayment(inv, ref.PaymentID, now)
		if err != nil {
			return nil, err
		}
		entry := invoiceEntry(inv, ref.ActorID, audit.ActionPaymentVerified, before, "")
		entry.Metadata = paymentMetadata(&outcome.Payment)
		return s.withAutoTransition(entry, inv, ref.ActorID, before, outcome, now), nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishDomainEvents(ctx, s.publisher, inv)
	return toPaymentOutcomeResponse(outcome), nil
}

// Reverse stamps a payment as reversed. A PAID invoice that is no longer
// fully paid falls back to SENT or OVERDUE; that change is audited as a
// system transition.
func (s *PaymentService) Reverse(ctx context.Context, ref PaymentRef, reason string) (*PaymentOutcomeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "reverse")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, ref.InvoiceID.String(),
		telemetry.SpanAttrPaymentID, ref.PaymentID.String(),
	)

	now := s.now()
	var outcome *invoicing.PaymentOutcome
	inv, err := s.mutate(ctx, ref.TenantID, ref.InvoiceID, now, func(inv *invoicing.Invoice) ([]audit.Entry, error) {
		before := inv.Snapshot()
		var err error
		outcome, err = s.reconciler.ReversePayment(inv, ref.PaymentID, reason, now)
		if err != nil {
			return nil, err
		}
		entry := invoiceEntry(inv, ref.ActorID, audit.ActionPaymentReversed, before, outcome.Payment.ReversalReason)
		entry.Metadata = paymentMetadata(&outcome.Payment)
		entries := []audit.Entry{entry}
		if outcome.Transitioned {
			tr := invoicing.Transition{From: outcome.PreviousStatus, To: outcome.Status, AppliedAt: now}
			entries = append(entries, statusEntry(inv, ref.ActorID, before, tr,
				"payment reversed: "+outcome.Payment.ReversalReason, true))
		}
		return entries, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishDomainEvents(ctx, s.publisher, inv)
	return toPaymentOutcomeResponse(outcome), nil
}

// Reconciliation returns the computed payment position of an invoice
func (s *PaymentService) Reconciliation(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ReconciliationResponse, error) {
	inv, err := s.invoices.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResponse{
		InvoiceID: inv.ID,
		Status:    inv.Status.String(),
		State:     s.reconciler.Reconcile(inv),
		Audit:     invoicing.AuditReconciliation(inv),
	}, nil
}

func (s *PaymentService) mutate(ctx context.Context, tenantID, invoiceID uuid.UUID, now time.Time, fn func(inv *invoicing.Invoice) ([]audit.Entry, error)) (*invoicing.Invoice, error) {
	return mutateInvoice(ctx, s.scope, tenantID, invoiceID, now,
		func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
			return fn(inv)
		})
}

// withAutoTransition adds the audit entry of an automatic move to PAID
func (s *PaymentService) withAutoTransition(entry audit.Entry, inv *invoicing.Invoice, actorID uuid.UUID, before map[string]any, outcome *invoicing.PaymentOutcome, now time.Time) []audit.Entry {
	entries := []audit.Entry{entry}
	if outcome.Transitioned {
		tr := invoicing.Transition{From: outcome.PreviousStatus, To: outcome.Status, AppliedAt: now}
		status := statusEntry(inv, actorID, before, tr, "payment completed invoice", false)
		status.Metadata["automatic"] = true
		entries = append(entries, status)
	}
	return entries
}

func paymentMetadata(p *invoicing.Payment) map[string]any {
	return map[string]any{
		"payment_id": p.ID.String(),
		"amount":     p.Amount.String(),
		"method":     string(p.Method),
		"reference":  p.Reference,
		"verified":   p.Verified,
		"reversed":   p.IsReversed(),
	}
}
