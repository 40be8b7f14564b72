package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// ChangeStatusInput requests a user-initiated status transition
type ChangeStatusInput struct {
	TenantID     uuid.UUID
	ActorID      uuid.UUID
	InvoiceID    uuid.UUID
	TargetStatus string
	Reason       string
}

// StatusService applies validated status transitions
type StatusService struct {
	scope     TransactionScope
	validator *invoicing.StatusValidator
	publisher shared.EventPublisher
	now       Clock
}

// NewStatusService creates a new StatusService
func NewStatusService(scope TransactionScope, validator *invoicing.StatusValidator) *StatusService {
	if validator == nil {
		validator = invoicing.DefaultStatusValidator()
	}
	return &StatusService{scope: scope, validator: validator, now: SystemClock}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StatusService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock replaces the time source
func (s *StatusService) SetClock(clock Clock) {
	s.now = clock
}

// ChangeStatus validates and applies a transition in one atomic unit
// together with its audit record.
func (s *StatusService) ChangeStatus(ctx context.Context, in ChangeStatusInput) (*invoicing.Transition, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_status", "change")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, in.InvoiceID.String(),
		telemetry.SpanAttrInvoiceStatus, in.TargetStatus,
	)

	target, err := invoicing.ParseStatus(in.TargetStatus)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	var tr invoicing.Transition
	inv, err := mutateInvoice(ctx, s.scope, in.TenantID, in.InvoiceID, now,
		func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
			entry, applied, err := applyTransition(inv, s.validator, target, in.ActorID, in.Reason, now)
			tr = applied
			if err != nil {
				return nil, err
			}
			return []audit.Entry{entry}, nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishDomainEvents(ctx, s.publisher, inv)
	return &tr, nil
}

// applyTransition runs the validator-checked transition and builds its audit entry
func applyTransition(inv *invoicing.Invoice, validator *invoicing.StatusValidator, target invoicing.InvoiceStatus, actorID uuid.UUID, reason string, now time.Time) (audit.Entry, invoicing.Transition, error) {
	before := inv.Snapshot()
	tr, err := inv.TransitionTo(target, validator, reason, now)
	if err != nil {
		return audit.Entry{}, invoicing.Transition{}, err
	}
	return statusEntry(inv, actorID, before, tr, reason, false), tr, nil
}
