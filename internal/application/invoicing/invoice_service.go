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

// CreateInvoiceInput is the input for creating a draft invoice
type CreateInvoiceInput struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	Params   invoicing.InvoiceParams
}

// UpdateInvoiceInput replaces the editable fields of a draft
type UpdateInvoiceInput struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	InvoiceID uuid.UUID
	Params    invoicing.InvoiceParams
}

// InvoiceRef identifies an invoice and the user acting on it
type InvoiceRef struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	InvoiceID uuid.UUID
}

// ListInvoicesQuery filters invoice listings
type ListInvoicesQuery struct {
	Statuses []string
	Overdue  bool
	Customer string
	Search   string
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// InvoiceService handles invoice creation, draft editing, deletion and queries
type InvoiceService struct {
	scope     TransactionScope
	invoices  invoicing.InvoiceRepository
	deletion  invoicing.DeletionPolicy
	publisher shared.EventPublisher
	now       Clock
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(scope TransactionScope, invoices invoicing.InvoiceRepository, deletion invoicing.DeletionPolicy) *InvoiceService {
	return &InvoiceService{
		scope:    scope,
		invoices: invoices,
		deletion: deletion,
		now:      SystemClock,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock replaces the time source
func (s *InvoiceService) SetClock(clock Clock) {
	s.now = clock
}

// Create creates a DRAFT invoice with calculated totals
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	inv, err := invoicing.NewInvoice(in.TenantID, in.Params)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.ActorID != uuid.Nil {
		inv.SetCreatedBy(in.ActorID)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, inv.ID.String(),
		telemetry.SpanAttrInvoiceNumber, inv.InvoiceNumber,
		telemetry.SpanAttrAmount, inv.TotalAmount.String(),
	)

	now := s.now()
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Invoices().ExistsByNumber(ctx, in.TenantID, inv.InvoiceNumber)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewBusinessRuleViolation(invoicing.CodeDuplicateInvoiceNumber,
				"invoice number already exists: "+inv.InvoiceNumber)
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}
		return appendAudit(ctx, repos.AuditLog(), invoiceEntry(inv, in.ActorID, audit.ActionInvoiceCreated, nil, ""), now)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishDomainEvents(ctx, s.publisher, inv)
	resp := ToInvoiceResponse(inv, now)
	return &resp, nil
}

// UpdateDraft replaces the fields and line items of a DRAFT invoice
func (s *InvoiceService) UpdateDraft(ctx context.Context, in UpdateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_draft")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, in.InvoiceID.String())

	now := s.now()
	inv, err := mutateInvoice(ctx, s.scope, in.TenantID, in.InvoiceID, now,
		func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
			before := inv.Snapshot()
			if err := inv.UpdateDraft(in.Params, now); err != nil {
				return nil, err
			}
			return []audit.Entry{invoiceEntry(inv, in.ActorID, audit.ActionInvoiceUpdated, before, "")}, nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := ToInvoiceResponse(inv, now)
	return &resp, nil
}

// FinalizeTax locks the tax amount of an invoice
func (s *InvoiceService) FinalizeTax(ctx context.Context, ref InvoiceRef) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "finalize_tax")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, ref.InvoiceID.String())

	now := s.now()
	inv, err := mutateInvoice(ctx, s.scope, ref.TenantID, ref.InvoiceID, now,
		func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
			before := inv.Snapshot()
			if err := inv.FinalizeTax(now); err != nil {
				return nil, err
			}
			return []audit.Entry{invoiceEntry(inv, ref.ActorID, audit.ActionTaxFinalized, before, "")}, nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := ToInvoiceResponse(inv, now)
	return &resp, nil
}

// CheckDeletion reports whether an invoice may be deleted and why not
func (s *InvoiceService) CheckDeletion(ctx context.Context, tenantID, invoiceID uuid.UUID) (invoicing.DeletionDecision, error) {
	inv, err := s.invoices.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return invoicing.DeletionDecision{}, err
	}
	return s.deletion.Check(inv, s.now()), nil
}

// Delete removes an eligible invoice with its line items and payments.
// Its audit records are kept.
func (s *InvoiceService) Delete(ctx context.Context, ref InvoiceRef, reason string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, ref.InvoiceID.String())

	now := s.now()
	var deleted *invoicing.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := deleteInvoice(ctx, repos, s.deletion, ref, reason, now)
		deleted = inv
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	publishDomainEvents(ctx, s.publisher, deleted)
	return nil
}

// deleteInvoice checks eligibility and deletes within the current unit
func deleteInvoice(ctx context.Context, repos TransactionalRepositories, policy invoicing.DeletionPolicy, ref InvoiceRef, reason string, now time.Time) (*invoicing.Invoice, error) {
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, ref.TenantID, ref.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(inv, now).Err(); err != nil {
		return nil, err
	}
	before := inv.Snapshot()
	if err := repos.Invoices().Delete(ctx, ref.TenantID, ref.InvoiceID); err != nil {
		return nil, err
	}
	entry := invoiceEntry(inv, ref.ActorID, audit.ActionInvoiceDeleted, before, reason)
	entry.After = nil
	if err := appendAudit(ctx, repos.AuditLog(), entry, now); err != nil {
		return nil, err
	}
	inv.AddDomainEvent(invoicing.NewInvoiceDeletedEvent(inv))
	return inv, nil
}

// GetByID retrieves an invoice with its line items and payments
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoices.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, s.now())
	return &resp, nil
}

// List lists invoices matching the query
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, q ListInvoicesQuery) (shared.Paginated[InvoiceResponse], error) {
	filter := invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), Customer: q.Customer}
	filter.Search = q.Search
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = min(q.PageSize, 100)
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	for _, name := range q.Statuses {
		status, err := invoicing.ParseStatus(name)
		if err != nil {
			return shared.Paginated[InvoiceResponse]{}, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	now := s.now()
	if q.Overdue {
		filter.OverdueAsOf = &now
	}

	invoices, total, err := s.invoices.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[InvoiceResponse]{}, err
	}
	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
