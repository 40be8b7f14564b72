package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// appendAudit stamps an entry and writes it through the repository of the
// current unit, so the record commits or rolls back with the change.
func appendAudit(ctx context.Context, repo audit.Repository, entry audit.Entry, now time.Time) error {
	record, err := audit.NewRecord(entry, now)
	if err != nil {
		return err
	}
	return repo.Create(ctx, record)
}

// invoiceEntry builds an audit entry for an invoice mutation
func invoiceEntry(inv *invoicing.Invoice, actorID uuid.UUID, action audit.Action, before map[string]any, reason string) audit.Entry {
	return audit.Entry{
		TenantID:   inv.TenantID,
		ActorID:    actorID,
		EntityType: audit.EntityInvoice,
		EntityID:   inv.ID,
		Action:     action,
		Before:     before,
		After:      inv.Snapshot(),
		Reason:     reason,
	}
}

// AuditQuery selects audit records
type AuditQuery struct {
	EntityType string
	EntityID   *uuid.UUID
	Action     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// AuditService reads the audit trail
type AuditService struct {
	repo audit.Repository
}

// NewAuditService creates a new AuditService
func NewAuditService(repo audit.Repository) *AuditService {
	return &AuditService{repo: repo}
}

// List returns audit records for a tenant, newest first
func (s *AuditService) List(ctx context.Context, tenantID uuid.UUID, q AuditQuery) (shared.Paginated[audit.Record], error) {
	filter := audit.Filter{
		Filter:     shared.DefaultFilter(),
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Action:     audit.Action(q.Action),
		From:       q.From,
		To:         q.To,
	}
	filter.OrderBy = "recorded_at"
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = min(q.PageSize, 100)
	}

	records, total, err := s.repo.FindForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[audit.Record]{}, err
	}
	return shared.NewPaginated(records, total, filter.Page, filter.PageSize), nil
}
