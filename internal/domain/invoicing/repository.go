package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	Statuses    []InvoiceStatus
	OverdueAsOf *time.Time
	Customer    string
}

// InvoiceRepository persists invoice aggregates together with their line
// items and payments. Every read is tenant-scoped; an invoice outside the
// tenant is reported exactly like a missing one.
type InvoiceRepository interface {
	// FindByIDForTenant loads an invoice with line items and payments
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads an invoice and locks its row until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDsForTenant loads every listed invoice that belongs to the
	// tenant. Missing IDs are simply absent from the result.
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Invoice, error)

	// FindAllForTenant lists invoices matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindIDsByStatus returns IDs of invoices in any of the statuses whose
	// due date is before dueBefore (zero time disables the bound)
	FindIDsByStatus(ctx context.Context, tenantID uuid.UUID, statuses []InvoiceStatus, dueBefore time.Time) ([]uuid.UUID, error)

	// ExistsByNumber checks invoice number uniqueness within a tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)

	// Save creates or updates the invoice, its line items and payments.
	// Updates are checked against the loaded version and fail with a
	// concurrency conflict when another writer got there first.
	Save(ctx context.Context, inv *Invoice) error

	// Delete removes the invoice with its line items and payments
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
