package persistence

import (
	"context"

	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantLister discovers tenants that own invoices. Background jobs use
// it to fan out per-tenant work.
type GormTenantLister struct {
	db *gorm.DB
}

// NewGormTenantLister creates a new GormTenantLister
func NewGormTenantLister(db *gorm.DB) *GormTenantLister {
	return &GormTenantLister{db: db}
}

// ListTenantIDs returns every tenant with at least one invoice
func (l *GormTenantLister) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := l.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
