// Package tenant provides multi-tenant database scoping for GORM.
//
// Every invoicing query is filtered by tenant_id so that an invoice owned by
// another tenant is indistinguishable from a missing one.
//
// Usage:
//
//	db := tenant.ForTenant(ctx, gormDB, tenantID)
//	db.Find(&invoices) // WHERE tenant_id = 'xxx' is auto-added
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTenantIDRequired is returned when a query is issued without a tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// Column is the tenant discriminator column shared by tenant-scoped tables
const Column = "tenant_id"

// TenantScope applies tenant filtering to GORM queries. The column is
// qualified with the current table so joins and preloads stay unambiguous.
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: Column},
			Value:  tenantID,
		})
	}
}

// ForTenant returns a context-bound DB scoped to tenantID. A nil tenant
// yields a DB that fails on execution.
func ForTenant(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) *gorm.DB {
	scoped := db.WithContext(ctx)
	if tenantID == uuid.Nil {
		_ = scoped.AddError(ErrTenantIDRequired)
		return scoped
	}
	return scoped.Scopes(TenantScope(tenantID))
}
