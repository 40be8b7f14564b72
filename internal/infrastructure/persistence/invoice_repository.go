package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/erp/invoicing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant loads an invoice with its line items and payments
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.findOne(tenant.ForTenant(ctx, r.db, tenantID), id)
}

// FindByIDForUpdate loads an invoice and takes a row lock on PostgreSQL.
// Other dialects rely on the version check in Save alone.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	query := tenant.ForTenant(ctx, r.db, tenantID)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return r.findOne(query, id)
}

func (r *GormInvoiceRepository) findOne(query *gorm.DB, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := preloadChildren(query).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForTenant loads the listed invoices that belong to the tenant
func (r *GormInvoiceRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]invoicing.Invoice, error) {
	if len(ids) == 0 {
		return []invoicing.Invoice{}, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := preloadChildren(tenant.ForTenant(ctx, r.db, tenantID)).
		Where("id IN ?", ids).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(invoiceModels), nil
}

// FindAllForTenant lists invoices matching the filter with the total count
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	base := r.applyFilter(tenant.ForTenant(ctx, r.db, tenantID).Model(&models.InvoiceModel{}), filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query := base.Session(&gorm.Session{}).Order(orderBy + " " + orderDir).Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var invoiceModels []models.InvoiceModel
	if err := preloadChildren(query).Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainInvoices(invoiceModels), total, nil
}

// FindIDsByStatus returns IDs of invoices in the given statuses, optionally
// restricted to those due before dueBefore
func (r *GormInvoiceRepository) FindIDsByStatus(ctx context.Context, tenantID uuid.UUID, statuses []invoicing.InvoiceStatus, dueBefore time.Time) ([]uuid.UUID, error) {
	query := tenant.ForTenant(ctx, r.db, tenantID).Model(&models.InvoiceModel{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if !dueBefore.IsZero() {
		query = query.Where("due_date < ?", dueBefore)
	}

	var ids []uuid.UUID
	if err := query.Order("due_date ASC").Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ExistsByNumber checks if an invoice number is taken within a tenant
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error) {
	var count int64
	if err := tenant.ForTenant(ctx, r.db, tenantID).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", strings.TrimSpace(number)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates the invoice with its line items and payments.
// Updates are checked against the version the aggregate was loaded at; a
// stale aggregate fails with a concurrency conflict and nothing is written.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if inv.IsNew() {
			if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
				return err
			}
		} else {
			result := tx.Model(&models.InvoiceModel{}).
				Where("id = ? AND tenant_id = ? AND version = ?", inv.ID, inv.TenantID, inv.LoadedVersion()).
				Updates(map[string]any{
					"customer_name":    model.CustomerName,
					"customer_email":   model.CustomerEmail,
					"tax_id":           model.TaxID,
					"subtotal":         model.Subtotal,
					"tax_amount":       model.TaxAmount,
					"total_amount":     model.TotalAmount,
					"currency":         model.Currency,
					"status":           model.Status,
					"due_date":         model.DueDate,
					"notes":            model.Notes,
					"sent_at":          model.SentAt,
					"paid_at":          model.PaidAt,
					"tax_finalized_at": model.TaxFinalizedAt,
					"version":          model.Version,
					"updated_at":       model.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.NewConcurrencyConflict("invoice")
			}
		}
		return saveChildren(tx, model)
	})
	if err != nil {
		return err
	}

	inv.MarkLoaded()
	return nil
}

// saveChildren replaces line items and upserts payments. Payments are never
// removed; only their verification and reversal columns change.
func saveChildren(tx *gorm.DB, model *models.InvoiceModel) error {
	if err := tx.Where("invoice_id = ?", model.ID).Delete(&models.InvoiceLineItemModel{}).Error; err != nil {
		return err
	}
	if len(model.LineItems) > 0 {
		if err := tx.Create(&model.LineItems).Error; err != nil {
			return err
		}
	}
	if len(model.Payments) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"verified", "verified_at", "reversed_at", "reversal_reason"}),
		}).Create(&model.Payments).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the invoice together with its line items and payments.
// Audit records are kept.
func (r *GormInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Scopes(tenant.TenantScope(tenantID)).
			Where("id = ?", id).
			Delete(&models.InvoiceModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewNotFoundError("invoice")
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoicePaymentModel{}).Error; err != nil {
			return err
		}
		return tx.Where("invoice_id = ?", id).Delete(&models.InvoiceLineItemModel{}).Error
	})
}

// applyFilter applies the invoice filter without ordering or pagination
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.OverdueAsOf != nil {
		query = query.Where("status IN ? AND due_date < ?",
			[]invoicing.InvoiceStatus{invoicing.StatusSent, invoicing.StatusOverdue, invoicing.StatusDisputed},
			*filter.OverdueAsOf)
	}
	if customer := strings.TrimSpace(filter.Customer); customer != "" {
		query = query.Where("LOWER(customer_name) LIKE ?", "%"+strings.ToLower(customer)+"%")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ?",
			like, like, like)
	}
	return query
}

func preloadChildren(query *gorm.DB) *gorm.DB {
	return query.
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		})
}

func toDomainInvoices(invoiceModels []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}
