package persistence

import (
	"context"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/erp/invoicing/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// auditBatchSize bounds rows per INSERT statement in CreateBatch
const auditBatchSize = 100

// GormAuditRecordRepository implements audit.Repository using GORM.
// It only ever inserts and reads.
type GormAuditRecordRepository struct {
	db *gorm.DB
}

// NewGormAuditRecordRepository creates a new GormAuditRecordRepository
func NewGormAuditRecordRepository(db *gorm.DB) *GormAuditRecordRepository {
	return &GormAuditRecordRepository{db: db}
}

// Create appends an audit record
func (r *GormAuditRecordRepository) Create(ctx context.Context, record *audit.Record) error {
	return r.db.WithContext(ctx).Create(models.AuditRecordModelFromDomain(record)).Error
}

// CreateBatch appends several audit records
func (r *GormAuditRecordRepository) CreateBatch(ctx context.Context, records []*audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	recordModels := make([]*models.AuditRecordModel, len(records))
	for i, record := range records {
		recordModels[i] = models.AuditRecordModelFromDomain(record)
	}
	return r.db.WithContext(ctx).CreateInBatches(recordModels, auditBatchSize).Error
}

// FindForTenant lists audit records matching the filter with the total count
func (r *GormAuditRecordRepository) FindForTenant(ctx context.Context, tenantID uuid.UUID, filter audit.Filter) ([]audit.Record, int64, error) {
	query := tenant.ForTenant(ctx, r.db, tenantID).Model(&models.AuditRecordModel{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.From != nil {
		query = query.Where("recorded_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("recorded_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, AuditRecordSortFields, "recorded_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	page := query.Session(&gorm.Session{}).Order(orderBy + " " + orderDir).Order("id ASC")
	if filter.PageSize > 0 {
		page = page.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var recordModels []models.AuditRecordModel
	if err := page.Find(&recordModels).Error; err != nil {
		return nil, 0, err
	}
	records := make([]audit.Record, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, total, nil
}
