package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/google/uuid"
)

// AuditRecordModel is the persistence model for audit records.
// Audit records are append-only and should not be modified after creation.
// They carry no foreign key to invoices so they outlive deleted invoices.
type AuditRecordModel struct {
	ID         uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID               `gorm:"type:uuid;not null;index"`
	ActorID    *uuid.UUID              `gorm:"type:uuid;index"`
	EntityType string                  `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID               `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Action     audit.Action            `gorm:"type:varchar(40);not null;index"`
	Before     map[string]any          `gorm:"type:jsonb;serializer:json"`
	After      map[string]any          `gorm:"type:jsonb;serializer:json"`
	Changes    map[string]audit.Change `gorm:"type:jsonb;serializer:json"`
	Reason     string                  `gorm:"type:varchar(500)"`
	Metadata   map[string]any          `gorm:"type:jsonb;serializer:json"`
	Timestamp  time.Time               `gorm:"column:recorded_at;not null;index"`
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "audit_records"
}

// ToDomain converts the persistence model to a domain audit Record.
func (m *AuditRecordModel) ToDomain() *audit.Record {
	return &audit.Record{
		ID:         m.ID,
		TenantID:   m.TenantID,
		ActorID:    m.ActorID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		Before:     m.Before,
		After:      m.After,
		Changes:    m.Changes,
		Reason:     m.Reason,
		Metadata:   m.Metadata,
		Timestamp:  m.Timestamp.UTC(),
	}
}

// AuditRecordModelFromDomain creates a new persistence model from a domain audit Record.
func AuditRecordModelFromDomain(r *audit.Record) *AuditRecordModel {
	return &AuditRecordModel{
		ID:         r.ID,
		TenantID:   r.TenantID,
		ActorID:    r.ActorID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Action:     r.Action,
		Before:     r.Before,
		After:      r.After,
		Changes:    r.Changes,
		Reason:     r.Reason,
		Metadata:   r.Metadata,
		Timestamp:  r.Timestamp,
	}
}
