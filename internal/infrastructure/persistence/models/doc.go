// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
// - base.go: Base persistence models (BaseModel, TenantAggregateModel)
// - invoice.go: Invoice aggregate with line items and payments
// - audit.go: Append-only audit records
package models
