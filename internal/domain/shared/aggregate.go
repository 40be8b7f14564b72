package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetTenantID() uuid.UUID
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// TenantAggregateRoot is the base for tenant-scoped aggregates.
// Version backs optimistic locking. It moves at most one step per load, so
// an aggregate mutated several times inside one unit is saved with a single
// version check against LoadedVersion.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID      uuid.UUID
	CreatedBy     *uuid.UUID
	Version       int
	loadedVersion int
	domainEvents  []DomainEvent
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseEntity: NewBaseEntity(),
		TenantID:   tenantID,
		Version:    1,
	}
}

// GetTenantID returns the owning tenant
func (a *TenantAggregateRoot) GetTenantID() uuid.UUID {
	return a.TenantID
}

// GetVersion returns the aggregate version for optimistic locking
func (a *TenantAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion marks the aggregate as changed since it was loaded
func (a *TenantAggregateRoot) IncrementVersion() {
	if a.Version == a.loadedVersion {
		a.Version++
	}
}

// LoadedVersion returns the version read from storage, zero for new aggregates
func (a *TenantAggregateRoot) LoadedVersion() int {
	return a.loadedVersion
}

// IsNew reports whether the aggregate has never been persisted
func (a *TenantAggregateRoot) IsNew() bool {
	return a.loadedVersion == 0
}

// MarkLoaded records the current version as the persisted one.
// Repositories call it after reading or writing the aggregate.
func (a *TenantAggregateRoot) MarkLoaded() {
	a.loadedVersion = a.Version
}

// SetCreatedBy sets the creator user ID
func (a *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	a.CreatedBy = &userID
}

// AddDomainEvent adds a domain event to be published after commit
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
