// Package audit holds the append-only audit trail of invoicing mutations.
package audit

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// Action names an audited operation
type Action string

const (
	ActionInvoiceCreated      Action = "INVOICE_CREATED"
	ActionInvoiceUpdated      Action = "INVOICE_UPDATED"
	ActionTaxFinalized        Action = "TAX_FINALIZED"
	ActionStatusChanged       Action = "STATUS_CHANGED"
	ActionPaymentApplied      Action = "PAYMENT_APPLIED"
	ActionPaymentVerified     Action = "PAYMENT_VERIFIED"
	ActionPaymentReversed     Action = "PAYMENT_REVERSED"
	ActionInvoiceDeleted      Action = "INVOICE_DELETED"
	ActionReminderQueued      Action = "REMINDER_QUEUED"
	ActionBulkOperation       Action = "BULK_OPERATION"
	ActionReadAccess          Action = "READ_ACCESS"
	ActionReconciliationSweep Action = "RECONCILIATION_SWEEP"
)

// Entity types recorded in the trail
const (
	EntityInvoice        = "invoice"
	EntityBulkOperation  = "bulk_operation"
	EntityReconciliation = "reconciliation"
)

// Change is a single field difference between two snapshots
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Record is an immutable audit entry. A nil ActorID denotes the system.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty"`
	EntityType string            `json:"entity_type"`
	EntityID   uuid.UUID         `json:"entity_id"`
	Action     Action            `json:"action"`
	Before     map[string]any    `json:"before,omitempty"`
	After      map[string]any    `json:"after,omitempty"`
	Changes    map[string]Change `json:"changes,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Entry describes an audit entry before it is stamped
type Entry struct {
	TenantID   uuid.UUID
	ActorID    uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     Action
	Before     map[string]any
	After      map[string]any
	Reason     string
	Metadata   map[string]any
}

// NewRecord validates an entry and stamps identity, time and the field diff
func NewRecord(e Entry, now time.Time) (*Record, error) {
	if e.TenantID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_AUDIT_RECORD", "audit record requires a tenant")
	}
	if e.EntityType == "" || e.Action == "" {
		return nil, shared.NewValidationError("INVALID_AUDIT_RECORD",
			fmt.Sprintf("audit record requires entity type and action (got %q, %q)", e.EntityType, e.Action))
	}

	r := &Record{
		ID:         uuid.New(),
		TenantID:   e.TenantID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Before:     e.Before,
		After:      e.After,
		Changes:    Diff(e.Before, e.After),
		Reason:     e.Reason,
		Metadata:   e.Metadata,
		Timestamp:  now.UTC(),
	}
	if e.ActorID != uuid.Nil {
		actor := e.ActorID
		r.ActorID = &actor
	}
	return r, nil
}

// IsSystem returns true if no user initiated the change
func (r *Record) IsSystem() bool {
	return r.ActorID == nil
}

// Diff returns the fields whose values differ between two snapshots.
// Keys present in only one snapshot are reported with a nil counterpart.
func Diff(before, after map[string]any) map[string]Change {
	if before == nil && after == nil {
		return nil
	}
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	changes := make(map[string]Change)
	for k := range keys {
		from, to := before[k], after[k]
		if !reflect.DeepEqual(from, to) {
			changes[k] = Change{From: from, To: to}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// ChangedFields returns the names of changed fields in sorted order
func (r *Record) ChangedFields() []string {
	fields := make([]string, 0, len(r.Changes))
	for k := range r.Changes {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
