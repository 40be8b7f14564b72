// Package invoicing orchestrates invoice lifecycle operations: each mutation
// runs in one atomic unit that loads the invoice under a row lock, applies the
// domain rules, saves with a version check and appends the audit record.
package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// Clock returns the current time
type Clock func() time.Time

// SystemClock returns the current UTC time
func SystemClock() time.Time {
	return time.Now().UTC()
}

// mutation changes a locked invoice and returns the audit entries describing it
type mutation func(repos TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error)

// mutateInvoice runs fn against the invoice inside one unit. The invoice is
// saved before its audit entries are appended; both commit together.
func mutateInvoice(ctx context.Context, scope TransactionScope, tenantID, invoiceID uuid.UUID, now time.Time, fn mutation) (*invoicing.Invoice, error) {
	var result *invoicing.Invoice
	err := scope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		entries, err := fn(repos, inv)
		if err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := appendAudit(ctx, repos.AuditLog(), entry, now); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// publishDomainEvents publishes and clears the events raised by the invoice
func publishDomainEvents(ctx context.Context, publisher shared.EventPublisher, inv *invoicing.Invoice) {
	if publisher == nil || inv == nil {
		return
	}
	events := inv.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish events (errors are logged by the event bus, not propagated)
	_ = publisher.Publish(ctx, events...)
	inv.ClearDomainEvents()
}

// statusEntry builds the audit entry of a status change. System changes
// carry no actor; the user that triggered them is kept in the metadata.
func statusEntry(inv *invoicing.Invoice, actorID uuid.UUID, before map[string]any, tr invoicing.Transition, reason string, system bool) audit.Entry {
	entry := invoiceEntry(inv, actorID, audit.ActionStatusChanged, before, reason)
	entry.Metadata = map[string]any{
		"from":   tr.From.String(),
		"to":     tr.To.String(),
		"system": system,
	}
	if system {
		entry.ActorID = uuid.Nil
		if actorID != uuid.Nil {
			entry.Metadata["triggered_by"] = actorID.String()
		}
	}
	return entry
}
