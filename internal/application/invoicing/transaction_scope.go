package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
)

// TransactionScope provides transactional access to the invoicing repositories.
// Everything done through the repositories handed to fn commits or rolls back
// together; this is the atomic unit used for every invoice mutation.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to repositories sharing one transaction.
//
// Aggregate boundary notes:
//   - Invoices: the Invoice aggregate root. Line items and payments are child
//     entities persisted with the invoice and have no repository of their own.
//   - AuditLog: append-only audit trail. Records written here commit with the
//     invoice change they describe.
type TransactionalRepositories interface {
	Invoices() invoicing.InvoiceRepository
	AuditLog() audit.Repository
}

// NoOpTransactionScope runs without a real transaction.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	invoices invoicing.InvoiceRepository
	auditLog audit.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(invoices invoicing.InvoiceRepository, auditLog audit.Repository) *NoOpTransactionScope {
	return &NoOpTransactionScope{invoices: invoices, auditLog: auditLog}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Invoices returns the invoice repository
func (s *NoOpTransactionScope) Invoices() invoicing.InvoiceRepository {
	return s.invoices
}

// AuditLog returns the audit repository
func (s *NoOpTransactionScope) AuditLog() audit.Repository {
	return s.auditLog
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
