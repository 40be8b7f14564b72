package invoicing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	testTenant = uuid.MustParse("7f0c3c1e-2f4a-4f53-9d7e-0d6c5e1a9b01")
	testActor  = uuid.MustParse("0b8e2f1d-6c3a-4a57-8b1e-9f2d7c4e5a02")
)

func fixedClock() time.Time { return testNow }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// In-memory invoice repository
// =============================================================================

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*invoicing.Invoice
	// onSave runs before a save is applied; a non-nil error aborts it
	onSave func(ctx context.Context, inv *invoicing.Invoice) error
	saves  int
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: make(map[uuid.UUID]*invoicing.Invoice)}
}

func cloneInvoice(inv *invoicing.Invoice) *invoicing.Invoice {
	c := *inv
	c.LineItems = append([]invoicing.LineItem(nil), inv.LineItems...)
	c.Payments = append([]invoicing.Payment(nil), inv.Payments...)
	c.ClearDomainEvents()
	c.MarkLoaded()
	return &c
}

func (r *memInvoiceRepo) put(inv *invoicing.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.MarkLoaded()
	r.invoices[inv.ID] = cloneInvoice(inv)
}

func (r *memInvoiceRepo) get(id uuid.UUID) *invoicing.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		return cloneInvoice(inv)
	}
	return nil
}

func (r *memInvoiceRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, shared.NewNotFoundError("invoice")
	}
	return cloneInvoice(inv), nil
}

func (r *memInvoiceRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *memInvoiceRepo) FindByIDsForTenant(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]invoicing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invoicing.Invoice, 0, len(ids))
	for _, id := range ids {
		if inv, ok := r.invoices[id]; ok && inv.TenantID == tenantID {
			out = append(out, *cloneInvoice(inv))
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]invoicing.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, inv.Status) {
			continue
		}
		if filter.OverdueAsOf != nil && !inv.IsOverdue(*filter.OverdueAsOf) {
			continue
		}
		out = append(out, *cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, int64(len(out)), nil
}

func (r *memInvoiceRepo) FindIDsByStatus(_ context.Context, tenantID uuid.UUID, statuses []invoicing.InvoiceStatus, dueBefore time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for _, inv := range r.invoices {
		if inv.TenantID != tenantID || !containsStatus(statuses, inv.Status) {
			continue
		}
		if !dueBefore.IsZero() && !inv.DueDate.Before(dueBefore) {
			continue
		}
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *memInvoiceRepo) ExistsByNumber(_ context.Context, tenantID uuid.UUID, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.InvoiceNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *memInvoiceRepo) Save(ctx context.Context, inv *invoicing.Invoice) error {
	if r.onSave != nil {
		if err := r.onSave(ctx, inv); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !inv.IsNew() {
		stored, ok := r.invoices[inv.ID]
		if !ok {
			return shared.NewNotFoundError("invoice")
		}
		if stored.Version != inv.LoadedVersion() {
			return shared.NewConcurrencyConflict("invoice")
		}
	}
	r.saves++
	inv.MarkLoaded()
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *memInvoiceRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return shared.NewNotFoundError("invoice")
	}
	delete(r.invoices, id)
	return nil
}

func containsStatus(statuses []invoicing.InvoiceStatus, s invoicing.InvoiceStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// =============================================================================
// In-memory audit repository
// =============================================================================

type memAuditRepo struct {
	mu      sync.Mutex
	records []*audit.Record
	err     error
}

func (r *memAuditRepo) Create(_ context.Context, record *audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, record)
	return nil
}

func (r *memAuditRepo) CreateBatch(ctx context.Context, records []*audit.Record) error {
	for _, rec := range records {
		if err := r.Create(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *memAuditRepo) FindForTenant(_ context.Context, tenantID uuid.UUID, filter audit.Filter) ([]audit.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Record, 0)
	for _, rec := range r.records {
		if rec.TenantID != tenantID {
			continue
		}
		if filter.EntityID != nil && rec.EntityID != *filter.EntityID {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		out = append(out, *rec)
	}
	return out, int64(len(out)), nil
}

func (r *memAuditRepo) byAction(action audit.Action) []*audit.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Record
	for _, rec := range r.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

// =============================================================================
// Mocks
// =============================================================================

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Enqueue(ctx context.Context, intent ReminderIntent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// =============================================================================
// Fixtures
// =============================================================================

type fixture struct {
	invoices *memInvoiceRepo
	audit    *memAuditRepo
	scope    *NoOpTransactionScope
}

func newFixture() *fixture {
	invoices := newMemInvoiceRepo()
	auditRepo := &memAuditRepo{}
	return &fixture{
		invoices: invoices,
		audit:    auditRepo,
		scope:    NewNoOpTransactionScope(invoices, auditRepo),
	}
}

var invoiceSeq int

// seedInvoice stores an invoice of the given total and status. Statuses
// past SENT are reached through validated transitions; PAID gets a full
// verified payment.
func (f *fixture) seedInvoice(t *testing.T, total string, status invoicing.InvoiceStatus) *invoicing.Invoice {
	t.Helper()
	invoiceSeq++
	inv, err := invoicing.NewInvoice(testTenant, invoicing.InvoiceParams{
		InvoiceNumber: fmt.Sprintf("INV-%04d", invoiceSeq),
		CustomerName:  "Acme Trading LLC",
		CustomerEmail: "billing@acme.example",
		Currency:      "AED",
		DueDate:       testNow.Add(14 * 24 * time.Hour),
		Items: []invoicing.LineItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: dec(total), TaxRate: decimal.Zero},
		},
	})
	require.NoError(t, err)
	inv.CreatedAt = testNow.Add(-24 * time.Hour)

	validator := invoicing.DefaultStatusValidator()
	move := func(target invoicing.InvoiceStatus) {
		_, err := inv.TransitionTo(target, validator, "seed", testNow)
		require.NoError(t, err)
	}
	switch status {
	case invoicing.StatusDraft:
	case invoicing.StatusPaid:
		move(invoicing.StatusSent)
		p, err := invoicing.NewPayment(inv, invoicing.PaymentParams{Amount: inv.TotalAmount, Verified: true}, testNow)
		require.NoError(t, err)
		_, err = invoicing.NewReconciler(validator, "").ApplyPayment(inv, p, testNow)
		require.NoError(t, err)
	case invoicing.StatusCancelled:
		move(invoicing.StatusCancelled)
	default:
		move(invoicing.StatusSent)
		if status != invoicing.StatusSent {
			move(status)
		}
	}
	inv.ClearDomainEvents()
	f.invoices.put(inv)
	return inv
}

func draftParams(number string) invoicing.InvoiceParams {
	return invoicing.InvoiceParams{
		InvoiceNumber: number,
		CustomerName:  "Globex FZE",
		CustomerEmail: "ap@globex.example",
		TaxID:         "TRN-100200300",
		Currency:      "AED",
		DueDate:       testNow.Add(30 * 24 * time.Hour),
		Items: []invoicing.LineItemInput{
			{Description: "Licence", Quantity: dec("2"), UnitPrice: dec("450.00"), TaxRate: dec("5")},
			{Description: "Support", Quantity: dec("1"), UnitPrice: dec("100.00"), TaxRate: dec("5")},
		},
	}
}
