package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sweepChunkSize bounds how many invoices a sweep loads at once
const sweepChunkSize = 500

// errUnchanged aborts a unit whose invoice needs no change
var errUnchanged = errors.New("invoice unchanged")

// OverdueReport summarizes one overdue marking run
type OverdueReport struct {
	TenantID   uuid.UUID        `json:"tenant_id"`
	AsOf       time.Time        `json:"as_of"`
	Candidates int              `json:"candidates"`
	Marked     []uuid.UUID      `json:"marked"`
	Failures   []BulkItemResult `json:"failures,omitempty"`
}

// SweepDiscrepancy is an invoice whose payments do not match its status
type SweepDiscrepancy struct {
	InvoiceID     uuid.UUID                      `json:"invoice_id"`
	InvoiceNumber string                         `json:"invoice_number"`
	Status        string                         `json:"status"`
	TotalAmount   decimal.Decimal                `json:"total_amount"`
	TotalPaid     decimal.Decimal                `json:"total_paid"`
	Discrepancy   decimal.Decimal                `json:"discrepancy"`
	Result        invoicing.ReconciliationResult `json:"result"`
}

// SweepReport is the outcome of a reconciliation sweep over a tenant
type SweepReport struct {
	SweepID       uuid.UUID                              `json:"sweep_id"`
	TenantID      uuid.UUID                              `json:"tenant_id"`
	Checked       int                                    `json:"checked"`
	Counts        map[invoicing.ReconciliationResult]int `json:"counts"`
	Discrepancies []SweepDiscrepancy                     `json:"discrepancies"`
	StartedAt     time.Time                              `json:"started_at"`
	FinishedAt    time.Time                              `json:"finished_at"`
}

// ReconciliationService runs tenant-wide reconciliation jobs
type ReconciliationService struct {
	scope     TransactionScope
	invoices  invoicing.InvoiceRepository
	validator *invoicing.StatusValidator
	publisher shared.EventPublisher
	now       Clock
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(scope TransactionScope, invoices invoicing.InvoiceRepository, validator *invoicing.StatusValidator) *ReconciliationService {
	if validator == nil {
		validator = invoicing.DefaultStatusValidator()
	}
	return &ReconciliationService{
		scope:     scope,
		invoices:  invoices,
		validator: validator,
		now:       SystemClock,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReconciliationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock replaces the time source
func (s *ReconciliationService) SetClock(clock Clock) {
	s.now = clock
}

// MarkOverdue moves SENT invoices past their due date to OVERDUE, one unit
// per invoice. Rule violations are reported per invoice; infrastructure
// failures stop the run.
func (s *ReconciliationService) MarkOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*OverdueReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "mark_overdue")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	ids, err := s.invoices.FindIDsByStatus(ctx, tenantID, []invoicing.InvoiceStatus{invoicing.StatusSent}, asOf)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &OverdueReport{TenantID: tenantID, AsOf: asOf, Candidates: len(ids), Marked: []uuid.UUID{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		now := s.now()
		inv, err := mutateInvoice(ctx, s.scope, tenantID, id, now,
			func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
				if inv.Status != invoicing.StatusSent || !inv.IsOverdue(asOf) {
					return nil, errUnchanged
				}
				before := inv.Snapshot()
				tr, err := inv.TransitionTo(invoicing.StatusOverdue, s.validator, "due date passed", now)
				if err != nil {
					return nil, err
				}
				return []audit.Entry{statusEntry(inv, uuid.Nil, before, tr, "due date passed", true)}, nil
			})
		switch {
		case err == nil:
			report.Marked = append(report.Marked, id)
			publishDomainEvents(ctx, s.publisher, inv)
		case errors.Is(err, errUnchanged):
		case shared.KindOf(err) == shared.KindInfrastructure:
			telemetry.RecordError(span, err)
			return report, err
		default:
			report.Failures = append(report.Failures, failedItem(id, err))
		}
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrItemCount, len(report.Marked))
	return report, nil
}

// Sweep audits every non-draft invoice of a tenant, records one audit entry
// for the run and returns counts per classification. Invoices that are
// overpaid, or PAID without reaching the threshold, are listed as
// discrepancies.
func (s *ReconciliationService) Sweep(ctx context.Context, tenantID, actorID uuid.UUID) (*SweepReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "sweep")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrTenantID, tenantID.String())

	report := &SweepReport{
		SweepID:   uuid.New(),
		TenantID:  tenantID,
		Counts:    make(map[invoicing.ReconciliationResult]int),
		StartedAt: s.now(),
	}

	statuses := make([]invoicing.InvoiceStatus, 0, len(invoicing.AllStatuses)-1)
	for _, st := range invoicing.AllStatuses {
		if st != invoicing.StatusDraft {
			statuses = append(statuses, st)
		}
	}
	ids, err := s.invoices.FindIDsByStatus(ctx, tenantID, statuses, time.Time{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for start := 0; start < len(ids); start += sweepChunkSize {
		end := min(start+sweepChunkSize, len(ids))
		invoices, err := s.invoices.FindByIDsForTenant(ctx, tenantID, ids[start:end])
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		for i := range invoices {
			s.sweepOne(report, &invoices[i])
		}
	}
	report.FinishedAt = s.now()

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return appendAudit(ctx, repos.AuditLog(), audit.Entry{
			TenantID:   tenantID,
			ActorID:    actorID,
			EntityType: audit.EntityReconciliation,
			EntityID:   report.SweepID,
			Action:     audit.ActionReconciliationSweep,
			Metadata: map[string]any{
				"checked":       report.Checked,
				"reconciled":    report.Counts[invoicing.ResultReconciled],
				"overpaid":      report.Counts[invoicing.ResultOverpaid],
				"underpaid":     report.Counts[invoicing.ResultUnderpaid],
				"discrepancies": len(report.Discrepancies),
			},
		}, report.FinishedAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrItemCount, report.Checked)
	return report, nil
}

func (s *ReconciliationService) sweepOne(report *SweepReport, inv *invoicing.Invoice) {
	result := invoicing.AuditReconciliation(inv)
	report.Checked++
	report.Counts[result.Result]++

	paidShort := inv.Status == invoicing.StatusPaid && !s.validator.IsFullyPaid(result.TotalPaid, result.TotalAmount)
	if result.Result == invoicing.ResultOverpaid || paidShort {
		report.Discrepancies = append(report.Discrepancies, SweepDiscrepancy{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Status:        inv.Status.String(),
			TotalAmount:   result.TotalAmount,
			TotalPaid:     result.TotalPaid,
			Discrepancy:   result.Discrepancy,
			Result:        result.Result,
		})
	}
}
