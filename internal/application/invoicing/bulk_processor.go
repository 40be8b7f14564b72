package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// Bulk item failure reasons that are not domain errors
const (
	ReasonNotFound  = "invoice not found or access denied"
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

// BulkItemStatus is the outcome of one item
type BulkItemStatus string

const (
	BulkItemSucceeded BulkItemStatus = "succeeded"
	BulkItemFailed    BulkItemStatus = "failed"
)

// BulkItemResult is the outcome for one requested invoice
type BulkItemResult struct {
	InvoiceID uuid.UUID      `json:"invoice_id"`
	Status    BulkItemStatus `json:"status"`
	Code      string         `json:"code,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// BulkRequest asks for one action over a set of invoices.
// Workers overrides the configured parallelism when positive.
type BulkRequest struct {
	TenantID   uuid.UUID
	ActorID    uuid.UUID
	InvoiceIDs []string
	Action     BulkAction
	Workers    int
}

// BulkResult aggregates the per-item outcomes. Details follow request order.
type BulkResult struct {
	OperationID    uuid.UUID        `json:"operation_id"`
	Action         BulkActionType   `json:"action"`
	RequestedCount int              `json:"requested_count"`
	SuccessCount   int              `json:"success_count"`
	FailedCount    int              `json:"failed_count"`
	Details        []BulkItemResult `json:"details"`
	Summary        *ExportSummary   `json:"summary,omitempty"`
	Export         *ExportResult    `json:"export,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// BulkConfig bounds bulk processing
type BulkConfig struct {
	MaxItems    int
	Workers     int
	ItemTimeout time.Duration
}

// DefaultBulkConfig returns the default bulk limits
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		MaxItems:    500,
		Workers:     8,
		ItemTimeout: 10 * time.Second,
	}
}

// BulkProcessor executes one action over many invoices. Each invoice is
// handled in its own atomic unit on a bounded worker pool; one item's
// failure never affects another.
type BulkProcessor struct {
	scope     TransactionScope
	invoices  invoicing.InvoiceRepository
	validator *invoicing.StatusValidator
	deletion  invoicing.DeletionPolicy
	notifier  Notifier
	templates TemplateResolver
	archive   ExportArchive
	publisher shared.EventPublisher
	observer  BulkObserver
	config    BulkConfig
	now       Clock
}

// BulkProcessorOption configures a BulkProcessor
type BulkProcessorOption func(*BulkProcessor)

// WithNotifier sets where reminder intents are sent
func WithNotifier(n Notifier) BulkProcessorOption {
	return func(p *BulkProcessor) { p.notifier = n }
}

// WithTemplateResolver sets the reminder template resolver
func WithTemplateResolver(r TemplateResolver) BulkProcessorOption {
	return func(p *BulkProcessor) { p.templates = r }
}

// WithExportArchive sets where rendered exports are stored
func WithExportArchive(a ExportArchive) BulkProcessorOption {
	return func(p *BulkProcessor) { p.archive = a }
}

// WithBulkEventPublisher sets the domain event publisher
func WithBulkEventPublisher(pub shared.EventPublisher) BulkProcessorOption {
	return func(p *BulkProcessor) { p.publisher = pub }
}

// WithBulkObserver sets the observer told about finished operations
func WithBulkObserver(o BulkObserver) BulkProcessorOption {
	return func(p *BulkProcessor) { p.observer = o }
}

// WithBulkClock replaces the time source
func WithBulkClock(c Clock) BulkProcessorOption {
	return func(p *BulkProcessor) { p.now = c }
}

// NewBulkProcessor creates a new BulkProcessor
func NewBulkProcessor(
	scope TransactionScope,
	invoices invoicing.InvoiceRepository,
	validator *invoicing.StatusValidator,
	deletion invoicing.DeletionPolicy,
	config BulkConfig,
	opts ...BulkProcessorOption,
) *BulkProcessor {
	defaults := DefaultBulkConfig()
	if config.MaxItems <= 0 {
		config.MaxItems = defaults.MaxItems
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = defaults.ItemTimeout
	}
	if validator == nil {
		validator = invoicing.DefaultStatusValidator()
	}
	p := &BulkProcessor{
		scope:     scope,
		invoices:  invoices,
		validator: validator,
		deletion:  deletion,
		templates: NewStaticTemplateResolver(DefaultReminderTemplate),
		config:    config,
		now:       SystemClock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective limits
func (p *BulkProcessor) Config() BulkConfig {
	return p.config
}

// itemHandler processes one resolved invoice inside its own unit
type itemHandler func(ctx context.Context, inv *invoicing.Invoice) error

// Process validates the request, runs the action on every invoice and
// records one aggregate audit entry. Per-item rule violations, missing
// invoices, conflicts, timeouts and cancellations are reported in the
// details; an infrastructure failure aborts the batch and is returned.
func (p *BulkProcessor) Process(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bulk", "process")
	defer span.End()

	ids, err := p.validate(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrBulkAction, string(req.Action.Type()),
		telemetry.SpanAttrItemCount, len(ids),
	)

	result := &BulkResult{
		OperationID:    uuid.New(),
		Action:         req.Action.Type(),
		RequestedCount: len(ids),
		Details:        make([]BulkItemResult, len(ids)),
		StartedAt:      p.now(),
	}

	found, err := p.invoices.FindByIDsForTenant(ctx, req.TenantID, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	byID := make(map[uuid.UUID]*invoicing.Invoice, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	resolved := make([]*invoicing.Invoice, len(ids))
	for i, id := range ids {
		inv, ok := byID[id]
		if !ok {
			result.Details[i] = BulkItemResult{InvoiceID: id, Status: BulkItemFailed, Code: shared.CodeNotFound, Reason: ReasonNotFound}
			continue
		}
		resolved[i] = inv
	}

	if action, ok := req.Action.(ExportAction); ok {
		err = p.export(ctx, req, action, resolved, result)
	} else {
		var handler itemHandler
		handler, err = p.handlerFor(ctx, req)
		if err == nil {
			err = p.fanOut(ctx, req, resolved, handler, result.Details)
		}
	}
	result.FinishedAt = p.now()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	for _, d := range result.Details {
		if d.Status == BulkItemSucceeded {
			result.SuccessCount++
		} else {
			result.FailedCount++
		}
	}

	// Recorded even when the caller has cancelled
	if err := p.recordOperation(context.WithoutCancel(ctx), req, result); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if p.observer != nil {
		p.observer.BulkOperationCompleted(ctx, string(result.Action), result.SuccessCount, result.FailedCount,
			result.FinishedAt.Sub(result.StartedAt))
	}
	return result, nil
}

// validate checks the request shape and returns the ids with duplicates
// collapsed, keeping first positions.
func (p *BulkProcessor) validate(req BulkRequest) ([]uuid.UUID, error) {
	if req.TenantID == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidBulkRequest, "tenant ID is required")
	}
	if req.Action == nil {
		return nil, shared.NewValidationError(CodeInvalidBulkRequest, "action is required")
	}
	if len(req.InvoiceIDs) == 0 {
		return nil, shared.NewValidationError(CodeInvalidBulkRequest, "invoice IDs cannot be empty")
	}
	if len(req.InvoiceIDs) > p.config.MaxItems {
		return nil, shared.NewValidationError(CodeInvalidBulkRequest,
			fmt.Sprintf("at most %d invoice IDs may be submitted at once, got %d", p.config.MaxItems, len(req.InvoiceIDs)))
	}

	seen := make(map[uuid.UUID]struct{}, len(req.InvoiceIDs))
	ids := make([]uuid.UUID, 0, len(req.InvoiceIDs))
	for i, raw := range req.InvoiceIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || id == uuid.Nil {
			return nil, shared.NewValidationError(CodeInvalidBulkRequest,
				fmt.Sprintf("invoice ID at position %d is not a valid UUID: %q", i, raw))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// handlerFor returns the per-item handler of a mutating action
func (p *BulkProcessor) handlerFor(ctx context.Context, req BulkRequest) (itemHandler, error) {
	switch action := req.Action.(type) {
	case UpdateStatusAction:
		return p.updateStatusHandler(req, action), nil
	case DeleteAction:
		return p.deleteHandler(req, action), nil
	case QueueReminderAction:
		if p.notifier == nil {
			return nil, shared.NewInfrastructureError(errors.New("no reminder notifier configured"))
		}
		templateID, err := p.templates.Resolve(ctx, req.TenantID, action.TemplateID)
		if err != nil {
			return nil, err
		}
		return p.reminderHandler(req, templateID), nil
	}
	return nil, shared.NewValidationError(CodeInvalidBulkRequest, fmt.Sprintf("unsupported bulk action %q", req.Action.Type()))
}

// fanOut runs handler for every resolved invoice on a bounded pool and
// waits for all of them. Items not yet started when the caller cancels are
// reported as cancelled.
func (p *BulkProcessor) fanOut(ctx context.Context, req BulkRequest, resolved []*invoicing.Invoice, handler itemHandler, details []BulkItemResult) error {
	pending := make([]int, 0, len(resolved))
	for i, inv := range resolved {
		if inv != nil {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	workers := p.config.Workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	workers = min(workers, len(pending))

	jobs := make(chan int, len(pending))
	for _, idx := range pending {
		jobs <- idx
	}
	close(jobs)

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		abortErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry.WithProfileLabels(runCtx, func(ctx context.Context) {
				for idx := range jobs {
					inv := resolved[idx]
					if ctx.Err() != nil {
						details[idx] = BulkItemResult{InvoiceID: inv.ID, Status: BulkItemFailed, Code: shared.CodeCancelled, Reason: ReasonCancelled}
						continue
					}
					item, err := p.runItem(ctx, inv, handler)
					details[idx] = item
					if err != nil {
						mu.Lock()
						if abortErr == nil {
							abortErr = err
						}
						mu.Unlock()
						abort()
					}
				}
			}, "bulk_action", string(req.Action.Type()))
		}()
	}
	wg.Wait()

	if abortErr != nil {
		return abortErr
	}
	return nil
}

// runItem executes one item under its own deadline. It returns an error
// only for failures that must abort the whole batch.
func (p *BulkProcessor) runItem(ctx context.Context, inv *invoicing.Invoice, handler itemHandler) (BulkItemResult, error) {
	itemCtx, cancel := context.WithTimeout(ctx, p.config.ItemTimeout)
	defer cancel()

	err := handler(itemCtx, inv)
	if err == nil {
		return BulkItemResult{InvoiceID: inv.ID, Status: BulkItemSucceeded}, nil
	}

	switch {
	case ctx.Err() != nil:
		return BulkItemResult{InvoiceID: inv.ID, Status: BulkItemFailed, Code: shared.CodeCancelled, Reason: ReasonCancelled}, nil
	case errors.Is(itemCtx.Err(), context.DeadlineExceeded):
		return BulkItemResult{InvoiceID: inv.ID, Status: BulkItemFailed, Code: shared.CodeTimeout, Reason: ReasonTimeout}, nil
	case shared.KindOf(err) == shared.KindInfrastructure:
		return failedItem(inv.ID, err), err
	}
	return failedItem(inv.ID, err), nil
}

// failedItem converts a domain error to a failed item
func failedItem(id uuid.UUID, err error) BulkItemResult {
	item := BulkItemResult{InvoiceID: id, Status: BulkItemFailed, Code: shared.CodeInfrastructure, Reason: "infrastructure failure"}
	if de := shared.AsDomainError(err); de != nil {
		item.Code = de.Code
		if de.Kind != shared.KindInfrastructure {
			item.Reason = de.Message
		}
	}
	return item
}

func (p *BulkProcessor) updateStatusHandler(req BulkRequest, action UpdateStatusAction) itemHandler {
	return func(ctx context.Context, resolved *invoicing.Invoice) error {
		now := p.now()
		inv, err := mutateInvoice(ctx, p.scope, req.TenantID, resolved.ID, now,
			func(_ TransactionalRepositories, inv *invoicing.Invoice) ([]audit.Entry, error) {
				entry, _, err := applyTransition(inv, p.validator, action.Target, req.ActorID, action.Reason, now)
				if err != nil {
					return nil, err
				}
				return []audit.Entry{entry}, nil
			})
		if err != nil {
			return err
		}
		publishDomainEvents(ctx, p.publisher, inv)
		return nil
	}
}

func (p *BulkProcessor) deleteHandler(req BulkRequest, action DeleteAction) itemHandler {
	return func(ctx context.Context, resolved *invoicing.Invoice) error {
		now := p.now()
		ref := InvoiceRef{TenantID: req.TenantID, ActorID: req.ActorID, InvoiceID: resolved.ID}
		var deleted *invoicing.Invoice
		err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := deleteInvoice(ctx, repos, p.deletion, ref, action.Reason, now)
			deleted = inv
			return err
		})
		if err != nil {
			return err
		}
		publishDomainEvents(ctx, p.publisher, deleted)
		return nil
	}
}

func (p *BulkProcessor) reminderHandler(req BulkRequest, templateID string) itemHandler {
	return func(ctx context.Context, resolved *invoicing.Invoice) error {
		now := p.now()
		var (
			intent ReminderIntent
			queued *invoicing.ReminderQueuedEvent
		)
		err := p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := repos.Invoices().FindByIDForTenant(ctx, req.TenantID, resolved.ID)
			if err != nil {
				return err
			}
			switch inv.Status {
			case invoicing.StatusPaid, invoicing.StatusWrittenOff, invoicing.StatusCancelled, invoicing.StatusDraft:
				return shared.NewBusinessRuleViolation(invoicing.CodeReminderNotAllowed,
					fmt.Sprintf("reminders cannot be sent for invoices in %s status", inv.Status))
			}
			if inv.CustomerEmail == "" {
				return shared.NewBusinessRuleViolation(invoicing.CodeReminderNotAllowed, "invoice has no customer email")
			}

			entry := invoiceEntry(inv, req.ActorID, audit.ActionReminderQueued, nil, "")
			entry.After = nil
			entry.Metadata = map[string]any{
				"template_id":  templateID,
				"recipient":    inv.CustomerEmail,
				"days_overdue": inv.DaysOverdue(now),
			}
			if err := appendAudit(ctx, repos.AuditLog(), entry, now); err != nil {
				return err
			}
			intent = ReminderIntent{
				TenantID:      inv.TenantID,
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				TemplateID:    templateID,
				Recipient:     inv.CustomerEmail,
				QueuedAt:      now,
			}
			queued = invoicing.NewReminderQueuedEvent(inv.TenantID, inv.ID, inv.InvoiceNumber, templateID, inv.CustomerEmail)
			return nil
		})
		if err != nil {
			return err
		}
		// Handed off only once the audit record is committed
		if err := p.notifier.Enqueue(ctx, intent); err != nil {
			return shared.NewInfrastructureError(fmt.Errorf("enqueue reminder for invoice %s: %w", intent.InvoiceID, err))
		}
		if p.publisher != nil {
			_ = p.publisher.Publish(ctx, queued)
		}
		return nil
	}
}

// export projects the resolved invoices in request order. Nothing is
// mutated; the aggregate record is the only audit entry.
func (p *BulkProcessor) export(ctx context.Context, req BulkRequest, action ExportAction, resolved []*invoicing.Invoice, result *BulkResult) error {
	invoices := make([]*invoicing.Invoice, 0, len(resolved))
	for i, inv := range resolved {
		if inv == nil {
			continue
		}
		invoices = append(invoices, inv)
		result.Details[i] = BulkItemResult{InvoiceID: inv.ID, Status: BulkItemSucceeded}
	}
	result.Export = BuildExport(invoices, p.now())
	result.Summary = &result.Export.Summary

	if action.Archive && p.archive != nil && len(invoices) > 0 {
		location, err := p.archive.Archive(ctx, req.TenantID, result.Export)
		if err != nil {
			return shared.NewInfrastructureError(fmt.Errorf("archive export: %w", err))
		}
		result.Export.Location = location
	}
	return nil
}

// recordOperation appends the aggregate audit entry of a finished operation
func (p *BulkProcessor) recordOperation(ctx context.Context, req BulkRequest, result *BulkResult) error {
	ids := make([]string, len(result.Details))
	failed := make([]string, 0, result.FailedCount)
	for i, d := range result.Details {
		ids[i] = d.InvoiceID.String()
		if d.Status == BulkItemFailed {
			failed = append(failed, d.InvoiceID.String())
		}
	}

	entry := audit.Entry{
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,
		EntityType: audit.EntityBulkOperation,
		EntityID:   result.OperationID,
		Action:     audit.ActionBulkOperation,
		Metadata: map[string]any{
			"action":          string(result.Action),
			"requested_count": result.RequestedCount,
			"success_count":   result.SuccessCount,
			"failed_count":    result.FailedCount,
			"invoice_ids":     ids,
			"failed_ids":      failed,
		},
	}
	switch action := req.Action.(type) {
	case UpdateStatusAction:
		entry.Reason = action.Reason
		entry.Metadata["target_status"] = action.Target.String()
	case DeleteAction:
		entry.Reason = action.Reason
	case ExportAction:
		entry.Action = audit.ActionReadAccess
		if result.Export != nil && result.Export.Location != "" {
			entry.Metadata["location"] = result.Export.Location
		}
	}

	return p.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return appendAudit(ctx, repos.AuditLog(), entry, result.FinishedAt)
	})
}
