package invoicing

import (
	"context"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// ReminderIntent is a request to remind a customer about an invoice.
// Delivery (email, SMS) happens outside this service.
type ReminderIntent struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	TemplateID    string    `json:"template_id"`
	Recipient     string    `json:"recipient"`
	QueuedAt      time.Time `json:"queued_at"`
}

// Notifier accepts reminder intents for later delivery
type Notifier interface {
	Enqueue(ctx context.Context, intent ReminderIntent) error
}

// TemplateResolver maps a requested template ID to the one to use
type TemplateResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, templateID string) (string, error)
}

// ExportArchive stores a rendered export and returns where it was put
type ExportArchive interface {
	Archive(ctx context.Context, tenantID uuid.UUID, export *ExportResult) (string, error)
}

// BulkObserver is told about every finished bulk operation
type BulkObserver interface {
	BulkOperationCompleted(ctx context.Context, action string, succeeded, failed int, elapsed time.Duration)
}

// DefaultReminderTemplate is used when a request names no template
const DefaultReminderTemplate = "invoice_reminder"

// StaticTemplateResolver accepts a fixed set of template IDs
type StaticTemplateResolver struct {
	fallback  string
	templates map[string]struct{}
}

// NewStaticTemplateResolver creates a resolver that knows the given templates.
// The fallback is used for empty requests and is always known.
func NewStaticTemplateResolver(fallback string, templates ...string) *StaticTemplateResolver {
	if fallback == "" {
		fallback = DefaultReminderTemplate
	}
	known := map[string]struct{}{fallback: {}}
	for _, t := range templates {
		if t = strings.TrimSpace(t); t != "" {
			known[t] = struct{}{}
		}
	}
	return &StaticTemplateResolver{fallback: fallback, templates: known}
}

// Resolve returns the template to use or a not-found error
func (r *StaticTemplateResolver) Resolve(_ context.Context, _ uuid.UUID, templateID string) (string, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return r.fallback, nil
	}
	if _, ok := r.templates[templateID]; !ok {
		return "", shared.NewNotFoundError("reminder template")
	}
	return templateID, nil
}
