package invoicing

import (
	"fmt"
	"strings"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
)

// CodeInvalidBulkRequest is returned for malformed bulk requests
const CodeInvalidBulkRequest = "INVALID_BULK_REQUEST"

// BulkActionType is the wire name of a bulk action
type BulkActionType string

const (
	BulkActionUpdateStatus  BulkActionType = "update_status"
	BulkActionDelete        BulkActionType = "delete"
	BulkActionQueueReminder BulkActionType = "queue_reminder"
	BulkActionExport        BulkActionType = "export"
)

// BulkAction is one of UpdateStatusAction, DeleteAction,
// QueueReminderAction or ExportAction. The set is closed.
type BulkAction interface {
	Type() BulkActionType
	bulkAction()
}

// UpdateStatusAction moves every invoice to Target
type UpdateStatusAction struct {
	Target invoicing.InvoiceStatus
	Reason string
}

// DeleteAction deletes every eligible invoice
type DeleteAction struct {
	Reason string
}

// QueueReminderAction queues a payment reminder per invoice
type QueueReminderAction struct {
	TemplateID string
}

// ExportAction projects the invoices without changing them.
// Archive stores the rendered export when an archive is configured.
type ExportAction struct {
	Archive bool
}

func (UpdateStatusAction) Type() BulkActionType  { return BulkActionUpdateStatus }
func (DeleteAction) Type() BulkActionType        { return BulkActionDelete }
func (QueueReminderAction) Type() BulkActionType { return BulkActionQueueReminder }
func (ExportAction) Type() BulkActionType        { return BulkActionExport }

func (UpdateStatusAction) bulkAction()  {}
func (DeleteAction) bulkAction()        {}
func (QueueReminderAction) bulkAction() {}
func (ExportAction) bulkAction()        {}

// BulkActionParams carries the wire form of a bulk action
type BulkActionParams struct {
	Action     string
	Status     string
	TemplateID string
	Reason     string
	Archive    bool
}

// ParseBulkAction builds the action variant named by params.Action and
// checks its parameters.
func ParseBulkAction(params BulkActionParams) (BulkAction, error) {
	switch BulkActionType(strings.ToLower(strings.TrimSpace(params.Action))) {
	case BulkActionUpdateStatus:
		if strings.TrimSpace(params.Status) == "" {
			return nil, shared.NewValidationError(CodeInvalidBulkRequest, "status is required for update_status")
		}
		target, err := invoicing.ParseStatus(params.Status)
		if err != nil {
			return nil, err
		}
		return UpdateStatusAction{Target: target, Reason: strings.TrimSpace(params.Reason)}, nil
	case BulkActionDelete:
		return DeleteAction{Reason: strings.TrimSpace(params.Reason)}, nil
	case BulkActionQueueReminder:
		return QueueReminderAction{TemplateID: strings.TrimSpace(params.TemplateID)}, nil
	case BulkActionExport:
		return ExportAction{Archive: params.Archive}, nil
	}
	return nil, shared.NewValidationError(CodeInvalidBulkRequest, fmt.Sprintf("unknown bulk action %q", params.Action))
}
