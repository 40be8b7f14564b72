package audit

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter narrows audit queries
type Filter struct {
	shared.Filter
	EntityType string
	EntityID   *uuid.UUID
	Action     Action
	From       *time.Time
	To         *time.Time
}

// Repository appends and reads audit records. It exposes no update or
// delete operation.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	CreateBatch(ctx context.Context, records []*Record) error
	FindForTenant(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Record, int64, error)
}
