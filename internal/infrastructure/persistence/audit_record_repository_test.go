package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T, tenantID, entityID uuid.UUID, action audit.Action, minutes int) *audit.Record {
	t.Helper()
	record, err := audit.NewRecord(audit.Entry{
		TenantID:   tenantID,
		ActorID:    uuid.New(),
		EntityType: audit.EntityInvoice,
		EntityID:   entityID,
		Action:     action,
		Before:     map[string]any{"status": "DRAFT"},
		After:      map[string]any{"status": "SENT"},
		Metadata:   map[string]any{"from": "DRAFT", "to": "SENT"},
	}, repoTestNow.Add(time.Duration(minutes)*time.Minute))
	require.NoError(t, err)
	return record
}

func TestGormAuditRecordRepository_CreateAndFind(t *testing.T) {
	db := setupInvoiceTestDB(t)
	repo := NewGormAuditRecordRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	first := newTestRecord(t, tenantID, invoiceID, audit.ActionStatusChanged, 0)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.CreateBatch(ctx, []*audit.Record{
		newTestRecord(t, tenantID, invoiceID, audit.ActionPaymentApplied, 1),
		newTestRecord(t, tenantID, uuid.New(), audit.ActionStatusChanged, 2),
		newTestRecord(t, uuid.New(), invoiceID, audit.ActionStatusChanged, 3),
	}))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	t.Run("filters by entity and orders by time", func(t *testing.T) {
		records, total, err := repo.FindForTenant(ctx, tenantID, audit.Filter{
			Filter:     shared.Filter{OrderBy: "recorded_at", OrderDir: "asc"},
			EntityType: audit.EntityInvoice,
			EntityID:   &invoiceID,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, records, 2)
		assert.Equal(t, first.ID, records[0].ID)
		assert.Equal(t, audit.ActionPaymentApplied, records[1].Action)
	})

	t.Run("json columns round trip", func(t *testing.T) {
		records, _, err := repo.FindForTenant(ctx, tenantID, audit.Filter{Action: audit.ActionStatusChanged, EntityID: &invoiceID})
		require.NoError(t, err)
		require.Len(t, records, 1)
		got := records[0]
		assert.Equal(t, "SENT", got.After["status"])
		assert.Equal(t, "DRAFT", got.Metadata["from"])
		require.Contains(t, got.Changes, "status")
		assert.Equal(t, "DRAFT", got.Changes["status"].From)
		assert.Equal(t, *first.ActorID, *got.ActorID)
		assert.Equal(t, first.Timestamp, got.Timestamp)
	})

	t.Run("time window and paging", func(t *testing.T) {
		from := repoTestNow.Add(time.Minute)
		records, total, err := repo.FindForTenant(ctx, tenantID, audit.Filter{
			Filter: shared.Filter{Page: 1, PageSize: 1},
			From:   &from,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, records, 1)
		// newest first by default
		assert.Equal(t, repoTestNow.Add(2*time.Minute), records[0].Timestamp)
	})
}

func TestGormTransactionScope(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("commits invoice and audit together", func(t *testing.T) {
		db := setupInvoiceTestDB(t)
		scope := NewGormTransactionScope(db)
		inv := newTestInvoice(t, tenantID, "INV-0001", repoTestNow.AddDate(0, 0, 30))

		err := scope.Execute(ctx, func(repos appinvoicing.TransactionalRepositories) error {
			if err := repos.Invoices().Save(ctx, inv); err != nil {
				return err
			}
			return repos.AuditLog().Create(ctx, newTestRecord(t, tenantID, inv.ID, audit.ActionInvoiceCreated, 0))
		})
		require.NoError(t, err)

		_, err = NewGormInvoiceRepository(db).FindByIDForTenant(ctx, tenantID, inv.ID)
		assert.NoError(t, err)
		_, total, err := NewGormAuditRecordRepository(db).FindForTenant(ctx, tenantID, audit.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("rolls back invoice when a later step fails", func(t *testing.T) {
		db := setupInvoiceTestDB(t)
		scope := NewGormTransactionScope(db)
		inv := newTestInvoice(t, tenantID, "INV-0002", repoTestNow.AddDate(0, 0, 30))
		boom := errors.New("audit sink unavailable")

		err := scope.Execute(ctx, func(repos appinvoicing.TransactionalRepositories) error {
			if err := repos.Invoices().Save(ctx, inv); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		var invoices, items int64
		require.NoError(t, db.Model(&models.InvoiceModel{}).Count(&invoices).Error)
		require.NoError(t, db.Model(&models.InvoiceLineItemModel{}).Count(&items).Error)
		assert.Zero(t, invoices)
		assert.Zero(t, items)
	})
}
