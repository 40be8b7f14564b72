package invoicing

import (
	"context"
	"testing"

	"github.com/erp/invoicing/internal/domain/audit"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatusService(f *fixture) *StatusService {
	svc := NewStatusService(f.scope, nil)
	svc.SetClock(fixedClock)
	return svc
}

func TestStatusService_ChangeStatus(t *testing.T) {
	f := newFixture()
	svc := newStatusService(f)
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)
	inv := f.seedInvoice(t, "500.00", invoicing.StatusDraft)

	tr, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		TenantID:     testTenant,
		ActorID:      testActor,
		InvoiceID:    inv.ID,
		TargetStatus: "SENT",
		Reason:       "issued to customer",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusDraft, tr.From)
	assert.Equal(t, invoicing.StatusSent, tr.To)
	assert.Equal(t, testNow, tr.AppliedAt)

	stored := f.invoices.get(inv.ID)
	assert.Equal(t, invoicing.StatusSent, stored.Status)
	require.NotNil(t, stored.SentAt)

	records := f.audit.byAction(audit.ActionStatusChanged)
	require.Len(t, records, 1)
	rec := records[0]
	require.NotNil(t, rec.ActorID)
	assert.Equal(t, testActor, *rec.ActorID)
	assert.Equal(t, "issued to customer", rec.Reason)
	assert.Equal(t, audit.Change{From: "DRAFT", To: "SENT"}, rec.Changes["status"])
	assert.Equal(t, false, rec.Metadata["system"])
	assert.Equal(t, []string{invoicing.EventTypeInvoiceStatusChanged}, pub.types())
}

func TestStatusService_ChangeStatus_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status invoicing.InvoiceStatus
		target string
		kind   shared.ErrorKind
		code   string
	}{
		{"illegal edge", invoicing.StatusDraft, "PAID", shared.KindBusinessRule, invoicing.CodeInvalidTransition},
		{"same state", invoicing.StatusSent, "SENT", shared.KindBusinessRule, invoicing.CodeInvalidTransition},
		{"terminal", invoicing.StatusCancelled, "SENT", shared.KindBusinessRule, invoicing.CodeInvalidTransition},
		{"paid without payments", invoicing.StatusSent, "PAID", shared.KindBusinessRule, invoicing.CodePaymentIncomplete},
		{"unknown status", invoicing.StatusSent, "ARCHIVED", shared.KindValidation, invoicing.CodeInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := newStatusService(f)
			inv := f.seedInvoice(t, "500.00", tt.status)

			_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
				TenantID: testTenant, InvoiceID: inv.ID, TargetStatus: tt.target,
			})
			require.Error(t, err)
			assert.Equal(t, tt.kind, shared.KindOf(err))
			assert.Equal(t, tt.code, shared.AsDomainError(err).Code)
			assert.Equal(t, tt.status, f.invoices.get(inv.ID).Status)
			assert.Empty(t, f.audit.records)
		})
	}
}

func TestStatusService_ChangeStatus_NotFound(t *testing.T) {
	f := newFixture()
	svc := newStatusService(f)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		TenantID: testTenant, InvoiceID: uuid.New(), TargetStatus: "SENT",
	})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestStatusService_ChangeStatus_AuditFailureAborts(t *testing.T) {
	f := newFixture()
	f.audit.err = shared.NewInfrastructureError(assert.AnError)
	svc := newStatusService(f)
	pub := &recordingPublisher{}
	svc.SetEventPublisher(pub)
	inv := f.seedInvoice(t, "500.00", invoicing.StatusSent)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		TenantID: testTenant, InvoiceID: inv.ID, TargetStatus: "DISPUTED",
	})
	require.Error(t, err)
	assert.Equal(t, shared.KindInfrastructure, shared.KindOf(err))
	assert.Empty(t, pub.types())
}
