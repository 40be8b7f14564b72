package invoicing

import (
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPayment_FullPaymentTransitionsToPaid(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "1000.00")

	outcome, err := r.ApplyPayment(inv, newPayment(t, inv, "1000.00"), testNow)
	require.NoError(t, err)
	assert.True(t, outcome.IsFullyPaid)
	assert.True(t, outcome.Transitioned)
	assert.Equal(t, StatusSent, outcome.PreviousStatus)
	assert.Equal(t, StatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)

	t.Run("further payment is rejected as overpayment", func(t *testing.T) {
		versionBefore := inv.Version
		_, err := r.ApplyPayment(inv, newPayment(t, inv, "1.00"), testNow)
		require.Error(t, err)
		de := shared.AsDomainError(err)
		assert.Equal(t, CodeOverpayment, de.Code)
		assert.Equal(t, shared.KindBusinessRule, de.Kind)
		assert.Equal(t, StatusPaid, inv.Status)
		assert.Len(t, inv.Payments, 1)
		assert.Equal(t, versionBefore, inv.Version)
	})
}

func TestApplyPayment_SequentialHalves(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "2000.00")

	first, err := r.ApplyPayment(inv, newPayment(t, inv, "1000.00"), testNow)
	require.NoError(t, err)
	assert.False(t, first.IsFullyPaid)
	assert.False(t, first.Transitioned)
	assert.Equal(t, StatusSent, inv.Status)
	assert.Equal(t, "1000", first.Remaining.String())

	second, err := r.ApplyPayment(inv, newPayment(t, inv, "1000.00"), testNow)
	require.NoError(t, err)
	assert.True(t, second.IsFullyPaid)
	assert.True(t, second.Transitioned)
	assert.Equal(t, StatusPaid, inv.Status)
}

func TestApplyPayment_SumNeverExceedsTotal(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "100.00")

	amounts := []string{"30.00", "30.00", "30.00", "30.00", "10.00", "0.01"}
	for _, a := range amounts {
		_, _ = r.ApplyPayment(inv, newPayment(t, inv, a), testNow)
		assert.True(t, inv.RecordedAmount().LessThanOrEqual(inv.TotalAmount), "after %s: %s", a, inv.RecordedAmount())
	}
	assert.Equal(t, "100", inv.RecordedAmount().String())
	assert.Equal(t, StatusPaid, inv.Status)
}

func TestApplyPayment_StatusGates(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)

	for _, status := range []InvoiceStatus{StatusDraft, StatusCancelled, StatusWrittenOff} {
		t.Run(string(status), func(t *testing.T) {
			inv := newDraftInvoice(t, "100.00")
			inv.Status = status
			_, err := r.ApplyPayment(inv, newPayment(t, inv, "10.00"), testNow)
			require.Error(t, err)
			assert.Equal(t, CodePaymentNotAllowed, shared.AsDomainError(err).Code)
			assert.Empty(t, inv.Payments)
		})
	}

	for _, status := range []InvoiceStatus{StatusOverdue, StatusDisputed} {
		t.Run(string(status)+" accepts payment", func(t *testing.T) {
			inv := newSentInvoice(t, "100.00")
			inv.Status = status
			outcome, err := r.ApplyPayment(inv, newPayment(t, inv, "100.00"), testNow)
			require.NoError(t, err)
			assert.Equal(t, StatusPaid, outcome.Status)
		})
	}
}

func TestApplyPayment_UnverifiedPaymentDoesNotCompleteInvoice(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "500.00")

	p, err := NewPayment(inv, PaymentParams{Amount: dec("500.00"), Method: PaymentMethodCheque}, testNow)
	require.NoError(t, err)

	outcome, err := r.ApplyPayment(inv, p, testNow)
	require.NoError(t, err)
	assert.False(t, outcome.IsFullyPaid)
	assert.Equal(t, StatusSent, inv.Status)

	verified, err := r.VerifyPayment(inv, p.ID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, verified.Transitioned)
	assert.Equal(t, StatusPaid, inv.Status)

	_, err = r.VerifyPayment(inv, p.ID, testNow)
	assert.Equal(t, CodePaymentAlreadyVerified, shared.AsDomainError(err).Code)

	_, err = r.VerifyPayment(inv, uuid.New(), testNow)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestApplyPayment_WithinThresholdCountsAsPaid(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "1000.00")

	outcome, err := r.ApplyPayment(inv, newPayment(t, inv, "995.00"), testNow)
	require.NoError(t, err)
	assert.True(t, outcome.IsFullyPaid)
	assert.Equal(t, StatusPaid, inv.Status)
}

func TestApplyPayment_RejectsNonPositiveAmount(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "100.00")
	p := newPayment(t, inv, "10.00")
	p.Amount = dec("0")

	_, err := r.ApplyPayment(inv, p, testNow)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestReversePayment(t *testing.T) {
	t.Run("before due date returns to SENT", func(t *testing.T) {
		r := NewReconciler(nil, ReversalByDueDate)
		inv := newSentInvoice(t, "1000.00")
		p := newPayment(t, inv, "1000.00")
		_, err := r.ApplyPayment(inv, p, testNow)
		require.NoError(t, err)

		outcome, err := r.ReversePayment(inv, p.ID, "chargeback", testNow.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, outcome.Transitioned)
		assert.Equal(t, StatusSent, inv.Status)
		assert.Nil(t, inv.PaidAt)
		assert.True(t, inv.Payments[0].IsReversed())
		assert.Equal(t, "chargeback", inv.Payments[0].ReversalReason)
	})

	t.Run("after due date returns to OVERDUE", func(t *testing.T) {
		r := NewReconciler(nil, ReversalByDueDate)
		inv := newSentInvoice(t, "1000.00")
		p := newPayment(t, inv, "1000.00")
		_, err := r.ApplyPayment(inv, p, testNow)
		require.NoError(t, err)

		_, err = r.ReversePayment(inv, p.ID, "bounced", inv.DueDate.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, StatusOverdue, inv.Status)
	})

	t.Run("always overdue policy", func(t *testing.T) {
		r := NewReconciler(nil, ReversalAlwaysOverdue)
		inv := newSentInvoice(t, "1000.00")
		p := newPayment(t, inv, "1000.00")
		_, err := r.ApplyPayment(inv, p, testNow)
		require.NoError(t, err)

		_, err = r.ReversePayment(inv, p.ID, "bounced", testNow)
		require.NoError(t, err)
		assert.Equal(t, StatusOverdue, inv.Status)
	})

	t.Run("partial invoice keeps its status and frees the amount", func(t *testing.T) {
		r := NewReconciler(nil, ReversalByDueDate)
		inv := newSentInvoice(t, "1000.00")
		p := newPayment(t, inv, "600.00")
		_, err := r.ApplyPayment(inv, p, testNow)
		require.NoError(t, err)

		outcome, err := r.ReversePayment(inv, p.ID, "duplicate", testNow)
		require.NoError(t, err)
		assert.False(t, outcome.Transitioned)
		assert.Equal(t, StatusSent, inv.Status)

		_, err = r.ApplyPayment(inv, newPayment(t, inv, "1000.00"), testNow)
		assert.NoError(t, err, "reversed amounts no longer count against the total")
	})

	t.Run("double reversal and missing reason", func(t *testing.T) {
		r := NewReconciler(nil, ReversalByDueDate)
		inv := newSentInvoice(t, "1000.00")
		p := newPayment(t, inv, "100.00")
		_, err := r.ApplyPayment(inv, p, testNow)
		require.NoError(t, err)

		_, err = r.ReversePayment(inv, p.ID, "  ", testNow)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))

		_, err = r.ReversePayment(inv, p.ID, "wrong account", testNow)
		require.NoError(t, err)
		_, err = r.ReversePayment(inv, p.ID, "wrong account", testNow)
		assert.Equal(t, CodePaymentAlreadyReversed, shared.AsDomainError(err).Code)
	})
}

func TestReversePayment_EmitsSystemStatusChange(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "1000.00")
	p := newPayment(t, inv, "1000.00")
	_, err := r.ApplyPayment(inv, p, testNow)
	require.NoError(t, err)
	inv.ClearDomainEvents()

	_, err = r.ReversePayment(inv, p.ID, "chargeback", testNow)
	require.NoError(t, err)

	var statusEvent *InvoiceStatusChangedEvent
	for _, e := range inv.GetDomainEvents() {
		if ev, ok := e.(*InvoiceStatusChangedEvent); ok {
			statusEvent = ev
		}
	}
	require.NotNil(t, statusEvent)
	assert.True(t, statusEvent.System)
	assert.Equal(t, StatusPaid, statusEvent.From)
	assert.Equal(t, StatusSent, statusEvent.To)
}

func TestReconcileClassification(t *testing.T) {
	r := NewReconciler(nil, ReversalByDueDate)
	inv := newSentInvoice(t, "1000.00")

	assert.Equal(t, PaymentStateUnpaid, r.Reconcile(inv).State)

	_, err := r.ApplyPayment(inv, newPayment(t, inv, "250.00"), testNow)
	require.NoError(t, err)
	state := r.Reconcile(inv)
	assert.Equal(t, PaymentStatePartiallyPaid, state.State)
	assert.Equal(t, "750", state.Remaining.String())
	assert.Equal(t, "990", state.RequiredAmount.String())
}

func TestAuditReconciliation(t *testing.T) {
	inv := newSentInvoice(t, "1000.00")

	audit := AuditReconciliation(inv)
	assert.Equal(t, ResultUnderpaid, audit.Result)
	assert.Equal(t, "-1000", audit.Discrepancy.String())

	inv.Payments = []Payment{{Amount: dec("1000.00"), Verified: true}}
	first := AuditReconciliation(inv)
	second := AuditReconciliation(inv)
	assert.Equal(t, ResultReconciled, first.Result)
	assert.Equal(t, first, second, "audit must be idempotent")

	inv.Payments = append(inv.Payments, Payment{Amount: dec("0.50"), Verified: true})
	assert.Equal(t, ResultOverpaid, AuditReconciliation(inv).Result)
}

func TestParseReversalPolicy(t *testing.T) {
	p, err := ParseReversalPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReversalByDueDate, p)

	p, err = ParseReversalPolicy("ALWAYS_OVERDUE")
	require.NoError(t, err)
	assert.Equal(t, ReversalAlwaysOverdue, p)

	_, err = ParseReversalPolicy("never")
	assert.Error(t, err)
}
