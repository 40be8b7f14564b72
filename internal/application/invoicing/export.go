package invoicing

import (
	"sort"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExportRow is the read-only projection of one invoice
type ExportRow struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	Customer    string          `json:"customer"`
	Currency    string          `json:"currency"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
	DueDate     time.Time       `json:"due_date"`
	IsOverdue   bool            `json:"is_overdue"`
	DaysOverdue int             `json:"days_overdue"`
}

// ExportSummary aggregates the exported rows. Amounts are summed as-is;
// rows in different currencies are not converted.
type ExportSummary struct {
	Count            int             `json:"count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	StatusBreakdown  map[string]int  `json:"status_breakdown"`
	OverdueCount     int             `json:"overdue_count"`
	Currencies       []string        `json:"currencies"`
}

// ExportResult is the output of an export bulk action
type ExportResult struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Rows        []ExportRow   `json:"rows"`
	Summary     ExportSummary `json:"-"`
	Location    string        `json:"location,omitempty"`
}

// ProjectInvoice builds the export row of an invoice as of now
func ProjectInvoice(inv *invoicing.Invoice, now time.Time) ExportRow {
	paid := inv.VerifiedPaidAmount()
	return ExportRow{
		ID:          inv.ID,
		Number:      inv.InvoiceNumber,
		Customer:    inv.CustomerName,
		Currency:    inv.Currency.String(),
		Subtotal:    inv.Subtotal,
		Tax:         inv.TaxAmount,
		Total:       inv.TotalAmount,
		Paid:        paid,
		Outstanding: inv.TotalAmount.Sub(paid),
		Status:      inv.Status.String(),
		DueDate:     inv.DueDate,
		IsOverdue:   inv.IsOverdue(now),
		DaysOverdue: inv.DaysOverdue(now),
	}
}

// BuildExport projects invoices in the given order and summarizes them
func BuildExport(invoices []*invoicing.Invoice, now time.Time) *ExportResult {
	result := &ExportResult{
		GeneratedAt: now,
		Rows:        make([]ExportRow, 0, len(invoices)),
		Summary: ExportSummary{
			TotalAmount:      decimal.Zero,
			TotalPaid:        decimal.Zero,
			TotalOutstanding: decimal.Zero,
			StatusBreakdown:  make(map[string]int),
			Currencies:       []string{},
		},
	}

	currencies := make(map[string]struct{})
	for _, inv := range invoices {
		row := ProjectInvoice(inv, now)
		result.Rows = append(result.Rows, row)

		sum := &result.Summary
		sum.Count++
		sum.TotalAmount = sum.TotalAmount.Add(row.Total)
		sum.TotalPaid = sum.TotalPaid.Add(row.Paid)
		sum.TotalOutstanding = sum.TotalOutstanding.Add(row.Outstanding)
		sum.StatusBreakdown[row.Status]++
		if row.IsOverdue {
			sum.OverdueCount++
		}
		currencies[row.Currency] = struct{}{}
	}
	for c := range currencies {
		result.Summary.Currencies = append(result.Summary.Currencies, c)
	}
	sort.Strings(result.Summary.Currencies)
	return result
}
