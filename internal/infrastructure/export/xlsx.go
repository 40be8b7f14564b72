// Package export renders invoice export projections as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/xuri/excelize/v2"
)

const (
	// XLSXContentType is the MIME type of rendered workbooks
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	InvoicesSheet = "Invoices"
	SummarySheet  = "Summary"

	dateLayout = "2006-01-02"
)

var invoiceHeaders = []string{
	"Invoice ID", "Number", "Customer", "Currency", "Subtotal", "Tax", "Total",
	"Paid", "Outstanding", "Status", "Due Date", "Overdue", "Days Overdue",
}

// RenderXLSX writes the rows to an "Invoices" sheet and the summary to a
// "Summary" sheet. Amounts are written as numbers with two decimals.
func RenderXLSX(result *appinvoicing.ExportResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nothing to render")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeInvoices(f, result.Rows); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, result); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInvoices(f *excelize.File, rows []appinvoicing.ExportRow) error {
	if err := f.SetSheetRow(InvoicesSheet, "A1", &invoiceHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	_ = f.SetRowStyle(InvoicesSheet, 1, 1, bold)

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.ID.String(), r.Number, r.Customer, r.Currency,
			r.Subtotal.InexactFloat64(), r.Tax.InexactFloat64(), r.Total.InexactFloat64(),
			r.Paid.InexactFloat64(), r.Outstanding.InexactFloat64(),
			r.Status, r.DueDate.Format(dateLayout), r.IsOverdue, r.DaysOverdue,
		}
		if err := f.SetSheetRow(InvoicesSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("I%d", len(rows)+1)
		if err := f.SetCellStyle(InvoicesSheet, "E2", last, money); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}
	return f.AutoFilter(InvoicesSheet, fmt.Sprintf("A1:M%d", len(rows)+1), nil)
}

func writeSummary(f *excelize.File, result *appinvoicing.ExportResult) error {
	s := result.Summary
	pairs := [][]any{
		{"Generated At", result.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Invoices", s.Count},
		{"Total Amount", s.TotalAmount.InexactFloat64()},
		{"Total Paid", s.TotalPaid.InexactFloat64()},
		{"Total Outstanding", s.TotalOutstanding.InexactFloat64()},
		{"Overdue", s.OverdueCount},
		{"Currencies", strings.Join(s.Currencies, ", ")},
		{},
		{"Status", "Count"},
	}

	statuses := make([]string, 0, len(s.StatusBreakdown))
	for status := range s.StatusBreakdown {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		pairs = append(pairs, []any{status, s.StatusBreakdown[status]})
	}

	for i, pair := range pairs {
		if len(pair) == 0 {
			continue
		}
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &pair); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}
