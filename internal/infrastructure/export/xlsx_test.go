package export

import (
	"bytes"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var raw = excelize.Options{RawCellValue: true}

func sampleExport() *appinvoicing.ExportResult {
	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return &appinvoicing.ExportResult{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows: []appinvoicing.ExportRow{
			{
				ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Number: "INV-001", Customer: "Acme",
				Currency: "USD", Subtotal: decimal.RequireFromString("1000"), Tax: decimal.RequireFromString("50.5"),
				Total: decimal.RequireFromString("1050.5"), Paid: decimal.RequireFromString("1050.5"),
				Outstanding: decimal.Zero, Status: "PAID", DueDate: due,
			},
			{
				ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Number: "INV-002", Customer: "Globex",
				Currency: "AED", Subtotal: decimal.RequireFromString("200"), Tax: decimal.RequireFromString("10"),
				Total: decimal.RequireFromString("210"), Paid: decimal.Zero,
				Outstanding: decimal.RequireFromString("210"), Status: "OVERDUE", DueDate: due,
				IsOverdue: true, DaysOverdue: 28,
			},
		},
		Summary: appinvoicing.ExportSummary{
			Count:            2,
			TotalAmount:      decimal.RequireFromString("1260.5"),
			TotalPaid:        decimal.RequireFromString("1050.5"),
			TotalOutstanding: decimal.RequireFromString("210"),
			StatusBreakdown:  map[string]int{"PAID": 1, "OVERDUE": 1},
			OverdueCount:     1,
			Currencies:       []string{"AED", "USD"},
		},
	}
}

func openRendered(t *testing.T, result *appinvoicing.ExportResult) *excelize.File {
	t.Helper()
	data, err := RenderXLSX(result)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref, raw)
	require.NoError(t, err)
	return v
}

func TestRenderXLSX_Sheets(t *testing.T) {
	f := openRendered(t, sampleExport())
	assert.Equal(t, []string{InvoicesSheet, SummarySheet}, f.GetSheetList())
}

func TestRenderXLSX_InvoiceRows(t *testing.T) {
	f := openRendered(t, sampleExport())

	rows, err := f.GetRows(InvoicesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, invoiceHeaders, rows[0])

	assert.Equal(t, "11111111-1111-1111-1111-111111111111", cell(t, f, InvoicesSheet, "A2"))
	assert.Equal(t, "INV-001", cell(t, f, InvoicesSheet, "B2"))
	assert.Equal(t, "1050.5", cell(t, f, InvoicesSheet, "G2"))
	assert.Equal(t, "PAID", cell(t, f, InvoicesSheet, "J2"))
	assert.Equal(t, "2026-02-01", cell(t, f, InvoicesSheet, "K2"))

	assert.Equal(t, "Globex", cell(t, f, InvoicesSheet, "C3"))
	assert.Equal(t, "210", cell(t, f, InvoicesSheet, "I3"))
	assert.Equal(t, "28", cell(t, f, InvoicesSheet, "M3"))
}

func TestRenderXLSX_Summary(t *testing.T) {
	f := openRendered(t, sampleExport())

	assert.Equal(t, "2026-03-01 12:00:00", cell(t, f, SummarySheet, "B1"))
	assert.Equal(t, "2", cell(t, f, SummarySheet, "B2"))
	assert.Equal(t, "1260.5", cell(t, f, SummarySheet, "B3"))
	assert.Equal(t, "210", cell(t, f, SummarySheet, "B5"))
	assert.Equal(t, "AED, USD", cell(t, f, SummarySheet, "B7"))
	assert.Equal(t, "Status", cell(t, f, SummarySheet, "A9"))
	assert.Equal(t, "OVERDUE", cell(t, f, SummarySheet, "A10"))
	assert.Equal(t, "PAID", cell(t, f, SummarySheet, "A11"))
}

func TestRenderXLSX_EmptyAndNil(t *testing.T) {
	_, err := RenderXLSX(nil)
	require.Error(t, err)

	f := openRendered(t, &appinvoicing.ExportResult{Summary: appinvoicing.ExportSummary{StatusBreakdown: map[string]int{}}})
	rows, err := f.GetRows(InvoicesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
