package invoicing

import (
	"math/rand/v2"
	"testing"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotals(t *testing.T) {
	t.Run("sums lines and applies tax", func(t *testing.T) {
		items := []LineItem{
			{LineNumber: 1, Quantity: dec("2"), UnitPrice: dec("100.00"), TaxRate: dec("5")},
			{LineNumber: 2, Quantity: dec("1"), UnitPrice: dec("50.00"), TaxRate: dec("0")},
		}
		totals, err := CalculateTotals(items, valueobject.AED)
		require.NoError(t, err)
		assert.Equal(t, "250.00", totals.Subtotal.StringFixed(2))
		assert.Equal(t, "10.00", totals.TaxAmount.StringFixed(2))
		assert.Equal(t, "260.00", totals.GrandTotal.StringFixed(2))
	})

	t.Run("rounds only after summation", func(t *testing.T) {
		// Each line's tax is 0.0049995; rounding per line would give 0.00
		items := make([]LineItem, 3)
		for i := range items {
			items[i] = LineItem{LineNumber: i + 1, Quantity: dec("1"), UnitPrice: dec("0.09999"), TaxRate: dec("5")}
		}
		totals, err := CalculateTotals(items, valueobject.AED)
		require.NoError(t, err)
		assert.True(t, totals.TaxAmount.Equal(dec("0.01")), "got %s", totals.TaxAmount)
		assert.True(t, totals.Subtotal.Equal(dec("0.30")), "got %s", totals.Subtotal)
	})

	t.Run("rounds half up", func(t *testing.T) {
		items := []LineItem{{LineNumber: 1, Quantity: dec("1"), UnitPrice: dec("10.005"), TaxRate: dec("0")}}
		totals, err := CalculateTotals(items, valueobject.AED)
		require.NoError(t, err)
		assert.True(t, totals.Subtotal.Equal(dec("10.01")))
	})

	t.Run("empty list yields zero totals", func(t *testing.T) {
		totals, err := CalculateTotals(nil, valueobject.AED)
		require.NoError(t, err)
		assert.True(t, totals.GrandTotal.IsZero())
	})

	t.Run("zero minor unit currency", func(t *testing.T) {
		items := []LineItem{{LineNumber: 1, Quantity: dec("3"), UnitPrice: dec("333.5"), TaxRate: dec("10")}}
		totals, err := CalculateTotals(items, valueobject.JPY)
		require.NoError(t, err)
		assert.True(t, totals.Subtotal.Equal(dec("1001")), "got %s", totals.Subtotal)
		assert.True(t, totals.TaxAmount.Equal(dec("100")), "got %s", totals.TaxAmount)
	})
}

func TestCalculateTotals_Rejections(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		code string
	}{
		{"negative tax rate", LineItem{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("-1")}, CodeInvalidTaxRate},
		{"tax rate above 100", LineItem{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("100.01")}, CodeInvalidTaxRate},
		{"zero quantity", LineItem{Quantity: dec("0"), UnitPrice: dec("1"), TaxRate: dec("5")}, CodeInvalidQuantity},
		{"negative price", LineItem{Quantity: dec("1"), UnitPrice: dec("-1"), TaxRate: dec("5")}, CodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateTotals([]LineItem{tt.item}, valueobject.AED)
			require.Error(t, err)
			de := shared.AsDomainError(err)
			assert.Equal(t, shared.KindValidation, de.Kind)
			assert.Equal(t, tt.code, de.Code)
		})
	}

	t.Run("boundary rates are valid", func(t *testing.T) {
		assert.NoError(t, ValidateTaxRate(decimal.Zero))
		assert.NoError(t, ValidateTaxRate(dec("100")))
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := CalculateTotals(nil, valueobject.Currency("ZZQ"))
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})
}

func TestCalculateTotals_SubtotalPlusTaxEqualsGrandTotal(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1337))
	rates := []decimal.Decimal{dec("0"), dec("5"), dec("100")}

	for i := 0; i < 1000; i++ {
		n := 1 + rng.IntN(8)
		items := make([]LineItem, n)
		for j := range items {
			items[j] = LineItem{
				LineNumber: j + 1,
				Quantity:   decimal.New(int64(1+rng.IntN(5000)), -int32(rng.IntN(3))),
				UnitPrice:  decimal.New(rng.Int64N(10_000_000), -int32(rng.IntN(5))),
				TaxRate:    rates[rng.IntN(len(rates))],
			}
		}

		totals, err := CalculateTotals(items, valueobject.AED)
		require.NoError(t, err)
		require.True(t, totals.Subtotal.Add(totals.TaxAmount).Equal(totals.GrandTotal),
			"iteration %d: %s + %s != %s", i, totals.Subtotal, totals.TaxAmount, totals.GrandTotal)
		require.True(t, totals.GrandTotal.Equal(totals.GrandTotal.Round(2)))
	}
}
