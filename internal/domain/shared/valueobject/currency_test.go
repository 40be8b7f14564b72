package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency(t *testing.T) {
	t.Run("parse normalizes case", func(t *testing.T) {
		c, err := ParseCurrency(" aed ")
		require.NoError(t, err)
		assert.Equal(t, AED, c)
	})

	t.Run("parse rejects unknown code", func(t *testing.T) {
		_, err := ParseCurrency("ZZQ")
		assert.Error(t, err)
	})

	t.Run("minor units come from the ISO table", func(t *testing.T) {
		assert.Equal(t, int32(2), AED.MinorUnits())
		assert.Equal(t, int32(2), USD.MinorUnits())
		assert.Equal(t, int32(0), JPY.MinorUnits())
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "AED 1,000.00", FormatAmount(decimal.NewFromInt(1000), AED))
	assert.Equal(t, "AED 1,234,567.89", FormatAmount(decimal.RequireFromString("1234567.885"), AED))
	assert.Equal(t, "AED 999.00", FormatAmount(decimal.NewFromInt(999), AED))
	assert.Equal(t, "AED -12.50", FormatAmount(decimal.RequireFromString("-12.5"), AED))
	assert.Contains(t, FormatAmount(decimal.RequireFromString("12.5"), USD), "12.50")
}
