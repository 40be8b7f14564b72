package valueobject

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	AED Currency = "AED" // UAE Dirham (default)
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	SAR Currency = "SAR"
	JPY Currency = "JPY"
)

// DefaultCurrency is the currency used when an invoice does not specify one
const DefaultCurrency = AED

// ParseCurrency validates a currency code against the ISO 4217 table
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// Unit returns the x/text currency unit. Unknown codes yield XXX.
func (c Currency) Unit() currency.Unit {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return currency.XXX
	}
	return unit
}

// MinorUnits returns the number of decimal places used by the currency.
// Codes unknown to the ISO table default to 2.
func (c Currency) MinorUnits() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// IsValid reports whether the code is a known ISO 4217 currency
func (c Currency) IsValid() bool {
	_, err := currency.ParseISO(string(c))
	return err == nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}
