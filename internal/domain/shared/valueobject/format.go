package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var symbolPrinter = message.NewPrinter(language.English)

// Symbol returns the English display symbol for the currency ("$" for USD,
// the ISO code where no symbol exists).
func (c Currency) Symbol() string {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return string(c)
	}
	return symbolPrinter.Sprint(currency.Symbol(unit))
}

// FormatAmount renders an amount for display: symbol, a space, the amount
// rounded half-up to the currency's minor units, with thousands grouping.
// It has no side effects and depends only on its inputs.
func FormatAmount(amount decimal.Decimal, c Currency) string {
	scale := c.MinorUnits()
	fixed := amount.Round(scale).StringFixed(scale)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(c.Symbol())
	b.WriteByte(' ')
	b.WriteString(sign)
	b.WriteString(groupThousands(intPart))
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
