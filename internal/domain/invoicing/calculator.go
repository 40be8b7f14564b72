package invoicing

import (
	"fmt"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	maxTaxRate = hundred
)

// LineItem is a billable line of an invoice. TaxRate is a percentage.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// NetAmount returns quantity * unit price, unrounded
func (li LineItem) NetAmount() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// TaxAmount returns the tax on the net amount, unrounded
func (li LineItem) TaxAmount() decimal.Decimal {
	return li.NetAmount().Mul(li.TaxRate).Div(hundred)
}

// Validate checks quantity, price and tax rate
func (li LineItem) Validate() error {
	if !li.Quantity.IsPositive() {
		return shared.NewValidationError(CodeInvalidQuantity,
			fmt.Sprintf("line %d: quantity must be positive", li.LineNumber))
	}
	if li.UnitPrice.IsNegative() {
		return shared.NewValidationError(CodeInvalidAmount,
			fmt.Sprintf("line %d: unit price cannot be negative", li.LineNumber))
	}
	return ValidateTaxRate(li.TaxRate)
}

// ValidateTaxRate accepts rates in [0, 100]
func ValidateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxTaxRate) {
		return shared.NewValidationError(CodeInvalidTaxRate,
			fmt.Sprintf("tax rate %s is outside [0, 100]", rate.String()))
	}
	return nil
}

// Totals is the result of an invoice calculation
type Totals struct {
	Subtotal   decimal.Decimal      `json:"subtotal"`
	TaxAmount  decimal.Decimal      `json:"tax_amount"`
	GrandTotal decimal.Decimal      `json:"grand_total"`
	Currency   valueobject.Currency `json:"currency"`
}

// CalculateTotals sums line items and rounds once, at the end, to the
// currency's minor unit. Line amounts are never rounded individually.
// GrandTotal is derived from the rounded parts so Subtotal + TaxAmount
// equals GrandTotal exactly.
func CalculateTotals(items []LineItem, currency valueobject.Currency) (Totals, error) {
	if !currency.IsValid() {
		return Totals{}, shared.NewValidationError(CodeInvalidCurrency, fmt.Sprintf("unknown currency %q", currency))
	}

	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(item.NetAmount())
		tax = tax.Add(item.TaxAmount())
	}

	scale := currency.MinorUnits()
	subtotal = subtotal.Round(scale)
	tax = tax.Round(scale)

	return Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
		Currency:   currency,
	}, nil
}
