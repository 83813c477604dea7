package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	moneyScale           = 2
	maxDescriptionLength = 500
)

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.RequireFromString("9999999999.99")
)

// ItemInput is one caller-supplied line.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Totals are the computed money fields of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ItemError locates a validation failure on a single line.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("items[%d]: %s", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BuildItems validates the lines and computes their amounts. Lines with a
// blank description are skipped; sort order follows input order.
func BuildItems(inputs []ItemInput) ([]InvoiceItem, error) {
	items := make([]InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		description := strings.TrimSpace(in.Description)
		if description == "" {
			continue
		}
		if len(description) > maxDescriptionLength {
			return nil, &ItemError{Index: i, Err: ErrInvalidDescription}
		}

		// Bounds are checked on the stored 2dp values.
		quantity := in.Quantity.Round(moneyScale)
		if !quantity.IsPositive() || quantity.GreaterThan(maxAmount) {
			return nil, &ItemError{Index: i, Err: ErrInvalidQuantity}
		}
		if in.UnitPrice.IsNegative() {
			return nil, &ItemError{Index: i, Err: ErrInvalidUnitPrice}
		}
		unitPrice := in.UnitPrice.Round(moneyScale)
		if unitPrice.GreaterThan(maxAmount) {
			return nil, &ItemError{Index: i, Err: ErrInvalidUnitPrice}
		}
		items = append(items, InvoiceItem{
			Description: description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Amount:      quantity.Mul(unitPrice).Round(moneyScale),
			SortOrder:   len(items),
		})
	}
	return items, nil
}

// ComputeTotals applies tax_amount = subtotal*rate/100 and
// total = subtotal + tax_amount - discount. A negative total is rejected.
func ComputeTotals(items []InvoiceItem, taxRate, discount decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return Totals{}, ErrInvalidTaxRate
	}
	if discount.IsNegative() || discount.GreaterThan(maxAmount) {
		return Totals{}, ErrInvalidDiscount
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount)
	}
	if subtotal.GreaterThan(maxAmount) {
		return Totals{}, ErrInvalidTotal
	}

	taxAmount := subtotal.Mul(taxRate).Div(hundred).Round(moneyScale)
	total := subtotal.Add(taxAmount).Sub(discount.Round(moneyScale))
	if total.IsNegative() || total.GreaterThan(maxAmount) {
		return Totals{}, ErrInvalidTotal
	}

	return Totals{
		Subtotal:  subtotal.Round(moneyScale),
		TaxAmount: taxAmount,
		Total:     total.Round(moneyScale),
	}, nil
}
