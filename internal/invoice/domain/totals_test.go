package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotalsScenario(t *testing.T) {
	items, err := BuildItems([]ItemInput{
		{Description: "Consulting", Quantity: d("2"), UnitPrice: d("50")},
		{Description: "Hosting", Quantity: d("1"), UnitPrice: d("25")},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Amount.Equal(d("100")))
	assert.Equal(t, 1, items[1].SortOrder)

	totals, err := ComputeTotals(items, d("10"), d("5"))
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(d("125")), totals.Subtotal.String())
	assert.True(t, totals.TaxAmount.Equal(d("12.5")), totals.TaxAmount.String())
	assert.True(t, totals.Total.Equal(d("132.5")), totals.Total.String())
}

func TestComputeTotalsInvariantHolds(t *testing.T) {
	inputs := []ItemInput{
		{Description: "a", Quantity: d("3"), UnitPrice: d("19.99")},
		{Description: "b", Quantity: d("0.5"), UnitPrice: d("120")},
		{Description: "c", Quantity: d("7"), UnitPrice: d("0")},
	}
	items, err := BuildItems(inputs)
	require.NoError(t, err)

	for _, rate := range []string{"0", "7.5", "21", "100"} {
		totals, err := ComputeTotals(items, d(rate), d("1"))
		require.NoError(t, err)

		sum := decimal.Zero
		for _, in := range inputs {
			sum = sum.Add(in.Quantity.Mul(in.UnitPrice))
		}
		assert.True(t, totals.Subtotal.Equal(sum.Round(2)))
		expected := totals.Subtotal.Add(totals.Subtotal.Mul(d(rate)).Div(d("100")).Round(2)).Sub(d("1"))
		assert.True(t, totals.Total.Equal(expected), "rate %s: %s != %s", rate, totals.Total, expected)
	}
}

func TestBuildItemsRejectsBadLines(t *testing.T) {
	_, err := BuildItems([]ItemInput{
		{Description: "ok", Quantity: d("1"), UnitPrice: d("1")},
		{Description: "zero", Quantity: d("0"), UnitPrice: d("1")},
	})
	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = BuildItems([]ItemInput{{Description: "neg", Quantity: d("1"), UnitPrice: d("-0.01")}})
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, err = BuildItems([]ItemInput{{Description: "tiny", Quantity: d("0.004"), UnitPrice: d("5")}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = BuildItems([]ItemInput{{Description: "huge", Quantity: d("1"), UnitPrice: d("9999999999.996")}})
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	items, err := BuildItems([]ItemInput{{Description: "rounds up", Quantity: d("0.005"), UnitPrice: d("100")}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "0.01", items[0].Quantity.StringFixed(2))
	assert.Equal(t, "1.00", items[0].Amount.StringFixed(2))
}

func TestBuildItemsSkipsBlankDescriptions(t *testing.T) {
	items, err := BuildItems([]ItemInput{
		{Description: "  ", Quantity: d("0"), UnitPrice: d("-1")},
		{Description: "kept", Quantity: d("1"), UnitPrice: d("5")},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].SortOrder)
}

func TestComputeTotalsRejects(t *testing.T) {
	items, err := BuildItems([]ItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("10")}})
	require.NoError(t, err)

	_, err = ComputeTotals(items, d("10"), d("11.01"))
	assert.ErrorIs(t, err, ErrInvalidTotal)

	_, err = ComputeTotals(items, d("100.01"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = ComputeTotals(items, d("-1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = ComputeTotals(items, decimal.Zero, d("-1"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	totals, err := ComputeTotals(nil, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
}

func TestTransitionPolicies(t *testing.T) {
	permissive := TransitionPolicyFor("permissive")
	assert.NoError(t, permissive.Allow(StatusPaid, StatusDraft))
	assert.ErrorIs(t, permissive.Allow(StatusDraft, Status("archived")), ErrInvalidStatus)

	strict := TransitionPolicyFor("STRICT")
	assert.NoError(t, strict.Allow(StatusDraft, StatusSent))
	assert.NoError(t, strict.Allow(StatusOverdue, StatusPaid))
	assert.NoError(t, strict.Allow(StatusPaid, StatusPaid))
	assert.ErrorIs(t, strict.Allow(StatusPaid, StatusDraft), ErrTransitionNotAllowed)
	assert.ErrorIs(t, strict.Allow(StatusCancelled, StatusSent), ErrTransitionNotAllowed)
}
