package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostcoUSDigitalFullReceipt(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.3, "COSTCO WHOLESALE")).
		row(txt(0.1, "Member"), txt(0.3, "444555666")).
		row(txt(0.15, "111222"), txt(0.4, "ORGANIC EGGS"), amt(0.85, "7.49", 7.49)).
		row(txt(0.15, "333444"), txt(0.4, "PAPER TOWELS"), amt(0.85, "19.99", 19.99)).
		row(txt(0.2, "111222333444"), amt(0.85, "3.00-", -3.00)).
		row(txt(0.1, "SUBTOTAL"), amt(0.85, "24.48", 24.48)).
		row(txt(0.1, "TAX"), amt(0.85, "1.96", 1.96)).
		row(txt(0.2, "TOTAL NUMBER OF ITEMS SOLD = 2")).
		row(txt(0.1, "TOTA"), amt(0.85, "26.44", 26.44)).
		row(txt(0.1, "AMEX"), txt(0.5, "XXXX6789"))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_us_digital"), "COSTCO WHOLESALE")
	require.Nil(t, e)
	require.True(t, parsed.Success)

	assert.Equal(t, "USD", parsed.Currency)
	assert.Equal(t, "444555666", parsed.MembershipID)

	// The concatenated "111222333444 3.00-" discount targets the LAST SKU.
	require.Len(t, parsed.Items, 2)
	assert.InDelta(t, 7.49, parsed.Items[0].LineTotal, 1e-9)
	assert.False(t, parsed.Items[0].OnSale)

	towels := parsed.Items[1]
	assert.Equal(t, "333444", towels.Sku)
	assert.InDelta(t, 16.99, towels.LineTotal, 1e-9)
	assert.True(t, towels.OnSale)

	require.NotNil(t, parsed.Subtotal)
	assert.InDelta(t, 24.48, *parsed.Subtotal, 1e-9)

	// OCR-degraded "TOTA" still supplies the total; the items-sold counter
	// row never does.
	require.NotNil(t, parsed.Total)
	assert.InDelta(t, 26.44, *parsed.Total, 1e-9)

	assert.Equal(t, "amex", parsed.PaymentMethod)
	assert.Equal(t, "6789", parsed.CardLast4)
}

func TestCostcoUSDigitalStrictAmountsRejectSkuFragments(t *testing.T) {
	// A bare "371" misflagged as an amount must not become a 371-dollar item.
	fixture := newReceiptFixture().
		row(txt(0.1, "Member"), txt(0.3, "444555666")).
		row(txt(0.15, "111222"), txt(0.4, "ORGANIC EGGS"), amt(0.85, "7.49", 7.49)).
		row(txt(0.15, "555666"), txt(0.4, "KIRKLAND TOWEL"), amt(0.85, "371", 371)).
		row(txt(0.1, "TOTAL"), amt(0.85, "7.49", 7.49))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_us_digital"), "")
	require.Nil(t, e)

	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "111222", parsed.Items[0].Sku)
}

func TestUsDiscountTargetForms(t *testing.T) {
	cases := []struct {
		rowText    string
		targets    []string
		isDiscount bool
	}{
		{"369985/990929 2.00-", []string{"990929", "369985"}, true},
		{"369985 990929 2.00-", []string{"990929", "369985"}, true},
		{"111222333444 3.00-", []string{"333444", "111222"}, true}, // even split
		{"12345678901 1.50-", []string{"5678901", "1234"}, true},   // longest valid suffix
		{"369985 ORGANIC SPINACH 4.99", nil, false},
		{"369985 990929 2.00", nil, false}, // no negative tail, no slash
	}

	for _, tc := range cases {
		targets, isDiscount := usDiscountTarget(tc.rowText)
		assert.Equal(t, tc.isDiscount, isDiscount, tc.rowText)
		assert.Equal(t, tc.targets, targets, tc.rowText)
	}
}

func TestCostcoUSDigitalSlashDiscountFallsBackToFirstSku(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.1, "Member"), txt(0.3, "444555666")).
		row(txt(0.4, "369985 ITEM A 10.00 N")).
		row(txt(0.3, "369985/990929"), amt(0.85, "2.00-", -2.00)).
		row(txt(0.1, "SUBTOTAL"), amt(0.85, "8.00", 8.00)).
		row(txt(0.1, "TOTAL"), amt(0.85, "8.00", 8.00))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_us_digital"), "COSTCO WHOLESALE")
	require.Nil(t, e)

	// 990929 matches no item (and no last-3 suffix); the first SKU of the
	// pair is the real target and the discount must still attach.
	require.Len(t, parsed.Items, 1)
	item := parsed.Items[0]
	assert.Equal(t, "369985", item.Sku)
	assert.InDelta(t, 8.00, item.LineTotal, 1e-9)
	require.NotNil(t, item.UnitPrice)
	assert.InDelta(t, 10.00, *item.UnitPrice, 1e-9)
	assert.True(t, item.OnSale)
	assert.Empty(t, parsed.ErrorLog)
}

func TestSplitConcatenatedSkus(t *testing.T) {
	first, last, ok := splitConcatenatedSkus("111222333444")
	require.True(t, ok)
	assert.Equal(t, "111222", first)
	assert.Equal(t, "333444", last)

	first, last, ok = splitConcatenatedSkus("12345678901")
	require.True(t, ok)
	assert.Equal(t, "1234", first)
	assert.Equal(t, "5678901", last)

	_, _, ok = splitConcatenatedSkus("123")
	assert.False(t, ok)
}
