package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTntFullReceipt(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.3, "T&T SUPERMARKET")).
		row(txt(0.3, "100 Central Blvd Richmond BC")).
		row(txt(0.1, "***1234567")).
		row(txt(0.2, "GROCERY")).
		row(txt(0.2, "EGG TOFU"), amt(0.8, "2.69", 2.69), txt(0.88, "FP")).
		row(txt(0.2, "GOLDEN DEW PEAR")).
		row(txt(0.2, "0.92 lb @ $8.39/lb"), amt(0.8, "7.72", 7.72), txt(0.88, "FP")).
		row(txt(0.2, "POINTS EARNED"), amt(0.8, "0.00", 0)).
		row(txt(0.2, "Env fee (CRF)"), amt(0.8, "0.05", 0.05)).
		row(txt(0.1, "SUBTOTAL"), amt(0.8, "10.46", 10.46)).
		row(txt(0.1, "GST"), amt(0.8, "0.13", 0.13)).
		row(txt(0.1, "TOTAL"), amt(0.8, "10.59", 10.59)).
		row(txt(0.1, "INTERAC DEBIT APPROVED"))

	parsed, e := Run(fixture.blocks, chainConfig(t, "tnt_ca"), "T&T SUPERMARKET")
	require.Nil(t, e)
	require.True(t, parsed.Success)

	assert.Equal(t, "CAD", parsed.Currency)
	assert.Equal(t, "1234567", parsed.MembershipID, "masked membership row")
	assert.Equal(t, "100 Central Blvd Richmond BC", parsed.Address)

	// Section banner and the zero-value Points row are suppressed; the
	// environment fee stays an item (the sum checker separates fees).
	require.Len(t, parsed.Items, 3)

	tofu := parsed.Items[0]
	assert.Equal(t, "EGG TOFU", tofu.ProductName, "FP suffix stripped")
	assert.InDelta(t, 2.69, tofu.LineTotal, 1e-9)

	pear := parsed.Items[1]
	assert.Equal(t, "GOLDEN DEW PEAR", pear.ProductName)
	assert.InDelta(t, 7.72, pear.LineTotal, 1e-9)
	require.NotNil(t, pear.Quantity)
	assert.InDelta(t, 0.92, *pear.Quantity, 1e-9)
	assert.Equal(t, "lb", pear.Unit)
	require.NotNil(t, pear.UnitPrice)
	assert.InDelta(t, 8.39, *pear.UnitPrice, 1e-9)

	fee := parsed.Items[2]
	assert.Equal(t, "Env fee (CRF)", fee.ProductName)
	assert.InDelta(t, 0.05, fee.LineTotal, 1e-9)

	require.NotNil(t, parsed.Subtotal)
	assert.InDelta(t, 10.46, *parsed.Subtotal, 1e-9)
	require.NotNil(t, parsed.Total)
	assert.InDelta(t, 10.59, *parsed.Total, 1e-9)
	require.Len(t, parsed.Taxes, 1)
	assert.Equal(t, "GST", parsed.Taxes[0].Label)

	assert.Equal(t, "debit", parsed.PaymentMethod)
}

func TestTntCurrencyByVariant(t *testing.T) {
	assert.Equal(t, "CAD", currencyForChain("tnt_ca"))
	assert.Equal(t, "USD", currencyForChain("tnt_us"))
	assert.Equal(t, "CAD", currencyForChain("tnt_base"))
}

func TestTntLineTotalPrefersAmountColumn(t *testing.T) {
	// An instant saving printed right of the price column must not be read
	// as the line total; the amount inside the column wins.
	fixture := newReceiptFixture().
		row(txt(0.1, "***1234567")).
		row(txt(0.2, "EGG TOFU"), amt(0.8, "2.69", 2.69), txt(0.88, "FP")).
		row(txt(0.2, "GAI LAN"), amt(0.8, "3.49", 3.49), txt(0.88, "FP")).
		row(txt(0.2, "GOLDEN DEW PEAR")).
		row(txt(0.2, "0.92 lb @ $8.39/lb"), amt(0.8, "7.72", 7.72), txt(0.88, "FP"), amt(0.95, "0.50-", -0.50)).
		row(txt(0.1, "SUBTOTAL"), amt(0.8, "13.40", 13.40)).
		row(txt(0.1, "TOTAL"), amt(0.8, "13.40", 13.40))

	parsed, e := Run(fixture.blocks, chainConfig(t, "tnt_ca"), "T&T SUPERMARKET")
	require.Nil(t, e)

	require.Len(t, parsed.Items, 3)
	pear := parsed.Items[2]
	assert.Equal(t, "GOLDEN DEW PEAR", pear.ProductName)
	assert.InDelta(t, 7.72, pear.LineTotal, 1e-9)
	require.NotNil(t, pear.UnitPrice)
	assert.InDelta(t, 8.39, *pear.UnitPrice, 1e-9)
}

func TestTntAmountRowWithoutName(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.1, "***1234567")).
		row(amt(0.8, "3.99", 3.99), txt(0.88, "FP")).
		row(txt(0.1, "TOTAL"), amt(0.8, "3.99", 3.99))

	parsed, e := Run(fixture.blocks, chainConfig(t, "tnt_ca"), "")
	require.Nil(t, e)

	// An orphan amount still becomes an item so money is not lost, but the
	// parser flags the missing name.
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "Item", parsed.Items[0].ProductName)
	assert.NotEmpty(t, parsed.ErrorLog)
}
