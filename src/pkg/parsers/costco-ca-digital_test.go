package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostcoCADigitalFullReceipt(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.3, "COSTCO WHOLESALE CANADA")).
		row(txt(0.3, "710 Expo Blvd Vancouver BC")).
		row(txt(0.1, "Member"), txt(0.3, "111222333")).
		row(txt(0.15, "369985"), txt(0.4, "ORG SPINACH"), amt(0.85, "8.99", 8.99)).
		row(txt(0.15, "123456"), txt(0.4, "KS WATER 40PK"), amt(0.85, "4.99", 4.99)).
		row(txt(0.15, "369985"), txt(0.4, "TPD/369985"), amt(0.85, "2.00-", -2.00)).
		row(txt(0.1, "SUBTOTAL"), amt(0.85, "11.98", 11.98)).
		row(txt(0.1, "GST"), amt(0.85, "0.60", 0.60)).
		row(txt(0.1, "PST"), amt(0.85, "0.35", 0.35)).
		row(txt(0.1, "TOTAL TAX"), amt(0.85, "0.98", 0.98)).
		row(txt(0.1, "TOTAL"), amt(0.85, "12.96", 12.96)).
		row(txt(0.1, "VISA"), txt(0.5, "XXXXXXXXXXXX 4321")).
		row(txt(0.1, "2024-03-15 14:32"))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_ca_digital"), "COSTCO WHOLESALE CANADA")
	require.Nil(t, e)
	require.True(t, parsed.Success)

	assert.Equal(t, "costco_ca_digital", parsed.StoreChainID)
	assert.Equal(t, "CAD", parsed.Currency)
	assert.Equal(t, "111222333", parsed.MembershipID)
	assert.Equal(t, "710 Expo Blvd Vancouver BC", parsed.Address)

	require.Len(t, parsed.Items, 2)
	spinach := parsed.Items[0]
	assert.Equal(t, "ORG SPINACH", spinach.ProductName)
	assert.Equal(t, "369985", spinach.Sku)
	assert.InDelta(t, 6.99, spinach.LineTotal, 1e-9, "TPD discount applied")
	require.NotNil(t, spinach.UnitPrice)
	assert.InDelta(t, 8.99, *spinach.UnitPrice, 1e-9)
	assert.True(t, spinach.OnSale)

	water := parsed.Items[1]
	assert.Equal(t, "KS WATER 40PK", water.ProductName)
	assert.InDelta(t, 4.99, water.LineTotal, 1e-9)
	assert.False(t, water.OnSale)

	require.NotNil(t, parsed.Subtotal)
	assert.InDelta(t, 11.98, *parsed.Subtotal, 1e-9)
	require.NotNil(t, parsed.Total)
	assert.InDelta(t, 12.96, *parsed.Total, 1e-9)

	// GST 0.60 + PST 0.35 disagrees with TOTAL TAX 0.98: the residual goes
	// to the largest component and the TOTAL TAX row is dropped.
	require.Len(t, parsed.Taxes, 2)
	assert.Equal(t, "GST", parsed.Taxes[0].Label)
	assert.InDelta(t, 0.63, parsed.Taxes[0].Amount, 1e-9)
	assert.InDelta(t, 0.98, parsed.TaxSum(), 1e-9)

	assert.Equal(t, "visa", parsed.PaymentMethod)
	assert.Equal(t, "4321", parsed.CardLast4)
	assert.Equal(t, "2024-03-15", parsed.PurchaseDate)
	assert.Equal(t, "14:32", parsed.PurchaseTime)

	assert.Equal(t, 2, parsed.Validation.ItemCount)
	assert.True(t, parsed.Validation.HasSubtotal)
	assert.True(t, parsed.Validation.HasTotal)
}

func TestCostcoCADigitalNameContinuation(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.1, "Member"), txt(0.3, "111222333")).
		row(txt(0.15, "771234"), txt(0.4, "KS ORGANIC"), amt(0.85, "12.49", 12.49)).
		row(txt(0.4, "PEANUT BUTTER")).
		row(txt(0.1, "TOTAL"), amt(0.85, "12.49", 12.49))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_ca_digital"), "")
	require.Nil(t, e)

	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "KS ORGANIC PEANUT BUTTER", parsed.Items[0].ProductName)
}

func TestCostcoCADigitalOrphanDiscountLogged(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.1, "Member"), txt(0.3, "111222333")).
		row(txt(0.15, "123456"), txt(0.4, "KS WATER"), amt(0.85, "4.99", 4.99)).
		row(txt(0.4, "TPD/777000"), amt(0.85, "1.00-", -1.00)).
		row(txt(0.1, "TOTAL"), amt(0.85, "4.99", 4.99))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_ca_digital"), "")
	require.Nil(t, e)

	// No item carries SKU 777000 (suffix fallback misses too); the discount
	// must not silently vanish.
	require.Len(t, parsed.Items, 1)
	assert.InDelta(t, 4.99, parsed.Items[0].LineTotal, 1e-9)
	assert.NotEmpty(t, parsed.ErrorLog)
}

func TestCostcoCADigitalCompositeSingleToken(t *testing.T) {
	// OCR sometimes merges "SKU NAME AMOUNT" into one token.
	fixture := newReceiptFixture().
		row(txt(0.1, "Member"), txt(0.3, "111222333")).
		row(txt(0.4, "1628761 KS WATER 4.99")).
		row(txt(0.1, "TOTAL"), amt(0.85, "4.99", 4.99))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_ca_digital"), "")
	require.Nil(t, e)

	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "1628761", parsed.Items[0].Sku)
	assert.Equal(t, "KS WATER", parsed.Items[0].ProductName)
	assert.InDelta(t, 4.99, parsed.Items[0].LineTotal, 1e-9)
}

func TestCostcoCADigitalDegenerateReceipt(t *testing.T) {
	fixture := newReceiptFixture().
		row(txt(0.3, "COSTCO WHOLESALE CANADA")).
		row(txt(0.3, "ILLEGIBLE SMUDGE"))

	parsed, e := Run(fixture.blocks, chainConfig(t, "costco_ca_digital"), "")
	require.Nil(t, e)

	assert.False(t, parsed.Success)
	assert.NotEmpty(t, parsed.ErrorLog)
	assert.Nil(t, parsed.Total)
}
