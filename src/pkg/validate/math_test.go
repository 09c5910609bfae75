package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/util"
)

func TestValidateItemsQuantityMath(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "BANANAS", Quantity: util.Ptr(2.0), UnitPrice: util.Ptr(3.99), LineTotal: 7.98},
		{ProductName: "PEARS", Quantity: util.Ptr(3.0), UnitPrice: util.Ptr(2.00), LineTotal: 6.01},
		{ProductName: "MILK", Quantity: util.Ptr(2.0), UnitPrice: util.Ptr(5.00), LineTotal: 12.00},
	}}

	checks := ValidateItems(parsed, 0.02)
	require.Len(t, checks, 3)

	assert.True(t, checks[0].Passed)
	assert.Equal(t, 1.0, checks[0].Confidence, "cent-exact product")

	assert.True(t, checks[1].Passed, "within tolerance")
	assert.Equal(t, 0.5, checks[1].Confidence, "tolerable but not exact")

	assert.False(t, checks[2].Passed)
	assert.NotEmpty(t, checks[2].Detail)
	assert.Equal(t, 0.5, parsed.Items[2].Confidence, "confidence written back to the item")
}

func TestValidateItemsRecoversPairFromRawText(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "GOLDEN DEW PEAR", LineTotal: 7.72, RawText: "0.92 lb @ $8.39/lb 7.72 FP"},
	}}

	checks := ValidateItems(parsed, 0.02)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].Recovered)
	assert.Equal(t, 1.0, checks[0].Confidence)

	item := parsed.Items[0]
	require.NotNil(t, item.Quantity)
	assert.InDelta(t, 0.92, *item.Quantity, 1e-9)
	require.NotNil(t, item.UnitPrice)
	assert.InDelta(t, 8.39, *item.UnitPrice, 1e-9)
}

func TestValidateItemsNoRecoveryWithoutNumbers(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "APPLES", LineTotal: 4.99, RawText: "APPLES 4.99"},
	}}

	checks := ValidateItems(parsed, 0.02)
	require.Len(t, checks, 1)
	// "4.99" equals the line total, so no factor pair exists.
	assert.False(t, checks[0].Recovered)
	assert.Nil(t, parsed.Items[0].Quantity)
	assert.True(t, checks[0].Passed, "missing quantity is not a math failure")
}
