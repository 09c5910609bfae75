package ocrnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/src/pkg/geometry"
)

func TestNormalizeDerivesAmounts(t *testing.T) {
	output := ProviderOutput{
		Blocks: []geometry.TextBlock{
			{Text: "369985", CenterX: 0.1, CenterY: 0.3},
			{Text: "ITEM", CenterX: 0.4, CenterY: 0.3},
			{Text: "10.00", CenterX: 0.85, CenterY: 0.3},
			{Text: "2.00-", CenterX: 0.85, CenterY: 0.35},
		},
	}

	normalized := Normalize(output, "test")

	byText := map[string]geometry.TextBlock{}
	for _, b := range normalized.Blocks {
		byText[b.Text] = b
	}

	assert.False(t, byText["369985"].IsAmount, "bare integer stays a SKU")
	assert.False(t, byText["ITEM"].IsAmount)
	require.True(t, byText["10.00"].IsAmount)
	assert.Equal(t, 10.00, byText["10.00"].Amount)
	require.True(t, byText["2.00-"].IsAmount)
	assert.Equal(t, -2.00, byText["2.00-"].Amount)
}

func TestNormalizeAssignsStableBlockIDs(t *testing.T) {
	output := ProviderOutput{
		Blocks: []geometry.TextBlock{
			{Text: "B", CenterX: 0.5, CenterY: 0.6},
			{Text: "A", CenterX: 0.5, CenterY: 0.2},
		},
	}
	normalized := Normalize(output, "test")
	require.Len(t, normalized.Blocks, 2)
	assert.Equal(t, "A", normalized.Blocks[0].Text, "reading order first")
	assert.Equal(t, 0, normalized.Blocks[0].BlockID)
	assert.Equal(t, 1, normalized.Blocks[1].BlockID)
}

func TestNormalizeRawTextFromBlocks(t *testing.T) {
	output := ProviderOutput{
		Blocks: []geometry.TextBlock{
			{Text: "GOLDEN", CenterX: 0.1, CenterY: 0.30},
			{Text: "PEAR", CenterX: 0.3, CenterY: 0.30},
			{Text: "7.72", CenterX: 0.8, CenterY: 0.301},
			{Text: "TOTAL", CenterX: 0.1, CenterY: 0.60},
		},
	}
	normalized := Normalize(output, "test")
	assert.Equal(t, "GOLDEN PEAR 7.72\nTOTAL", normalized.RawText)
}

func TestNormalizeTextOnlyProvider(t *testing.T) {
	normalized := Normalize(ProviderOutput{RawText: "TOTAL 12.34"}, TesseractProviderTag)
	assert.Equal(t, "TOTAL 12.34", normalized.RawText)
	assert.Empty(t, normalized.Blocks)
	assert.Empty(t, normalized.Entities)
	assert.Empty(t, normalized.LineItems)
	assert.Equal(t, TesseractProviderTag, normalized.Metadata.OcrProvider)
}

func TestExtractUnifiedInfoFiltersTrustedHints(t *testing.T) {
	total := 54.10
	normalized := &NormalizedOcr{
		RawText:      "...",
		MerchantName: "T&T Supermarket",
		Entities: map[string]EntityValue{
			"TOTAL":       {Text: "54.10", Confidence: 0.99, NormalizedMoney: &total},
			"SUBTOTAL":    {Text: "53.99", Confidence: 0.80},
			"VENDOR_NAME": {Text: "T&T Supermarket", Confidence: 0.97},
		},
	}

	info := normalized.ExtractUnifiedInfo()

	require.Contains(t, info.TrustedHints, "TOTAL")
	assert.Contains(t, info.TrustedHints, "VENDOR_NAME")
	assert.NotContains(t, info.TrustedHints, "SUBTOTAL", "below the 0.95 floor")
	require.NotNil(t, info.Total)
	assert.Equal(t, 54.10, *info.Total)
}

func TestNewEntityValueNormalizedForms(t *testing.T) {
	total := NewEntityValue("TOTAL", "$54.10", 0.99)
	require.NotNil(t, total.NormalizedMoney)
	assert.Equal(t, 54.10, *total.NormalizedMoney)

	date := NewEntityValue("INVOICE_RECEIPT_DATE", "01/15/2026", 0.98)
	require.NotNil(t, date.NormalizedDate)
	assert.Equal(t, "2026-01-15", *date.NormalizedDate)

	name := NewEntityValue("VENDOR_NAME", " Costco Wholesale ", 0.9)
	assert.Equal(t, "Costco Wholesale", name.Text)
	assert.Nil(t, name.NormalizedMoney)
}
