package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/src/pkg/parsers"
)

func TestDetectPackagePromoSubsetMatch(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "YOGURT A", LineTotal: 4.50, OnSale: true},
		{ProductName: "BREAD", LineTotal: 3.29},
		{ProductName: "YOGURT B", LineTotal: 4.50, OnSale: true},
	}}

	report := &ValidationReport{}
	detectPackagePromos(report, parsed, "YOGURT 2/$9.00 MIX AND MATCH", 0.03)

	require.Len(t, report.PackagePromos, 1)
	promo := report.PackagePromos[0]
	assert.Equal(t, 2, promo.Count)
	assert.InDelta(t, 9.00, promo.PackagePrice, 1e-9)
	assert.True(t, promo.Matched)
	assert.Equal(t, []int{0, 2}, promo.ItemIndexes, "the non-sale item is skipped")
}

func TestDetectPackagePromoUnmatchedStillRecorded(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "YOGURT A", LineTotal: 4.50, OnSale: true},
	}}

	report := &ValidationReport{}
	detectPackagePromos(report, parsed, "3 for $10.00", 0.03)

	require.Len(t, report.PackagePromos, 1)
	assert.False(t, report.PackagePromos[0].Matched)
	assert.Empty(t, report.PackagePromos[0].ItemIndexes)
}

func TestDetectPackagePromoIgnoresSingles(t *testing.T) {
	report := &ValidationReport{}
	detectPackagePromos(report, &parsers.ParsedReceipt{}, "1/$5.00 SPECIAL", 0.03)
	assert.Empty(t, report.PackagePromos)
}

func TestDetectPackagePromoLargeCountUsesConsecutiveRuns(t *testing.T) {
	parsed := &parsers.ParsedReceipt{Items: []parsers.ExtractedItem{
		{ProductName: "CUP NOODLE 1", LineTotal: 1.25, OnSale: true},
		{ProductName: "CUP NOODLE 2", LineTotal: 1.25, OnSale: true},
		{ProductName: "CUP NOODLE 3", LineTotal: 1.25, OnSale: true},
		{ProductName: "CUP NOODLE 4", LineTotal: 1.25, OnSale: true},
	}}

	report := &ValidationReport{}
	detectPackagePromos(report, parsed, "4 for $5.00", 0.03)

	require.Len(t, report.PackagePromos, 1)
	assert.True(t, report.PackagePromos[0].Matched)
	assert.Equal(t, []int{0, 1, 2, 3}, report.PackagePromos[0].ItemIndexes)
}
