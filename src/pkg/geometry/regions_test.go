package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textRow(id int, text string) PhysicalRow {
	return PhysicalRow{RowID: id, Text: text}
}

func TestSplitRegionsStandardReceipt(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "COSTCO WHOLESALE"),
		textRow(1, "123 MAIN ST"),
		textRow(2, "Member 111222333"),
		textRow(3, "369985 ITEM A 10.00"),
		textRow(4, "123456 ITEM B 5.00"),
		textRow(5, "SUBTOTAL 15.00"),
		textRow(6, "HST 1.95"),
		textRow(7, "TOTAL 16.95"),
		textRow(8, "XXXXXXXXXXXX1234 VISA"),
	}

	regions := SplitRegions(rows, DefaultRegionMarkers())

	assert.Len(t, regions.Header, 3)
	assert.Len(t, regions.Items, 2)
	assert.Len(t, regions.Totals, 3)
	assert.Len(t, regions.Payment, 1)
}

func TestSplitRegionsIsPartition(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "T&T SUPERMARKET"),
		textRow(1, "GOLDEN DEW PEAR 7.72"),
		textRow(2, "SUBTOTAL 7.72"),
		textRow(3, "TOTAL 7.72"),
		textRow(4, "VISA"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())

	flat := regions.All()
	require.Len(t, flat, len(rows))
	for i, row := range flat {
		assert.Equal(t, rows[i].RowID, row.RowID, "ordering preserved at %d", i)
		assert.NotEqual(t, RowUnknown, row.Type)
	}
}

func TestSplitRegionsNoMemberMarkerFallsBackToFirstItem(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "TRADER JOE'S"),
		textRow(1, "SPARKL FRENCH PINK LEMAD 3.99"),
		textRow(2, "TOTAL PURCHASE 3.99"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())
	assert.Len(t, regions.Header, 1)
	assert.Len(t, regions.Items, 1)
	assert.Len(t, regions.Totals, 1)
}

func TestSplitRegionsMissingSubtotalGroceryMode(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "T&T SUPERMARKET"),
		textRow(1, "***1234567"),
		textRow(2, "GOLDEN DEW PEAR 7.72"),
		textRow(3, "Bottle deposit 0.10"),
		textRow(4, "TOTAL 7.82"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())
	assert.Len(t, regions.Items, 2, "items run straight to the TOTAL row")
	require.Len(t, regions.Totals, 1)
	assert.Contains(t, regions.Totals[0].Text, "TOTAL")
}

func TestSplitRegionsItemsSoldRowDoesNotCloseTotals(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "Member 111"),
		textRow(1, "100001 THING 4.00"),
		textRow(2, "SUBTOTAL 4.00"),
		textRow(3, "TOTAL NUMBER OF ITEMS SOLD 1"),
		textRow(4, "TOTAL 4.00"),
		textRow(5, "AMEX"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())
	assert.Len(t, regions.Totals, 3, "items-sold counter stays inside totals")
	assert.Len(t, regions.Payment, 1)
}

func TestSplitRegionsTotalTaxDoesNotCloseTotals(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "Member 111"),
		textRow(1, "100001 THING 4.00"),
		textRow(2, "SUBTOTAL 4.00"),
		textRow(3, "GST 0.20"),
		textRow(4, "TOTAL TAX 0.20"),
		textRow(5, "TOTAL 4.20"),
		textRow(6, "VISA"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())
	assert.Len(t, regions.Totals, 4, "TOTAL TAX is a tax line, not the grand total")
	assert.Len(t, regions.Payment, 1)
}

func TestSplitRegionsMissingTotalStaysInItems(t *testing.T) {
	rows := []PhysicalRow{
		textRow(0, "Member 111"),
		textRow(1, "100001 THING 4.00"),
		textRow(2, "100002 OTHER 5.00"),
	}
	regions := SplitRegions(rows, DefaultRegionMarkers())
	assert.Empty(t, regions.Totals)
	assert.Empty(t, regions.Payment)
	assert.Len(t, regions.Items, 2)
}
