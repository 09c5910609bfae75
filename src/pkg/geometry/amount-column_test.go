package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAmountColumnTwoClusters(t *testing.T) {
	// SKU column near x=0.1, names mid-page, amounts near x=0.85.
	rows := []PhysicalRow{
		{Blocks: []TextBlock{
			amountBlock(1, "369985", 0.10, 0.30, 369985),
			amountBlock(2, "10.00", 0.84, 0.30, 10.00),
		}},
		{Blocks: []TextBlock{
			amountBlock(3, "123456", 0.11, 0.32, 123456),
			amountBlock(4, "5.00", 0.86, 0.32, 5.00),
		}},
		{Blocks: []TextBlock{
			amountBlock(5, "4.99", 0.85, 0.34, 4.99),
		}},
	}

	column := DetectAmountColumn(rows, ColumnFallback{CenterX: 0.8, Tolerance: 0.1})

	assert.InDelta(t, 0.85, column.CenterX, 0.01)
	assert.True(t, column.Contains(0.86))
	assert.False(t, column.Contains(0.11), "SKU cluster stays outside")
	assert.Equal(t, 3, column.BlockCount)
}

func TestDetectAmountColumnFallback(t *testing.T) {
	rows := []PhysicalRow{
		{Blocks: []TextBlock{amountBlock(1, "4.99", 0.85, 0.3, 4.99)}},
	}
	column := DetectAmountColumn(rows, ColumnFallback{CenterX: 0.82, Tolerance: 0.07})
	assert.Equal(t, 0.82, column.CenterX)
	assert.Equal(t, 0.07, column.Tolerance)
}

func TestDetectAmountColumnExcludesDiscountRows(t *testing.T) {
	rows := []PhysicalRow{
		{Blocks: []TextBlock{amountBlock(1, "10.00", 0.84, 0.30, 10.00)}},
		{Blocks: []TextBlock{amountBlock(2, "5.00", 0.86, 0.32, 5.00)}},
		{Blocks: []TextBlock{amountBlock(3, "4.99", 0.85, 0.34, 4.99)}},
		{Blocks: []TextBlock{amountBlock(4, "6.49", 0.83, 0.35, 6.49)}},
		// Discount row with a left-aligned negative amount would drag the
		// cluster left if it were sampled.
		{Blocks: []TextBlock{amountBlock(5, "2.00-", 0.40, 0.36, -2.00)}},
	}
	column := DetectAmountColumn(rows, ColumnFallback{CenterX: 0.8, Tolerance: 0.1})
	assert.InDelta(t, 0.845, column.CenterX, 0.02)
}

func TestDetectAmountColumnExcludesSlashDiscountRows(t *testing.T) {
	// OCR dropped the trailing minus; the leading slash still marks the row
	// as a discount and keeps it out of the sample.
	rows := []PhysicalRow{
		{Blocks: []TextBlock{amountBlock(1, "10.00", 0.84, 0.30, 10.00)}},
		{Blocks: []TextBlock{amountBlock(2, "5.00", 0.86, 0.32, 5.00)}},
		{Blocks: []TextBlock{amountBlock(3, "4.99", 0.85, 0.34, 4.99)}},
		{Blocks: []TextBlock{amountBlock(4, "6.49", 0.83, 0.35, 6.49)}},
		{Text: "/369985 2.00", Blocks: []TextBlock{amountBlock(5, "2.00", 0.40, 0.36, 2.00)}},
	}
	column := DetectAmountColumn(rows, ColumnFallback{CenterX: 0.8, Tolerance: 0.1})
	assert.InDelta(t, 0.845, column.CenterX, 0.02)
}

func TestAmountUsageTrackerSingleUse(t *testing.T) {
	tracker := NewAmountUsageTracker()
	assert.True(t, tracker.Consume(7, "subtotal"))
	assert.False(t, tracker.Consume(7, "line_total"), "block consumed at most once per run")
	assert.Equal(t, "subtotal", tracker.RoleOf(7))
	assert.Equal(t, 1, tracker.UsedCount())
}
