package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(id int, text string, x, y float64) TextBlock {
	return TextBlock{Text: text, CenterX: x, CenterY: y, BlockID: id, PageNumber: 1}
}

func amountBlock(id int, text string, x, y, amount float64) TextBlock {
	b := block(id, text, x, y)
	b.IsAmount = true
	b.Amount = amount
	return b
}

func TestBuildRowsEmptyInput(t *testing.T) {
	assert.Empty(t, BuildRows(nil, RowOptions{}))
}

func TestBuildRowsSingleAmountBlock(t *testing.T) {
	rows := BuildRows([]TextBlock{amountBlock(1, "7.72", 0.8, 0.5, 7.72)}, RowOptions{})
	require.Len(t, rows, 1)
	assert.Equal(t, "7.72", rows[0].Text)
}

func TestBuildRowsBandsByFirstBlockReference(t *testing.T) {
	// Slightly skewed line: each block drifts +0.004. With the reference y
	// pinned to the first block and epsilon 0.01, block 3 (drift 0.012)
	// starts a new row even though it is within epsilon of block 2.
	blocks := []TextBlock{
		block(1, "A", 0.1, 0.100),
		block(2, "B", 0.3, 0.108),
		block(3, "C", 0.5, 0.112),
	}
	rows := BuildRows(blocks, RowOptions{Epsilon: 0.01})
	require.Len(t, rows, 2)
	assert.Equal(t, "A B", rows[0].Text)
	assert.Equal(t, "C", rows[1].Text)
}

func TestBuildRowsPreservesBlockCount(t *testing.T) {
	blocks := []TextBlock{
		block(1, "GOLDEN", 0.1, 0.30),
		block(2, "DEW", 0.2, 0.301),
		block(3, "PEAR", 0.3, 0.299),
		amountBlock(4, "7.72", 0.8, 0.300, 7.72),
		block(5, "SUBTOTAL", 0.1, 0.70),
		amountBlock(6, "53.99", 0.8, 0.701, 53.99),
	}
	rows := BuildRows(blocks, RowOptions{Epsilon: 0.008})

	total := 0
	for _, row := range rows {
		total += len(row.Blocks)
	}
	assert.Equal(t, len(blocks), total)
}

func TestBuildRowsXSortWithinRow(t *testing.T) {
	blocks := []TextBlock{
		amountBlock(1, "7.72", 0.8, 0.300, 7.72),
		block(2, "PEAR", 0.3, 0.3005),
		block(3, "DEW", 0.2, 0.2995),
	}
	rows := BuildRows(blocks, RowOptions{Epsilon: 0.008})
	require.Len(t, rows, 1)
	assert.Equal(t, "DEW PEAR 7.72", rows[0].Text)
}

func TestBuildRowsSplitOnSecondAmount(t *testing.T) {
	// Two prices OCR'd into the same band: compact layouts split them.
	blocks := []TextBlock{
		block(1, "MILK", 0.1, 0.400),
		amountBlock(2, "4.99", 0.5, 0.400, 4.99),
		amountBlock(3, "6.49", 0.9, 0.401, 6.49),
	}

	merged := BuildRows(blocks, RowOptions{Epsilon: 0.008})
	require.Len(t, merged, 1, "opt-out keeps one band")

	split := BuildRows(blocks, RowOptions{Epsilon: 0.008, SplitOnSecondAmount: true})
	require.Len(t, split, 2)
	assert.Equal(t, "MILK 4.99", split[0].Text)
	assert.Equal(t, "6.49", split[1].Text)
}

func TestBuildRowsMultiPageOrdering(t *testing.T) {
	blocks := []TextBlock{
		{Text: "P2", CenterX: 0.1, CenterY: 0.1, BlockID: 1, PageNumber: 2},
		{Text: "P1-BOTTOM", CenterX: 0.1, CenterY: 0.9, BlockID: 2, PageNumber: 1},
	}
	rows := BuildRows(blocks, RowOptions{})
	require.Len(t, rows, 2)
	assert.Equal(t, "P1-BOTTOM", rows[0].Text)
	assert.Equal(t, "P2", rows[1].Text)
}

func TestBuildRowsIdempotent(t *testing.T) {
	blocks := []TextBlock{
		block(1, "A", 0.1, 0.10),
		amountBlock(2, "1.00", 0.8, 0.101, 1),
		block(3, "B", 0.1, 0.20),
	}
	first := BuildRows(blocks, RowOptions{Epsilon: 0.008})
	second := BuildRows(blocks, RowOptions{Epsilon: 0.008})
	assert.Equal(t, first, second)
}
