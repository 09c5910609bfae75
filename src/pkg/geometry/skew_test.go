package geometry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tiltedBlocks lays four name/amount rows on a 0.02 tilt: the amount at
// x 0.85 sits 0.015 below its name, outside the default banding epsilon.
func tiltedBlocks() []TextBlock {
	names := []string{"EGG TOFU", "GAI LAN", "SOY MILK", "GOLDEN DEW PEAR"}
	var blocks []TextBlock
	for i, name := range names {
		base := 0.10 + 0.04*float64(i)
		blocks = append(blocks,
			block(2*i+1, name, 0.1, base+0.02*0.1),
			amountBlock(2*i+2, "2.69", 0.85, base+0.02*0.85, 2.69),
		)
	}
	return blocks
}

func TestCorrectSkewFlattensTiltedPage(t *testing.T) {
	corrected := CorrectSkew(tiltedBlocks())
	require.Len(t, corrected, 8)

	// Name and amount of each row land back on the same y.
	for i := 0; i < len(corrected); i += 2 {
		assert.InDelta(t, corrected[i].CenterY, corrected[i+1].CenterY, 1e-9)
	}
}

func TestBuildRowsWithSkewCorrection(t *testing.T) {
	blocks := tiltedBlocks()

	// Untreated, every amount drifts out of its name's band.
	drifted := BuildRows(blocks, RowOptions{})
	assert.Len(t, drifted, 8)

	rows := BuildRows(blocks, RowOptions{SkewCorrection: true})
	require.Len(t, rows, 4)
	for i, row := range rows {
		require.Len(t, row.Blocks, 2, fmt.Sprintf("row %d", i))
		assert.True(t, row.Blocks[1].IsAmount)
	}
}

func TestCorrectSkewLeavesLevelPageAlone(t *testing.T) {
	blocks := []TextBlock{
		block(1, "EGG TOFU", 0.1, 0.10),
		amountBlock(2, "2.69", 0.85, 0.10, 2.69),
		block(3, "GAI LAN", 0.1, 0.14),
		amountBlock(4, "3.49", 0.85, 0.14, 3.49),
		block(5, "SOY MILK", 0.1, 0.18),
		amountBlock(6, "4.29", 0.85, 0.18, 4.29),
	}
	assert.Equal(t, blocks, CorrectSkew(blocks))
}

func TestCorrectSkewTooFewPairs(t *testing.T) {
	// A single narrow column offers no pair with usable horizontal span.
	blocks := []TextBlock{
		block(1, "SUBTOTAL", 0.1, 0.10),
		block(2, "TOTAL", 0.1, 0.14),
	}
	assert.Equal(t, blocks, CorrectSkew(blocks))
}
