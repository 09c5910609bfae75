package geometry

import "sort"

const (
	// skewPairBand bounds the y distance of a block pair assumed to share a
	// printed line when sampling the tilt.
	skewPairBand = 2 * DefaultRowEpsilon
	// skewMinSpan is the horizontal span a pair needs for a usable dy/dx.
	skewMinSpan = 0.25
	// skewMinSlope is the tilt below which correction is skipped; pairs from
	// adjacent lines contribute symmetric noise around zero.
	skewMinSlope = 0.004
)

/*
CorrectSkew flattens a global page tilt before row reconstruction.

Phone photos of long receipts are rarely level; a tilted page makes the
right-edge amount of an item drift out of the y-band of its name and row
banding falls apart. The tilt is estimated as the median dy/dx over block
pairs that plausibly share a printed line (same page, y within skewPairBand,
horizontal span of at least skewMinSpan), and every block's CenterY is
shifted by -slope*CenterX so banding sees a level page.

Fewer than 3 usable pairs, or a tilt below skewMinSlope, return the input
unchanged. The input slice is never modified.
*/
func CorrectSkew(blocks []TextBlock) []TextBlock {
	var slopes []float64
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			a, b := blocks[i], blocks[j]
			if a.PageNumber != b.PageNumber {
				continue
			}
			dx := b.CenterX - a.CenterX
			if absFloat(dx) < skewMinSpan {
				continue
			}
			dy := b.CenterY - a.CenterY
			if absFloat(dy) > skewPairBand {
				continue
			}
			slopes = append(slopes, dy/dx)
		}
	}
	if len(slopes) < 3 {
		return blocks
	}

	sort.Float64s(slopes)
	slope := slopes[len(slopes)/2]
	if absFloat(slope) < skewMinSlope {
		return blocks
	}

	corrected := make([]TextBlock, len(blocks))
	for i, block := range blocks {
		block.CenterY -= slope * block.CenterX
		corrected[i] = block
	}
	return corrected
}
