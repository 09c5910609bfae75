package geometry

import (
	"sort"

	"ledgerlens/src/pkg/util"
)

/*
TextBlock is one OCR-detected token with normalized page geometry.

Coordinates are top-left based and normalized into [0,1]. CenterX/CenterY are
derived from x/y and the dimensions when the provider does not supply them.
Amount is set iff IsAmount is true; the value keeps the sign carried by the
token text (trailing minus means a discount).
*/
type TextBlock struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	IsAmount   bool    `json:"is_amount"`
	Amount     float64 `json:"amount,omitempty"`
	BlockID    int     `json:"block_id"`
	PageNumber int     `json:"page_number"`
	Confidence float64 `json:"confidence,omitempty"`
}

/*
NormalizeBlocks prepares raw provider blocks for row reconstruction:

 1. Clamps coordinates into [0,1].
 2. Derives CenterX/CenterY from x/y plus width/height when absent.
 3. Defaults PageNumber to 1.
 4. Sorts lexicographically by (page_number, center_y, center_x).

The input slice is not modified; a sorted copy is returned.
*/
func NormalizeBlocks(blocks []TextBlock) []TextBlock {
	normalized := make([]TextBlock, len(blocks))
	copy(normalized, blocks)

	for i := range normalized {
		b := &normalized[i]
		b.X = util.Clamp(b.X, 0, 1)
		b.Y = util.Clamp(b.Y, 0, 1)
		if b.CenterX == 0 {
			b.CenterX = util.Clamp(b.X+b.Width/2, 0, 1)
		}
		if b.CenterY == 0 {
			b.CenterY = util.Clamp(b.Y+b.Height/2, 0, 1)
		}
		if b.PageNumber == 0 {
			b.PageNumber = 1
		}
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		a, b := normalized[i], normalized[j]
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		if a.CenterY != b.CenterY {
			return a.CenterY < b.CenterY
		}
		return a.CenterX < b.CenterX
	})

	return normalized
}
