package geometry

import (
	"sort"
	"strings"
)

// RowType classifies a physical row after region splitting.
type RowType int

const (
	RowUnknown RowType = iota
	RowHeader
	RowItem
	RowTotals
	RowPayment
)

func (rt RowType) String() string {
	switch rt {
	case RowHeader:
		return "header"
	case RowItem:
		return "item"
	case RowTotals:
		return "totals"
	case RowPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// PhysicalRow is an ordered collection of blocks sharing a y-band.
// Blocks are sorted by CenterX ascending; Text is their concatenation.
type PhysicalRow struct {
	RowID   int         `json:"row_id"`
	Blocks  []TextBlock `json:"blocks"`
	YTop    float64     `json:"y_top"`
	YBottom float64     `json:"y_bottom"`
	YCenter float64     `json:"y_center"`
	Text    string      `json:"text"`
	Type    RowType     `json:"row_type"`
}

// RowOptions tunes row reconstruction per store.
type RowOptions struct {
	// Epsilon is the y-band half-width. Dense physical receipts use ~0.008,
	// spaced digital layouts up to ~0.015.
	Epsilon float64
	// SplitOnSecondAmount starts a new row when an amount block would join a
	// row that already ends in an amount. Two prices on one band almost
	// always belong to different items in compact layouts; opt-in per store.
	SplitOnSecondAmount bool
	// SkewCorrection flattens a global page tilt (see CorrectSkew) before
	// banding; opt-in per store.
	SkewCorrection bool
}

// DefaultRowEpsilon is used when a store config carries no override.
const DefaultRowEpsilon = 0.012

/*
BuildRows groups blocks into physical rows.

Blocks are walked in (page, y, x) order. A block joins the current row while
|y - reference_y| <= epsilon, where reference_y is the y of the FIRST block
of the row — not the previous block — so a skewed line cannot drift the band
downward across the page. Page breaks always close the current row.

Output rows are sorted top-to-bottom (multi-page: by page first), blocks
within a row by CenterX ascending. Every input block lands in exactly one
row; empty input yields an empty slice.
*/
func BuildRows(blocks []TextBlock, options RowOptions) []PhysicalRow {
	if options.Epsilon <= 0 {
		options.Epsilon = DefaultRowEpsilon
	}

	input := blocks
	if options.SkewCorrection {
		input = CorrectSkew(NormalizeBlocks(blocks))
	}
	sorted := NormalizeBlocks(input)
	rows := make([]PhysicalRow, 0, len(sorted)/2+1)

	var current []TextBlock
	referenceY := 0.0
	referencePage := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		rows = append(rows, finalizeRow(current, len(rows)))
		current = nil
	}

	for _, block := range sorted {
		if len(current) == 0 {
			current = []TextBlock{block}
			referenceY = block.CenterY
			referencePage = block.PageNumber
			continue
		}

		sameBand := block.PageNumber == referencePage &&
			absFloat(block.CenterY-referenceY) <= options.Epsilon

		if sameBand && options.SplitOnSecondAmount && block.IsAmount && rowHasAmount(current) {
			sameBand = false
		}

		if sameBand {
			current = append(current, block)
			continue
		}

		flush()
		current = []TextBlock{block}
		referenceY = block.CenterY
		referencePage = block.PageNumber
	}
	flush()

	return rows
}

func finalizeRow(blocks []TextBlock, rowID int) PhysicalRow {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].CenterX < blocks[j].CenterX
	})

	top, bottom := blocks[0].CenterY, blocks[0].CenterY
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.CenterY < top {
			top = b.CenterY
		}
		if b.CenterY > bottom {
			bottom = b.CenterY
		}
		texts = append(texts, b.Text)
	}

	return PhysicalRow{
		RowID:   rowID,
		Blocks:  blocks,
		YTop:    top,
		YBottom: bottom,
		YCenter: (top + bottom) / 2,
		Text:    strings.Join(texts, " "),
		Type:    RowUnknown,
	}
}

// rowHasAmount reports whether the band collected so far already carries an
// amount block.
func rowHasAmount(blocks []TextBlock) bool {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].IsAmount {
			return true
		}
	}
	return false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
