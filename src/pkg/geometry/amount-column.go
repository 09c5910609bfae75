package geometry

import (
	"sort"
	"strings"
)

// AmountColumn is a detected vertical band where monetary values cluster.
// A receipt has one primary amount column; a SKU column may appear as a
// secondary cluster to its left.
type AmountColumn struct {
	CenterX    float64 `json:"center_x"`
	Tolerance  float64 `json:"tolerance"`
	Confidence float64 `json:"confidence"`
	BlockCount int     `json:"block_count"`
}

// ColumnFallback supplies store-configured boundaries for receipts too
// sparse to cluster (fewer than 3 distinct x positions).
type ColumnFallback struct {
	CenterX   float64
	Tolerance float64
}

/*
DetectAmountColumn locates the primary amount column over a row slice
(typically the items region).

The center_x of every amount block is collected — discount rows (negative
amount or a leading slash in the row text) are excluded from the sample so a
left-aligned "/targetSKU" marker cannot drag the cluster. The sorted x
distribution is cut at its two largest gaps; the rightmost cluster's mean is
the column center and half the gap preceding the cluster is the tolerance.

Fewer than 3 distinct x values fall back to the store-configured boundary.
*/
func DetectAmountColumn(rows []PhysicalRow, fallback ColumnFallback) AmountColumn {
	var xs []float64
	for _, row := range rows {
		if isDiscountLike(row) {
			continue
		}
		for _, block := range row.Blocks {
			if block.IsAmount {
				xs = append(xs, block.CenterX)
			}
		}
	}

	sort.Float64s(xs)
	if countDistinct(xs) < 3 {
		return AmountColumn{
			CenterX:    fallback.CenterX,
			Tolerance:  fallback.Tolerance,
			Confidence: 0.3,
			BlockCount: len(xs),
		}
	}

	// Find the two largest gaps; the cut before the rightmost cluster is the
	// larger-index one of the two.
	gapIdx1, gapIdx2 := -1, -1 // gap i sits between xs[i] and xs[i+1]
	gap1, gap2 := 0.0, 0.0
	for i := 0; i+1 < len(xs); i++ {
		gap := xs[i+1] - xs[i]
		if gap > gap1 {
			gapIdx2, gap2 = gapIdx1, gap1
			gapIdx1, gap1 = i, gap
		} else if gap > gap2 {
			gapIdx2, gap2 = i, gap
		}
	}

	cut := gapIdx1
	if gapIdx2 > cut {
		cut = gapIdx2
	}

	cluster := xs[cut+1:]
	if len(cluster) == 0 || gap1 == 0 {
		// Degenerate distribution: all amounts in one tight band.
		cluster = xs
	}

	mean := 0.0
	for _, x := range cluster {
		mean += x
	}
	mean /= float64(len(cluster))

	tolerance := fallback.Tolerance
	if cut >= 0 && len(cluster) < len(xs) {
		tolerance = (xs[cut+1] - xs[cut]) / 2
	}
	if tolerance <= 0 {
		tolerance = 0.05
	}

	confidence := float64(len(cluster)) / float64(len(xs))

	return AmountColumn{
		CenterX:    mean,
		Tolerance:  tolerance,
		Confidence: confidence,
		BlockCount: len(cluster),
	}
}

// Contains reports whether x falls inside the column band.
func (c AmountColumn) Contains(x float64) bool {
	return absFloat(x-c.CenterX) <= c.Tolerance
}

func isDiscountLike(row PhysicalRow) bool {
	// "/targetSKU amount" rows keep the slash even when OCR drops the minus.
	if strings.HasPrefix(strings.TrimSpace(row.Text), "/") {
		return true
	}
	for _, block := range row.Blocks {
		if block.IsAmount && block.Amount < 0 {
			return true
		}
	}
	return false
}

func countDistinct(sorted []float64) int {
	count := 0
	for i, x := range sorted {
		if i == 0 || x != sorted[i-1] {
			count++
		}
	}
	return count
}
