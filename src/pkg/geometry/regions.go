package geometry

import (
	"regexp"
	"strings"
)

// ReceiptRegions partitions ordered rows into the four row-type buckets.
// Concatenating Header+Items+Totals+Payment in order reproduces the input.
type ReceiptRegions struct {
	Header  []PhysicalRow `json:"header"`
	Items   []PhysicalRow `json:"items"`
	Totals  []PhysicalRow `json:"totals"`
	Payment []PhysicalRow `json:"payment"`
}

// All returns the regions flattened back into reading order.
func (r ReceiptRegions) All() []PhysicalRow {
	out := make([]PhysicalRow, 0, len(r.Header)+len(r.Items)+len(r.Totals)+len(r.Payment))
	out = append(out, r.Header...)
	out = append(out, r.Items...)
	out = append(out, r.Totals...)
	out = append(out, r.Payment...)
	return out
}

/*
RegionMarkers carries the compiled marker patterns that drive region
splitting. Patterns match against normalized row text: uppercased, with
punctuation stripped and runs of spaces collapsed.
*/
type RegionMarkers struct {
	// MemberPattern closes the header and opens items ("MEMBER 12345...").
	MemberPattern *regexp.Regexp
	// SubtotalPattern closes items and opens totals.
	SubtotalPattern *regexp.Regexp
	// TaxPattern advances within totals (HST, GST, TAX...).
	TaxPattern *regexp.Regexp
	// TotalPattern closes totals and opens payment. It must not fire on
	// SUBTOTAL or on "ITEMS SOLD" counter rows; ExcludeTotalPattern guards.
	TotalPattern        *regexp.Regexp
	ExcludeTotalPattern *regexp.Regexp
	// ItemStartPattern is the fallback header terminator when no member
	// marker exists: the first row that looks like an item.
	ItemStartPattern *regexp.Regexp
}

// DefaultRegionMarkers covers the grocery layouts this pipeline ships with;
// store configs override individual patterns.
func DefaultRegionMarkers() RegionMarkers {
	return RegionMarkers{
		MemberPattern:       regexp.MustCompile(`\bMEMBER\b|\bMEMBERSHIP\b|^\*{3}\d+`),
		SubtotalPattern:     regexp.MustCompile(`\bSUB\s?TOTAL\b|\bSUBTOTA?L?\b`),
		TaxPattern:          regexp.MustCompile(`\bTAX\b|\bHST\b|\bGST\b|\bPST\b`),
		TotalPattern:        regexp.MustCompile(`\bTOTAL\b|\bTOTA\b|\bTOTAL PURCHASE\b`),
		ExcludeTotalPattern: regexp.MustCompile(`\bSUB\s?TOTAL\b|ITEMS SOLD|NUMBER OF ITEMS|\bTOTAL TAX\b|\bBALANCE TO PAY\b`),
		ItemStartPattern:    regexp.MustCompile(`^\d{4,7}\b|\d+\.\d{2}\s*$`),
	}
}

// Periods survive normalization so amount tails ("7.72") stay matchable;
// asterisks survive for masked membership rows.
var regionPunctRegexp = regexp.MustCompile(`[^A-Z0-9*/. ]+`)
var regionSpaceRegexp = regexp.MustCompile(`\s+`)

// NormalizeRowText uppercases, strips punctuation and collapses whitespace
// the way the region markers expect.
func NormalizeRowText(text string) string {
	upper := strings.ToUpper(text)
	upper = regionPunctRegexp.ReplaceAllString(upper, " ")
	upper = regionSpaceRegexp.ReplaceAllString(upper, " ")
	return strings.TrimSpace(upper)
}

/*
SplitRegions walks rows top-to-bottom with a four-state machine
(Header -> Items -> Totals -> Payment) driven by the marker patterns:

  - a member-like row closes the header (the marker row itself stays in the
    header, since membership is a header fact, not an item);
  - a subtotal-like row closes items and lands in totals;
  - a total row (excluding subtotal/items-sold/balance-to-pay) closes totals;
    everything after it is payment.

Missing markers degrade gracefully: without a member row the header ends at
the first plausible item row; without a subtotal the items region runs until
a total-like row (grocery mode for the validator); without any total the
machine simply never leaves items, which downstream treats as needs_review.

Row types are stamped on the returned rows; the input slice is untouched.
*/
func SplitRegions(rows []PhysicalRow, markers RegionMarkers) ReceiptRegions {
	regions := ReceiptRegions{}
	state := RowHeader

	for _, row := range rows {
		normalized := NormalizeRowText(row.Text)

		switch state {
		case RowHeader:
			if markers.MemberPattern != nil && markers.MemberPattern.MatchString(normalized) {
				row.Type = RowHeader
				regions.Header = append(regions.Header, row)
				state = RowItem
				continue
			}
			if markers.ItemStartPattern != nil && markers.ItemStartPattern.MatchString(normalized) {
				state = RowItem
				// fall through to the items case below
			} else {
				row.Type = RowHeader
				regions.Header = append(regions.Header, row)
				continue
			}
			fallthrough

		case RowItem:
			if isTotalMarker(normalized, markers) {
				row.Type = RowTotals
				regions.Totals = append(regions.Totals, row)
				state = RowPayment
				continue
			}
			if markers.SubtotalPattern != nil && markers.SubtotalPattern.MatchString(normalized) {
				row.Type = RowTotals
				regions.Totals = append(regions.Totals, row)
				state = RowTotals
				continue
			}
			row.Type = RowItem
			regions.Items = append(regions.Items, row)

		case RowTotals:
			row.Type = RowTotals
			regions.Totals = append(regions.Totals, row)
			if isTotalMarker(normalized, markers) {
				state = RowPayment
			}

		case RowPayment:
			row.Type = RowPayment
			regions.Payment = append(regions.Payment, row)
		}
	}

	return regions
}

func isTotalMarker(normalized string, markers RegionMarkers) bool {
	if markers.TotalPattern == nil || !markers.TotalPattern.MatchString(normalized) {
		return false
	}
	if markers.ExcludeTotalPattern != nil && markers.ExcludeTotalPattern.MatchString(normalized) {
		return false
	}
	return true
}
