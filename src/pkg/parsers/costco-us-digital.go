package parsers

import (
	"regexp"
	"strings"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/storecfg"
)

var (
	// skuPairRegexp matches the slash-separated discount form "369985/990929".
	skuPairRegexp = regexp.MustCompile(`\b(\d{4,7})\s*/\s*(\d{4,7})\b`)
	// concatenatedSkusRegexp matches two SKUs OCR glued into one 10-14 digit
	// token.
	concatenatedSkusRegexp = regexp.MustCompile(`\b(\d{10,14})\b`)
)

/*
costcoUSDigitalParser reads Costco US digital receipts.

Differences from the Canadian layout:
  - discount rows carry two SKUs (slash-separated, space-separated or OCR
    glued into one long token) instead of the "TPD/" prefix; the target is
    the LAST SKU of the row;
  - amounts must be in strict XX.XX form so SKU fragments like "371" cannot
    be misread as dollars;
  - OCR-degraded "TOTA" is accepted as the total marker (the region markers
    handle that), while "TOTAL NUMBER OF ITEMS SOLD" rows never supply the
    total.
*/
type costcoUSDigitalParser struct{}

func (costcoUSDigitalParser) Family() storecfg.LayoutFamily {
	return storecfg.FamilyCostcoUSDigital
}

func (costcoUSDigitalParser) Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	markers, e := cfg.RegionMarkers()
	if e != nil {
		return nil, e
	}

	rows := geometry.BuildRows(blocks, cfg.RowOptions())
	regions := geometry.SplitRegions(rows, markers)
	tracker := geometry.NewAmountUsageTracker()

	parsed = newReceipt(cfg, merchantName)
	parsed.Currency = "USD"

	extractHeaderFacts(parsed, regions.Header)
	parseCostcoDigitalItems(parsed, regions.Items, tracker, costcoDigitalDialect{
		discountTarget: usDiscountTarget,
		strictAmounts:  true,
	})
	extractTotals(parsed, regions.Totals, tracker)
	extractPaymentFacts(parsed, regions.Payment)

	finalizeReceipt(parsed)
	return parsed, nil
}

/*
usDiscountTarget recognizes the US digital discount forms:

	"369985/990929 2.00-"   slash pair
	"369985 990929 2.00-"   space pair with a trailing-minus amount
	"369985990929 2.00-"    OCR-concatenated pair, split heuristically

The preferred target is the last SKU of the row, but either half of the pair
can be the one that matches an item (the other is a promo code, and OCR
sometimes swaps them), so every row SKU is returned, last first.
*/
func usDiscountTarget(rowText string) (targetSkus []string, isDiscount bool) {
	if m := skuPairRegexp.FindStringSubmatch(rowText); m != nil {
		return []string{m[2], m[1]}, true
	}

	negativeTail := strings.HasSuffix(strings.TrimSpace(rowText), "-")

	if m := concatenatedSkusRegexp.FindStringSubmatch(rowText); m != nil && negativeTail {
		if first, target, split := splitConcatenatedSkus(m[1]); split {
			return []string{target, first}, true
		}
	}

	if negativeTail {
		if skus := skuTokensOf(rowText); len(skus) >= 2 {
			return lastFirst(skus), true
		}
	}

	return nil, false
}

// lastFirst orders row SKUs by target preference: last printed SKU first.
func lastFirst(skus []string) []string {
	out := make([]string, 0, len(skus))
	for i := len(skus) - 1; i >= 0; i-- {
		out = append(out, skus[i])
	}
	return out
}

// skuTokensOf lists the bare 4-7 digit tokens of a row, in order.
func skuTokensOf(rowText string) []string {
	var skus []string
	for _, field := range strings.Fields(rowText) {
		if skuTokenRegexp.MatchString(field) {
			skus = append(skus, field)
		}
	}
	return skus
}

/*
splitConcatenatedSkus splits a 10-14 digit token into (first, last) SKUs.
An even-length token splits in half when both halves are valid SKU lengths;
otherwise the longest valid suffix wins, since the target (last) SKU is the
one the discount must find.
*/
func splitConcatenatedSkus(token string) (first string, last string, ok bool) {
	length := len(token)
	if length%2 == 0 {
		half := length / 2
		if half >= 4 && half <= 7 {
			return token[:half], token[half:], true
		}
	}
	for suffixLen := 7; suffixLen >= 4; suffixLen-- {
		prefixLen := length - suffixLen
		if prefixLen >= 4 && prefixLen <= 7 {
			return token[:prefixLen], token[prefixLen:], true
		}
	}
	return "", "", false
}
