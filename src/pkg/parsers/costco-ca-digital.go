package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/storecfg"
)

// tpdDiscountRegexp matches Costco Canada digital discount rows:
// "369985 TPD/369985" — an optional row SKU, then TPD/ and the target SKU.
var tpdDiscountRegexp = regexp.MustCompile(`(?:^|\s)(\d{4,7})?\s*TPD/\s*(\d{4,7})`)

/*
costcoCADigitalParser reads Costco Canada digital receipts: items carry a
left SKU (4-7 digits) and a right amount, discount rows use the "TPD/" form,
and the totals region reports HST/GST components plus a TOTAL TAX line that
is reconciled when the components disagree.
*/
type costcoCADigitalParser struct{}

func (costcoCADigitalParser) Family() storecfg.LayoutFamily {
	return storecfg.FamilyCostcoCADigital
}

func (costcoCADigitalParser) Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	markers, e := cfg.RegionMarkers()
	if e != nil {
		return nil, e
	}

	rows := geometry.BuildRows(blocks, cfg.RowOptions())
	regions := geometry.SplitRegions(rows, markers)
	tracker := geometry.NewAmountUsageTracker()

	parsed = newReceipt(cfg, merchantName)
	parsed.Currency = "CAD"

	extractHeaderFacts(parsed, regions.Header)
	parseCostcoDigitalItems(parsed, regions.Items, tracker, costcoDigitalDialect{
		discountTarget: caDiscountTarget,
		strictAmounts:  false,
	})
	extractTotals(parsed, regions.Totals, tracker)
	reconcileTaxComponents(parsed, cfg.MathTolerance())
	extractPaymentFacts(parsed, regions.Payment)

	finalizeReceipt(parsed)
	return parsed, nil
}

// caDiscountTarget recognizes the "TPD/targetSKU" discount form.
func caDiscountTarget(rowText string) (targetSkus []string, isDiscount bool) {
	if m := tpdDiscountRegexp.FindStringSubmatch(rowText); m != nil {
		return []string{m[2]}, true
	}
	return nil, false
}

/*
costcoDigitalDialect captures what differs between the CA and US digital
layouts: how a discount row is recognized (the hook returns candidate target
SKUs in preference order) and whether amounts must be in strict XX.XX form
(US receipts need that so SKU fragments cannot pass as dollars).
*/
type costcoDigitalDialect struct {
	discountTarget func(rowText string) (targetSkus []string, isDiscount bool)
	strictAmounts  bool
}

/*
parseCostcoDigitalItems walks the items region of a digital Costco receipt.

Row kinds, in match order:
 1. Discount rows (dialect-specific marker) attach to the prior item that
    carries the target SKU and flip it on sale.
 2. Item rows: a 4-7 digit SKU plus a right amount; the blocks between them
    form the product name.
 3. Continuation rows (no SKU, no amount) extend the name of the previous
    item — digital receipts wrap long product names onto a second row.
*/
func parseCostcoDigitalItems(parsed *ParsedReceipt, items []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker, dialect costcoDigitalDialect) {
	idx := newSkuIndex()

	for _, row := range items {
		rowText := strings.TrimSpace(row.Text)
		if rowText == "" {
			continue
		}

		if targetSkus, isDiscount := dialect.discountTarget(rowText); isDiscount {
			amount, hasAmount := rightmostAmount(row)
			if !hasAmount || !isUsableAmount(amount, dialect) {
				parsed.ErrorLog = append(parsed.ErrorLog, fmt.Sprintf("discount row without usable amount: %q", rowText))
				continue
			}
			if !tracker.Consume(amount.BlockID, "discount") {
				continue
			}
			if !attachDiscountToAny(parsed, idx, targetSkus, amount.Amount) {
				parsed.ErrorLog = append(parsed.ErrorLog, fmt.Sprintf("discount row with no matching item SKU (%s): %q", strings.Join(targetSkus, ", "), rowText))
			}
			continue
		}

		sku, nameBlocks, amount, hasAmount := splitDigitalItemRow(row, dialect)
		if hasAmount {
			if !tracker.Consume(amount.BlockID, "line_total") {
				continue
			}
			item := ExtractedItem{
				ProductName: strings.Join(nameBlocks, " "),
				LineTotal:   amount.Amount,
				Sku:         sku,
				RawText:     rowText,
				Confidence:  1.0,
			}
			fillEmptyName(&item)
			parsed.Items = append(parsed.Items, item)
			idx.record(sku, len(parsed.Items)-1)
			continue
		}

		// No amount and no SKU: name continuation for the previous item.
		if sku == "" && len(parsed.Items) > 0 {
			previous := &parsed.Items[len(parsed.Items)-1]
			previous.ProductName = strings.TrimSpace(previous.ProductName + " " + rowText)
			previous.RawText = previous.RawText + " " + rowText
		}
	}
}

/*
splitDigitalItemRow decomposes one items-region row into SKU, name tokens
and the trailing amount. Single-block rows carrying "SKU NAME AMOUNT" in one
token are decomposed with the composite regex.
*/
func splitDigitalItemRow(row geometry.PhysicalRow, dialect costcoDigitalDialect) (sku string, nameTokens []string, amount geometry.TextBlock, hasAmount bool) {
	if len(row.Blocks) == 1 && !row.Blocks[0].IsAmount {
		return splitCompositeItemToken(row.Blocks[0])
	}

	for _, block := range row.Blocks {
		if block.IsAmount && isUsableAmount(block, dialect) {
			// Rightmost usable amount wins; earlier ones stay name material
			// only if they fail the dialect's amount form.
			amount = block
			hasAmount = true
			continue
		}
		if sku == "" && skuTokenRegexp.MatchString(block.Text) {
			sku = block.Text
			continue
		}
		nameTokens = append(nameTokens, block.Text)
	}
	return sku, nameTokens, amount, hasAmount
}

// compositeItemRegexp decomposes a single OCR token of the form
// "1628761 KS WATER 4.99" (with an optional trailing tax letter).
var compositeItemRegexp = regexp.MustCompile(`^(\d{4,7})\s+(.+?)\s+(\d{1,6}\.\d{2})(-?)\s*[A-Z]?$`)

func splitCompositeItemToken(block geometry.TextBlock) (sku string, nameTokens []string, amount geometry.TextBlock, hasAmount bool) {
	m := compositeItemRegexp.FindStringSubmatch(strings.TrimSpace(block.Text))
	if m == nil {
		return "", []string{block.Text}, geometry.TextBlock{}, false
	}

	value := 0.0
	if parsed, ok := parseSignedAmount(m[3], m[4]); ok {
		value = parsed
	} else {
		return "", []string{block.Text}, geometry.TextBlock{}, false
	}

	amount = block
	amount.IsAmount = true
	amount.Amount = value
	return m[1], strings.Fields(m[2]), amount, true
}

func parseSignedAmount(digits string, minus string) (value float64, ok bool) {
	var parsed float64
	if _, err := fmt.Sscanf(digits, "%f", &parsed); err != nil {
		return 0, false
	}
	if minus == "-" {
		parsed = -parsed
	}
	return parsed, true
}

// isUsableAmount applies the dialect's amount form: strict dialects reject
// values whose token is not a well-formed XX.XX amount.
func isUsableAmount(block geometry.TextBlock, dialect costcoDigitalDialect) bool {
	if !dialect.strictAmounts {
		return true
	}
	return money.IsStrictAmount(block.Text)
}
