package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/storecfg"
)

// slashDiscountRegexp matches the physical-receipt discount marker: a bare
// "/targetSKU" on the left edge of the row.
var slashDiscountRegexp = regexp.MustCompile(`^/\s*(\d{4,7})\b`)

// taxFlagRegexp matches the left tax-flag column ("E" for exempt, "A" for
// taxed) printed before the SKU.
var taxFlagRegexp = regexp.MustCompile(`^[EA]$`)

/*
costcoUSPhysicalParser reads photographed Costco US warehouse receipts:
four columns (tax flag | SKU | name | price), "/targetSKU" discount rows
with trailing-minus amounts, and OCR noise from thermal print (short
non-Latin runs inside product names, two item lines collapsed into one
physical row).
*/
type costcoUSPhysicalParser struct{}

func (costcoUSPhysicalParser) Family() storecfg.LayoutFamily {
	return storecfg.FamilyCostcoUSPhysical
}

func (costcoUSPhysicalParser) Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	markers, e := cfg.RegionMarkers()
	if e != nil {
		return nil, e
	}

	rowOptions := cfg.RowOptions()
	rows := geometry.BuildRows(blocks, rowOptions)
	regions := geometry.SplitRegions(rows, markers)
	tracker := geometry.NewAmountUsageTracker()

	parsed = newReceipt(cfg, merchantName)
	parsed.Currency = "USD"

	epsilon := rowOptions.Epsilon
	if epsilon <= 0 {
		epsilon = geometry.DefaultRowEpsilon
	}

	extractHeaderFacts(parsed, regions.Header)
	parsePhysicalItems(parsed, regions.Items, tracker, epsilon)
	extractTotals(parsed, regions.Totals, tracker)
	extractPaymentFacts(parsed, regions.Payment)

	finalizeReceipt(parsed)
	return parsed, nil
}

/*
parsePhysicalItems walks the items region of a physical receipt.

A row with two or more amounts is two collapsed item lines: each amount is
matched to the name/SKU blocks whose y center lies within the line epsilon
of that amount and to its left, and every group is emitted as its own item.
*/
func parsePhysicalItems(parsed *ParsedReceipt, items []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker, epsilon float64) {
	idx := newSkuIndex()

	for _, row := range items {
		rowText := strings.TrimSpace(row.Text)
		if rowText == "" {
			continue
		}

		if m := slashDiscountRegexp.FindStringSubmatch(rowText); m != nil {
			amount, hasAmount := rightmostAmount(row)
			if !hasAmount {
				parsed.ErrorLog = append(parsed.ErrorLog, fmt.Sprintf("discount row without amount: %q", rowText))
				continue
			}
			if !tracker.Consume(amount.BlockID, "discount") {
				continue
			}
			if !attachDiscount(parsed, idx, m[1], amount.Amount) {
				parsed.ErrorLog = append(parsed.ErrorLog, fmt.Sprintf("discount row with no matching item SKU '%s': %q", m[1], rowText))
			}
			continue
		}

		amounts := amountBlocks(row)
		switch len(amounts) {
		case 0:
			// Continuation of the previous item's name.
			if len(parsed.Items) > 0 {
				previous := &parsed.Items[len(parsed.Items)-1]
				continuation := stripNoiseTokens(rowText)
				if continuation != "" {
					previous.ProductName = strings.TrimSpace(previous.ProductName + " " + continuation)
					previous.RawText = previous.RawText + " " + rowText
				}
			}
		case 1:
			emitPhysicalItem(parsed, idx, tracker, row.Blocks, amounts[0], rowText)
		default:
			// Collapsed row: split the non-amount blocks among the amounts by
			// y proximity.
			for _, amount := range amounts {
				var group []geometry.TextBlock
				for _, block := range row.Blocks {
					if block.IsAmount {
						continue
					}
					if absAmount(block.CenterY-amount.CenterY) <= epsilon && block.CenterX < amount.CenterX {
						group = append(group, block)
					}
				}
				emitPhysicalItem(parsed, idx, tracker, group, amount, rowText)
			}
		}
	}
}

/*
emitPhysicalItem builds one item from the name-side blocks and its amount.
The tax flag column is dropped, the SKU is lifted out of the name, and
non-Latin noise tokens are stripped from what remains.
*/
func emitPhysicalItem(parsed *ParsedReceipt, idx *skuIndex, tracker *geometry.AmountUsageTracker, nameSide []geometry.TextBlock, amount geometry.TextBlock, rawText string) {
	if !tracker.Consume(amount.BlockID, "line_total") {
		return
	}

	sku := ""
	var nameTokens []string
	for _, block := range nameSide {
		if block.IsAmount || block.BlockID == amount.BlockID {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if taxFlagRegexp.MatchString(text) && len(nameTokens) == 0 && sku == "" {
			continue
		}
		if sku == "" && skuTokenRegexp.MatchString(text) {
			sku = text
			continue
		}
		nameTokens = append(nameTokens, text)
	}

	item := ExtractedItem{
		ProductName: stripNoiseTokens(strings.Join(nameTokens, " ")),
		LineTotal:   amount.Amount,
		Sku:         sku,
		RawText:     rawText,
		Confidence:  1.0,
	}
	fillEmptyName(&item)

	parsed.Items = append(parsed.Items, item)
	idx.record(sku, len(parsed.Items)-1)
}
