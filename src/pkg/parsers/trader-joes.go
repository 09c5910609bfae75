package parsers

import (
	"regexp"
	"strings"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/storecfg"
)

var (
	// quantityPrefixRegexp matches the embedded-quantity form "2@ $3.99 BANANAS".
	quantityPrefixRegexp = regexp.MustCompile(`^(\d+)\s*@\s*\$?(\d+(?:\.\d+)?)\s*(.*)$`)
	// taxablePrefixRegexp matches the taxable marker "T " ahead of a name.
	taxablePrefixRegexp = regexp.MustCompile(`^T\s+`)
	// balanceToPayRegexp matches the interim balance line that must never be
	// preferred over "TOTAL PURCHASE".
	balanceToPayRegexp = regexp.MustCompile(`(?i)\bBALANCE\s+TO\s+PAY\b`)
	// tjTaxRegexp matches "Tax: $1.23 @ 10.2%".
	tjTaxRegexp = regexp.MustCompile(`(?i)\bTAX:?\s*\$?(\d+(?:\.\d{2})?)`)
)

/*
traderJoesParser reads Trader Joe's receipts: no SKUs, "NAME ... $X.XX"
items with a "T " taxable prefix, embedded-quantity rows ("2@ $3.99
BANANAS"), and a grand total printed as "TOTAL PURCHASE". "Balance to pay"
is an interim amount; it is accepted as the total only when no TOTAL
PURCHASE line exists anywhere, and then the validation block caps the
verdict at needs_review.
*/
type traderJoesParser struct{}

func (traderJoesParser) Family() storecfg.LayoutFamily {
	return storecfg.FamilyTraderJoes
}

func (traderJoesParser) Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	markers, e := cfg.RegionMarkers()
	if e != nil {
		return nil, e
	}

	rows := geometry.BuildRows(blocks, cfg.RowOptions())
	regions := geometry.SplitRegions(rows, markers)
	tracker := geometry.NewAmountUsageTracker()

	parsed = newReceipt(cfg, merchantName)
	parsed.Currency = "USD"

	column := geometry.DetectAmountColumn(regions.Items, cfg.ColumnFallback())

	extractHeaderFacts(parsed, regions.Header)
	parseTraderJoesItems(parsed, regions.Items, tracker, column)
	extractTotals(parsed, regions.Totals, tracker)
	extractTraderJoesTax(parsed, regions.Totals, tracker)
	extractPaymentFacts(parsed, regions.Payment)

	// Last resort: no TOTAL PURCHASE anywhere. The interim balance line is
	// better than nothing, but it cannot earn a pass.
	if parsed.Total == nil {
		adoptBalanceToPay(parsed, rows, tracker)
	}

	finalizeReceipt(parsed)
	return parsed, nil
}

func parseTraderJoesItems(parsed *ParsedReceipt, items []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker, column geometry.AmountColumn) {
	var pendingName string
	var pendingRaw []string
	var pendingQty *pendingWeight

	resetPending := func() {
		pendingName = ""
		pendingRaw = nil
		pendingQty = nil
	}

	for _, row := range items {
		rowText := strings.TrimSpace(row.Text)
		if rowText == "" {
			continue
		}
		if balanceToPayRegexp.MatchString(rowText) {
			continue
		}

		amount, hasAmount := lineTotalAmount(row, column)

		// The "T " prefix only marks taxability; it never belongs to the name.
		nameText := taxablePrefixRegexp.ReplaceAllString(rowText, "")

		if m := quantityPrefixRegexp.FindStringSubmatch(nameText); m != nil {
			quantity, qtyOk := money.ParseAmount(m[1])
			unitPrice, priceOk := money.ParseAmount(m[2])
			if qtyOk && priceOk {
				pendingQty = &pendingWeight{quantity: quantity, unitPrice: unitPrice}
			}
			nameText = strings.TrimSpace(m[3])
		}

		if !hasAmount {
			pendingName = strings.TrimSpace(pendingName + " " + nameText)
			pendingRaw = append(pendingRaw, rowText)
			continue
		}

		if !tracker.Consume(amount.BlockID, "line_total") {
			continue
		}

		name := strings.TrimSpace(pendingName + " " + trimAmountTail(nameText, amount))
		item := ExtractedItem{
			ProductName: name,
			LineTotal:   amount.Amount,
			RawText:     strings.TrimSpace(strings.Join(append(pendingRaw, rowText), " ")),
			Confidence:  1.0,
		}
		if pendingQty != nil {
			item.Quantity = &pendingQty.quantity
			item.UnitPrice = &pendingQty.unitPrice
		}
		if item.ProductName == "" {
			parsed.ErrorLog = append(parsed.ErrorLog, "amount row without a product name: "+rowText)
			item.ProductName = "Item"
		}

		parsed.Items = append(parsed.Items, item)
		resetPending()
	}
}

// trimAmountTail removes the amount token (and a stray "$") from the name
// side of a single-row item.
func trimAmountTail(nameText string, amount geometry.TextBlock) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(nameText), strings.TrimSpace(amount.Text))
	return strings.Trim(strings.TrimSpace(trimmed), "$")
}

// extractTraderJoesTax picks the "Tax: $X.XX @ 10.2%" figure when the
// generic totals walk found no tax line (the rate suffix confuses the
// rightmost-amount rule, so the labeled figure is matched by regex).
func extractTraderJoesTax(parsed *ParsedReceipt, totals []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker) {
	if len(parsed.Taxes) > 0 {
		return
	}
	for _, row := range totals {
		m := tjTaxRegexp.FindStringSubmatch(row.Text)
		if m == nil {
			continue
		}
		value, ok := money.ParseAmount(m[1])
		if !ok {
			continue
		}
		parsed.Taxes = append(parsed.Taxes, geometry.LabeledAmount{Label: "TAX", Amount: value})
		return
	}
}

// adoptBalanceToPay scans the whole receipt for the interim balance line and
// uses it as the total, capped at needs_review downstream.
func adoptBalanceToPay(parsed *ParsedReceipt, rows []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker) {
	for _, row := range rows {
		if !balanceToPayRegexp.MatchString(row.Text) {
			continue
		}
		amount, hasAmount := rightmostAmount(row)
		if !hasAmount || !tracker.Consume(amount.BlockID, "total") {
			continue
		}
		value := amount.Amount
		parsed.Total = &value
		parsed.Validation.TotalFromInterim = true
		parsed.Validation.Warnings = append(parsed.Validation.Warnings, "total taken from interim 'Balance to pay' line")
		return
	}
}
