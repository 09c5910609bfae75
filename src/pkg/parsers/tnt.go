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
	// weightLineRegexp matches the per-unit line printed above the FP amount:
	// "0.92 lb @ $8.39/lb".
	weightLineRegexp = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(lb|kg|ea)\s*@\s*\$?(\d+(?:\.\d+)?)\s*/\s*(lb|kg|ea)\b`)
	// tntMembershipRegexp matches the masked membership row "***1234567".
	tntMembershipRegexp = regexp.MustCompile(`^\*{3}(\d{5,})$`)
)

/*
tntParser reads T&T Supermarket receipts (Canada and US variants; the chain
config selects row epsilon, skew correction, fee-row patterns, amount
suffixes and section headers).

Layout quirks this parser owns:
  - weighed items print a per-unit line ("0.92 lb @ $8.39/lb") above the
    final-price line ("FP $7.72"); both merge into one item;
  - amounts carry suffix markers (FP final price, P points-eligible, W
    weighed) that are stripped from names;
  - section banners (GROCERY, PRODUCE, DELI) separate the items region and
    are suppressed;
  - masked membership rows and zero-value Points rows are suppressed from
    items, but the membership number is kept;
  - bottle deposits and environmental fees print as item rows and stay
    items; the sum checker separates them in grocery mode.
*/
type tntParser struct{}

func (tntParser) Family() storecfg.LayoutFamily {
	return storecfg.FamilyTNT
}

func (tntParser) Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	markers, e := cfg.RegionMarkers()
	if e != nil {
		return nil, e
	}

	rows := geometry.BuildRows(blocks, cfg.RowOptions())
	regions := geometry.SplitRegions(rows, markers)
	tracker := geometry.NewAmountUsageTracker()

	parsed = newReceipt(cfg, merchantName)
	parsed.Currency = currencyForChain(cfg.ChainID)

	column := geometry.DetectAmountColumn(regions.Items, cfg.ColumnFallback())

	extractHeaderFacts(parsed, regions.Header)
	parseTntItems(parsed, regions.Items, tracker, cfg, column)
	extractTotals(parsed, regions.Totals, tracker)
	extractPaymentFacts(parsed, regions.Payment)

	finalizeReceipt(parsed)
	return parsed, nil
}

func currencyForChain(chainID string) string {
	if strings.HasSuffix(chainID, "_us") {
		return "USD"
	}
	return "CAD"
}

// pendingWeight carries a parsed per-unit line until its FP amount arrives.
type pendingWeight struct {
	quantity  float64
	unit      string
	unitPrice float64
}

func parseTntItems(parsed *ParsedReceipt, items []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker, cfg *storecfg.StoreConfig, column geometry.AmountColumn) {
	var pendingName string
	var pendingRaw []string
	var weight *pendingWeight

	resetPending := func() {
		pendingName = ""
		pendingRaw = nil
		weight = nil
	}

	for _, row := range items {
		rowText := strings.TrimSpace(row.Text)
		if rowText == "" {
			continue
		}
		normalized := geometry.NormalizeRowText(rowText)

		if cfg.IsSectionHeader(normalized) {
			continue
		}

		if m := tntMembershipRegexp.FindStringSubmatch(rowText); m != nil {
			if parsed.MembershipID == "" {
				parsed.MembershipID = m[1]
			}
			continue
		}

		amount, hasAmount := lineTotalAmount(row, column)

		// Zero-value Points rows are loyalty noise, not purchases.
		if strings.Contains(normalized, "POINTS") && (!hasAmount || amount.Amount == 0) {
			continue
		}

		if m := weightLineRegexp.FindStringSubmatch(rowText); m != nil {
			quantity, qtyOk := money.ParseAmount(m[1])
			unitPrice, priceOk := money.ParseAmount(m[3])
			if qtyOk && priceOk {
				weight = &pendingWeight{quantity: quantity, unit: strings.ToLower(m[2]), unitPrice: unitPrice}
			}
			// A weight line can carry the FP amount on the same row.
			if !hasAmount {
				pendingRaw = append(pendingRaw, rowText)
				continue
			}
		}

		if !hasAmount {
			// Name row (possibly multi-line).
			pendingName = strings.TrimSpace(pendingName + " " + rowText)
			pendingRaw = append(pendingRaw, rowText)
			continue
		}

		if !tracker.Consume(amount.BlockID, "line_total") {
			continue
		}

		name := pendingName
		if extra := nameTokensBeside(row, amount, cfg); extra != "" {
			name = strings.TrimSpace(name + " " + extra)
		}

		item := ExtractedItem{
			ProductName: name,
			LineTotal:   amount.Amount,
			RawText:     strings.TrimSpace(strings.Join(append(pendingRaw, rowText), " ")),
			Confidence:  1.0,
		}
		if weight != nil {
			item.Quantity = &weight.quantity
			item.Unit = weight.unit
			item.UnitPrice = &weight.unitPrice
		}
		if strings.TrimSpace(item.ProductName) == "" {
			parsed.ErrorLog = append(parsed.ErrorLog, "amount row without a product name: "+rowText)
			item.ProductName = "Item"
		}

		parsed.Items = append(parsed.Items, item)
		resetPending()
	}
}

/*
nameTokensBeside collects the non-amount tokens of an amount row, dropping
the configured amount suffixes (FP, P, W) and currency decorations. Whatever
survives belongs to the product name ("EGG TOFU 2.69 FP" single-row items).
*/
func nameTokensBeside(row geometry.PhysicalRow, amount geometry.TextBlock, cfg *storecfg.StoreConfig) string {
	var tokens []string
	for _, block := range row.Blocks {
		if block.IsAmount || block.BlockID == amount.BlockID {
			continue
		}
		text := strings.Trim(strings.TrimSpace(block.Text), "$")
		if text == "" || isAmountSuffix(text, cfg) || weightLineRegexp.MatchString(block.Text) {
			continue
		}
		if _, looksMoney := money.ParseAmount(text); looksMoney {
			continue
		}
		tokens = append(tokens, block.Text)
	}
	return strings.Join(tokens, " ")
}

func isAmountSuffix(token string, cfg *storecfg.StoreConfig) bool {
	upper := strings.ToUpper(token)
	for _, suffix := range cfg.Items.Layout.AmountSuffixes {
		if upper == strings.ToUpper(suffix) {
			return true
		}
	}
	return false
}
