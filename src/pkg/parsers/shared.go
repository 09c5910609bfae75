package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/storecfg"
)

var (
	skuTokenRegexp     = regexp.MustCompile(`^\d{4,7}$`)
	membershipRegexp   = regexp.MustCompile(`(?:\bMEMBER(?:SHIP)?\b\s*#?\s*|\*{3})(\d{5,})`)
	cardLast4Regexp    = regexp.MustCompile(`(?:X{4,}|\*{4,})\s*(\d{4})\b`)
	purchaseDateRegexp = regexp.MustCompile(`\b(\d{4}[-/]\d{2}[-/]\d{2}|\d{2}/\d{2}/\d{2,4})\b`)
	purchaseTimeRegexp = regexp.MustCompile(`\b(\d{1,2}:\d{2}(?::\d{2})?)\b`)
	itemsSoldRegexp    = regexp.MustCompile(`ITEMS SOLD|NUMBER OF ITEMS`)
)

// newReceipt seeds a ParsedReceipt with the chain identity; parsers fill the
// rest and flip Success once at least one item or total was found.
func newReceipt(cfg *storecfg.StoreConfig, merchantName string) *ParsedReceipt {
	merchant := strings.TrimSpace(merchantName)
	if merchant == "" {
		merchant = cfg.Identification.PrimaryName
	}
	return &ParsedReceipt{
		MerchantName: merchant,
		StoreChainID: cfg.ChainID,
		Items:        []ExtractedItem{},
		ErrorLog:     []string{},
	}
}

// finalizeReceipt stamps the validation block and the success flag. A parse
// with no items and no total is degenerate; the error log says so.
func finalizeReceipt(parsed *ParsedReceipt) {
	parsed.Validation.ItemCount = len(parsed.Items)
	parsed.Validation.HasSubtotal = parsed.Subtotal != nil
	parsed.Validation.HasTotal = parsed.Total != nil

	parsed.Success = len(parsed.Items) > 0
	if !parsed.Success && len(parsed.ErrorLog) == 0 {
		parsed.ErrorLog = append(parsed.ErrorLog, "no item lines identified in the items region")
	}
}

/*
skuIndex keeps the SKU -> item position mapping a parser builds while
emitting items, so a later discount row can find its target. Lookup is exact
first, then by last-3-digit suffix (OCR often mangles leading digits).
*/
type skuIndex struct {
	bySku map[string]int
}

func newSkuIndex() *skuIndex {
	return &skuIndex{bySku: make(map[string]int)}
}

func (idx *skuIndex) record(sku string, itemPosition int) {
	if sku != "" {
		idx.bySku[sku] = itemPosition
	}
}

func (idx *skuIndex) find(targetSku string) (position int, found bool) {
	if position, found = idx.bySku[targetSku]; found {
		return position, true
	}
	if len(targetSku) < 3 {
		return 0, false
	}
	suffix := targetSku[len(targetSku)-3:]
	for sku, pos := range idx.bySku {
		if strings.HasSuffix(sku, suffix) {
			return pos, true
		}
	}
	return 0, false
}

/*
attachDiscount merges a negative discount amount into the earlier item that
carries targetSku. The pre-discount price is preserved as UnitPrice and the
item is flagged OnSale. Returns false when no target item exists, in which
case the caller logs the orphan discount.
*/
func attachDiscount(parsed *ParsedReceipt, idx *skuIndex, targetSku string, discountAmount float64) bool {
	position, found := idx.find(targetSku)
	if !found {
		return false
	}

	item := &parsed.Items[position]
	if item.UnitPrice == nil {
		preDiscount := item.LineTotal
		item.UnitPrice = &preDiscount
	}
	item.LineTotal = money.Round2(item.LineTotal - absAmount(discountAmount))
	item.OnSale = true

	tl.Log(
		tl.Info1, palette.Cyan, "%s '%s' to item '%s' (now %s)",
		"Attached discount", fmt.Sprintf("%.2f", -absAmount(discountAmount)), item.ProductName,
		fmt.Sprintf("%.2f", item.LineTotal),
	)
	return true
}

// attachDiscountToAny tries each candidate target SKU in preference order
// and attaches the discount to the first one that matches an item.
func attachDiscountToAny(parsed *ParsedReceipt, idx *skuIndex, targetSkus []string, discountAmount float64) bool {
	for _, targetSku := range targetSkus {
		if attachDiscount(parsed, idx, targetSku, discountAmount) {
			return true
		}
	}
	return false
}

func absAmount(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// fillEmptyName replaces an empty product name with "Item {sku}" when the
// SKU survived OCR but the name did not.
func fillEmptyName(item *ExtractedItem) {
	if strings.TrimSpace(item.ProductName) == "" && item.Sku != "" {
		item.ProductName = fmt.Sprintf("Item %s", item.Sku)
	}
}

/*
stripNoiseTokens drops short non-Latin runs (Cyrillic, Tamil) that thermal
print artifacts produce on physical Costco receipts, and collapses the
remaining whitespace.
*/
func stripNoiseTokens(name string) string {
	fields := strings.Fields(name)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if isNoiseToken(field) {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}

func isNoiseToken(token string) bool {
	runes := []rune(token)
	if len(runes) > 3 {
		return false
	}
	for _, r := range runes {
		if unicode.In(r, unicode.Cyrillic, unicode.Tamil) {
			return true
		}
	}
	return false
}

// rightmostAmount returns the rightmost amount block of a row, if any.
func rightmostAmount(row geometry.PhysicalRow) (block geometry.TextBlock, found bool) {
	for i := len(row.Blocks) - 1; i >= 0; i-- {
		if row.Blocks[i].IsAmount {
			return row.Blocks[i], true
		}
	}
	return geometry.TextBlock{}, false
}

// amountBlocks lists every amount block of a row, left to right.
func amountBlocks(row geometry.PhysicalRow) []geometry.TextBlock {
	var out []geometry.TextBlock
	for _, block := range row.Blocks {
		if block.IsAmount {
			out = append(out, block)
		}
	}
	return out
}

/*
lineTotalAmount picks the line-total block of an item row. One amount is
unambiguous. With several — a weighed row can carry its unit price as a
separate block, and instant savings sometimes print right of the price
column — the rightmost amount inside the detected column wins; when the
column holds none of them, the rightmost overall stands in.
*/
func lineTotalAmount(row geometry.PhysicalRow, column geometry.AmountColumn) (block geometry.TextBlock, found bool) {
	amounts := amountBlocks(row)
	if len(amounts) == 0 {
		return geometry.TextBlock{}, false
	}
	if len(amounts) > 1 {
		for i := len(amounts) - 1; i >= 0; i-- {
			if column.Contains(amounts[i].CenterX) {
				return amounts[i], true
			}
		}
	}
	return amounts[len(amounts)-1], true
}

/*
extractHeaderFacts pulls membership, purchase date/time and a best-effort
address out of the header region. The address heuristic keeps the first
header row carrying a street number, which covers the chains this pipeline
ships with.
*/
func extractHeaderFacts(parsed *ParsedReceipt, header []geometry.PhysicalRow) {
	streetRegexp := regexp.MustCompile(`^\d{1,5}\s+\S+`)

	for _, row := range header {
		text := strings.TrimSpace(row.Text)

		if parsed.MembershipID == "" {
			if m := membershipRegexp.FindStringSubmatch(strings.ToUpper(text)); m != nil {
				parsed.MembershipID = m[1]
			}
		}
		if parsed.PurchaseDate == "" {
			if m := purchaseDateRegexp.FindStringSubmatch(text); m != nil {
				parsed.PurchaseDate = m[1]
			}
		}
		if parsed.PurchaseTime == "" {
			if m := purchaseTimeRegexp.FindStringSubmatch(text); m != nil {
				parsed.PurchaseTime = m[1]
			}
		}
		if parsed.Address == "" && streetRegexp.MatchString(text) && !row.Blocks[0].IsAmount {
			parsed.Address = text
		}
	}
}

/*
extractPaymentFacts pulls the payment method and masked card digits out of
the payment region. Date/time often print at the bottom of physical
receipts, so the header regexes run here too as a fallback.
*/
func extractPaymentFacts(parsed *ParsedReceipt, payment []geometry.PhysicalRow) {
	for _, row := range payment {
		text := strings.TrimSpace(row.Text)
		upper := strings.ToUpper(text)

		if parsed.PaymentMethod == "" {
			switch {
			case strings.Contains(upper, "VISA"):
				parsed.PaymentMethod = "visa"
			case strings.Contains(upper, "MASTERCARD"), strings.Contains(upper, "MC "):
				parsed.PaymentMethod = "mastercard"
			case strings.Contains(upper, "AMEX"), strings.Contains(upper, "AMERICAN EXPRESS"):
				parsed.PaymentMethod = "amex"
			case strings.Contains(upper, "DEBIT"), strings.Contains(upper, "INTERAC"):
				parsed.PaymentMethod = "debit"
			case strings.Contains(upper, "CASH"):
				parsed.PaymentMethod = "cash"
			}
		}
		if parsed.CardLast4 == "" {
			if m := cardLast4Regexp.FindStringSubmatch(upper); m != nil {
				parsed.CardLast4 = m[1]
			}
		}
		if parsed.PurchaseDate == "" {
			if m := purchaseDateRegexp.FindStringSubmatch(text); m != nil {
				parsed.PurchaseDate = m[1]
			}
		}
		if parsed.PurchaseTime == "" {
			if m := purchaseTimeRegexp.FindStringSubmatch(text); m != nil {
				parsed.PurchaseTime = m[1]
			}
		}
	}
}

/*
extractTotals walks the totals region and fills Subtotal, Taxes and Total,
consuming each used amount through the tracker so no printed number can be
booked twice. Label matching is on normalized row text; "ITEMS SOLD" counter
rows never contribute a total.
*/
func extractTotals(parsed *ParsedReceipt, totals []geometry.PhysicalRow, tracker *geometry.AmountUsageTracker) {
	for _, row := range totals {
		normalized := geometry.NormalizeRowText(row.Text)
		amount, hasAmount := rightmostAmount(row)
		if !hasAmount {
			continue
		}

		switch {
		case strings.Contains(normalized, "SUBTOTAL") || strings.Contains(normalized, "SUB TOTAL"):
			if parsed.Subtotal == nil && tracker.Consume(amount.BlockID, "subtotal") {
				value := amount.Amount
				parsed.Subtotal = &value
			}

		case itemsSoldRegexp.MatchString(normalized):
			// Item counter, not money.

		case strings.Contains(normalized, "TAX") || strings.Contains(normalized, "HST") ||
			strings.Contains(normalized, "GST") || strings.Contains(normalized, "PST"):
			if tracker.Consume(amount.BlockID, "tax") {
				parsed.Taxes = append(parsed.Taxes, geometry.LabeledAmount{
					Label:  taxLabel(normalized),
					Amount: amount.Amount,
				})
			}

		case strings.Contains(normalized, "TOTAL") || strings.Contains(normalized, "TOTA"):
			if parsed.Total == nil && tracker.Consume(amount.BlockID, "total") {
				value := amount.Amount
				parsed.Total = &value
			}
		}
	}
}

// taxLabel normalizes a totals-row label to its tax component name.
func taxLabel(normalized string) string {
	switch {
	case strings.Contains(normalized, "TOTAL TAX"):
		return "TOTAL TAX"
	case strings.Contains(normalized, "HST"):
		return "HST"
	case strings.Contains(normalized, "GST"):
		return "GST"
	case strings.Contains(normalized, "PST"):
		return "PST"
	default:
		return "TAX"
	}
}

/*
reconcileTaxComponents applies the TOTAL TAX reconciliation: when the sum of
the reported components disagrees with TOTAL TAX beyond the math tolerance,
TOTAL TAX is authoritative and the whole residual goes to the largest
component (cent granularity). The TOTAL TAX row itself is dropped from the
list afterwards so it cannot be double counted.
*/
func reconcileTaxComponents(parsed *ParsedReceipt, tolerance float64) {
	totalTaxIdx := -1
	componentSum := 0.0
	largestIdx := -1
	largest := 0.0

	for i, tax := range parsed.Taxes {
		if tax.Label == "TOTAL TAX" {
			totalTaxIdx = i
			continue
		}
		componentSum += tax.Amount
		if tax.Amount > largest {
			largest = tax.Amount
			largestIdx = i
		}
	}
	if totalTaxIdx < 0 {
		return
	}

	totalTax := parsed.Taxes[totalTaxIdx].Amount
	if largestIdx >= 0 && !money.WithinTolerance(componentSum, totalTax, tolerance) {
		residual := money.Round2(totalTax - componentSum)
		parsed.Taxes[largestIdx].Amount = money.Round2(parsed.Taxes[largestIdx].Amount + residual)
		parsed.Validation.Warnings = append(
			parsed.Validation.Warnings,
			fmt.Sprintf("tax components reconciled against TOTAL TAX: %s adjusted by %.2f", parsed.Taxes[largestIdx].Label, residual),
		)
	}

	parsed.Taxes = append(parsed.Taxes[:totalTaxIdx], parsed.Taxes[totalTaxIdx+1:]...)
}
