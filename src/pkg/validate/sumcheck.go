package validate

import (
	"fmt"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/storecfg"
)

/*
CheckSums runs the end-to-end consistency check over a candidate receipt:
per-item math, then the totals arithmetic in standard or grocery mode, then
package-promotion detection over the raw text.

The verdict drives the orchestrator's ladder: fail triggers the second-OCR
branch, needs_review terminates the run for manual review, pass allows the
candidate to be committed.
*/
func CheckSums(parsed *parsers.ParsedReceipt, rawText string, cfg *storecfg.StoreConfig) (report ValidationReport) {
	tolerance := cfg.SumTolerance()

	tl.Log(
		tl.Notice, palette.BlueBold, "%s over '%s' items (chain '%s', sum tolerance %s)",
		"Running sum check", fmt.Sprintf("%d", len(parsed.Items)), cfg.ChainID, fmt.Sprintf("%.2f", tolerance),
	)

	report.ItemChecks = ValidateItems(parsed, cfg.MathTolerance())
	for _, check := range report.ItemChecks {
		if !check.Passed {
			report.addNote(fmt.Sprintf("item %d failed per-item math: %s", check.ItemIndex, check.Detail))
		}
	}

	productsSum, feesFromItems := splitFeeItems(parsed, cfg)
	report.ItemsSum = money.Round2(productsSum + feesFromItems)
	report.ProductsSum = money.Round2(productsSum)
	report.FeesFromItems = money.Round2(feesFromItems)

	tax := parsed.TaxSum() // null tax counts as zero
	totalsFees := parsed.FeeSum()

	switch {
	case parsed.Subtotal == nil && parsed.Total == nil:
		report.Verdict = VerdictNeedsReview
		report.addError("neither subtotal nor total present")

	case parsed.Subtotal != nil:
		report.Mode = ModeStandard
		checkStandardMode(&report, parsed, tolerance, tax, totalsFees)

	default:
		report.Mode = ModeGrocery
		checkGroceryMode(&report, parsed, tolerance)
	}

	detectPackagePromos(&report, parsed, rawText, tolerance)

	// An interim total ("Balance to pay") can never earn a full pass.
	if report.Verdict == VerdictPass && parsed.Validation.TotalFromInterim {
		report.Verdict = VerdictNeedsReview
		report.addNote("total came from an interim line; verdict capped at needs_review")
	}

	colorizer := palette.GreenBold
	if report.Verdict != VerdictPass {
		colorizer = palette.PurpleBold
	}
	tl.Log(
		tl.Notice1, colorizer, "%s verdict '%s' (mode '%s', items sum %s)",
		"Sum check finished with", report.Verdict, report.Mode, fmt.Sprintf("%.2f", report.ItemsSum),
	)
	return report
}

// splitFeeItems partitions the item sum into product lines and fee rows
// (bottle deposits, environmental fees) using the chain's wash-data
// patterns. Fee rows stay items in the output; only the arithmetic
// separates them.
func splitFeeItems(parsed *parsers.ParsedReceipt, cfg *storecfg.StoreConfig) (productsSum float64, feesFromItems float64) {
	for _, item := range parsed.Items {
		if cfg.IsFeeRow(item.ProductName) || cfg.IsFeeRow(item.RawText) {
			feesFromItems += item.LineTotal
			continue
		}
		productsSum += item.LineTotal
	}
	return productsSum, feesFromItems
}

/*
checkStandardMode verifies items against the printed subtotal and the
subtotal against the grand total:

 1. |items - subtotal| <= tolerance, retried with fee rows excluded when the
    full sum disagrees (deposits sometimes print inside the items region yet
    stay out of the subtotal).
 2. |subtotal + fees + tax - total| <= tolerance, retried as subtotal+tax
    and subtotal+tax+fee-items (chains disagree about where deposits land).
*/
func checkStandardMode(report *ValidationReport, parsed *parsers.ParsedReceipt, tolerance float64, tax float64, totalsFees float64) {
	subtotal := *parsed.Subtotal

	itemsDelta := money.Round2(report.ItemsSum - subtotal)
	report.SubtotalDelta = &itemsDelta
	itemsOk := money.WithinTolerance(report.ItemsSum, subtotal, tolerance)
	if !itemsOk && money.WithinTolerance(report.ProductsSum, subtotal, tolerance) {
		itemsOk = true
		productsDelta := money.Round2(report.ProductsSum - subtotal)
		report.SubtotalDelta = &productsDelta
		report.addNote("subtotal matched after excluding deposit/fee rows from the item sum")
	}
	if !itemsOk {
		report.Verdict = VerdictFail
		report.addError(fmt.Sprintf("item sum %.2f disagrees with subtotal %.2f", report.ItemsSum, subtotal))
	}

	if parsed.Total == nil {
		if report.Verdict != VerdictFail {
			report.Verdict = VerdictNeedsReview
		}
		report.addError("subtotal present but no total found")
		return
	}

	total := *parsed.Total
	candidates := []struct {
		value float64
		note  string
	}{
		{subtotal + totalsFees + tax, ""},
		{subtotal + tax, "total matched as subtotal+tax"},
		{subtotal + tax + report.FeesFromItems, "total matched as subtotal+tax+deposit/fee rows"},
	}

	totalOk := false
	for _, candidate := range candidates {
		if money.WithinTolerance(candidate.value, total, tolerance) {
			totalOk = true
			delta := money.Round2(candidate.value - total)
			report.TotalDelta = &delta
			if candidate.note != "" {
				report.addNote(candidate.note)
			}
			break
		}
	}
	if !totalOk {
		delta := money.Round2(subtotal + totalsFees + tax - total)
		report.TotalDelta = &delta
		report.Verdict = VerdictFail
		report.addError(fmt.Sprintf("subtotal %.2f + fees %.2f + tax %.2f disagrees with total %.2f", subtotal, totalsFees, tax, total))
	}

	if report.Verdict == "" {
		report.Verdict = VerdictPass
	}
}

// checkGroceryMode compares the full item sum (fee rows included) directly
// against the total; grocery receipts print no subtotal and fold deposits
// into the total.
func checkGroceryMode(report *ValidationReport, parsed *parsers.ParsedReceipt, tolerance float64) {
	total := *parsed.Total
	sum := money.Round2(report.ItemsSum + parsed.FeeSum() + parsed.TaxSum())

	delta := money.Round2(sum - total)
	report.TotalDelta = &delta

	if money.WithinTolerance(sum, total, tolerance) {
		report.Verdict = VerdictPass
		return
	}
	report.Verdict = VerdictFail
	report.addError(fmt.Sprintf("grocery-mode sum %.2f disagrees with total %.2f", sum, total))
}
