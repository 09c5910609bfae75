package validate

import (
	"fmt"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/ocrnorm"
	"ledgerlens/src/pkg/parsers"
)

// merchantHintKeys are the entity types that may carry the merchant name,
// in preference order.
var merchantHintKeys = []string{"VENDOR_NAME", "SUPPLIER_NAME", "MERCHANT_NAME"}

/*
ResolveConflicts applies trusted OCR hints to a candidate that already
passed the sum check. Fields where the candidate and a trusted hint disagree
are recorded as conflicts, overwritten with the hint value, and moved to
ResolvedConflicts so a reviewer can still see what changed.

Only called after a pass verdict: an unvalidated candidate must not be
silently corrected.
*/
func ResolveConflicts(parsed *parsers.ParsedReceipt, hints map[string]ocrnorm.EntityValue) (resolvedCount int) {
	if len(hints) == 0 {
		return 0
	}

	for _, key := range merchantHintKeys {
		hint, exists := hints[key]
		if !exists || strings.TrimSpace(hint.Text) == "" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(parsed.MerchantName), strings.TrimSpace(hint.Text)) {
			resolveField(parsed, "merchant_name", parsed.MerchantName, hint.Text)
			parsed.MerchantName = strings.TrimSpace(hint.Text)
			resolvedCount++
		}
		break
	}

	if hint, exists := hints["TOTAL"]; exists && hint.NormalizedMoney != nil {
		hintTotal := *hint.NormalizedMoney
		if parsed.Total == nil || money.Round2(*parsed.Total) != money.Round2(hintTotal) {
			parsedValue := "(none)"
			if parsed.Total != nil {
				parsedValue = fmt.Sprintf("%.2f", *parsed.Total)
			}
			resolveField(parsed, "total", parsedValue, fmt.Sprintf("%.2f", hintTotal))
			parsed.Total = &hintTotal
			resolvedCount++
		}
	}

	if hint, exists := hints["INVOICE_RECEIPT_DATE"]; exists && hint.NormalizedDate != nil {
		if parsed.PurchaseDate != *hint.NormalizedDate {
			resolveField(parsed, "purchase_date", parsed.PurchaseDate, *hint.NormalizedDate)
			parsed.PurchaseDate = *hint.NormalizedDate
			resolvedCount++
		}
	}

	if resolvedCount > 0 {
		tl.Log(
			tl.Notice1, palette.Cyan, "%s '%s' field conflicts with trusted hints",
			"Resolved", fmt.Sprintf("%d", resolvedCount),
		)
	}
	return resolvedCount
}

// resolveField books one conflict as resolved on the candidate's report.
func resolveField(parsed *parsers.ParsedReceipt, field string, parsedValue string, hintValue string) {
	conflict := parsers.FieldConflict{Field: field, ParsedValue: parsedValue, HintValue: hintValue}
	parsed.Resolution.ResolvedConflicts = append(parsed.Resolution.ResolvedConflicts, conflict)

	// Drop the matching open conflict if the candidate declared one.
	for i, open := range parsed.Resolution.FieldConflicts {
		if open.Field == field {
			parsed.Resolution.FieldConflicts = append(parsed.Resolution.FieldConflicts[:i], parsed.Resolution.FieldConflicts[i+1:]...)
			break
		}
	}
}
