package validate

import (
	"fmt"
	"regexp"

	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/parsers"
)

// packagePromoRegexp matches the package-price promotion forms "2/$9.00",
// "2 for $9.00" and "2 for 9.00" in raw receipt text.
var packagePromoRegexp = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:/|for\s+)\$?(\d+(?:\.\d{2})?)\b`)

// maxSubsetPromoCount bounds the combinatoric subset search; larger promos
// only try consecutive on-sale runs.
const maxSubsetPromoCount = 3

/*
detectPackagePromos scans the raw text for "N for $X" promotions and checks
whether N on-sale items sum to the package price within tolerance. For small
N every subset of on-sale items is tried; detection only annotates the
report and never mutates items.
*/
func detectPackagePromos(report *ValidationReport, parsed *parsers.ParsedReceipt, rawText string, tolerance float64) {
	matches := packagePromoRegexp.FindAllStringSubmatch(rawText, -1)
	if len(matches) == 0 {
		return
	}

	onSale := onSaleIndexes(parsed)

	for _, match := range matches {
		count := 0
		if _, err := fmt.Sscanf(match[1], "%d", &count); err != nil || count < 2 {
			continue
		}
		packagePrice, ok := money.ParseAmount(match[2])
		if !ok {
			continue
		}

		promo := PackagePromo{Count: count, PackagePrice: packagePrice}
		if count <= maxSubsetPromoCount {
			promo.ItemIndexes, promo.Matched = findSubsetSum(parsed, onSale, count, packagePrice, tolerance)
		} else {
			promo.ItemIndexes, promo.Matched = findConsecutiveSum(parsed, onSale, count, packagePrice, tolerance)
		}
		if promo.Matched {
			report.addNote(fmt.Sprintf("package promotion %d/$%.2f matched by on-sale items %v", count, packagePrice, promo.ItemIndexes))
		}
		report.PackagePromos = append(report.PackagePromos, promo)
	}
}

func onSaleIndexes(parsed *parsers.ParsedReceipt) []int {
	var indexes []int
	for i, item := range parsed.Items {
		if item.OnSale {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// findSubsetSum tries every size-count subset of the on-sale items.
func findSubsetSum(parsed *parsers.ParsedReceipt, onSale []int, count int, target float64, tolerance float64) (indexes []int, matched bool) {
	var chosen []int
	var walk func(start int) bool
	walk = func(start int) bool {
		if len(chosen) == count {
			sum := 0.0
			for _, idx := range chosen {
				sum += parsed.Items[idx].LineTotal
			}
			return money.WithinTolerance(sum, target, tolerance)
		}
		for i := start; i < len(onSale); i++ {
			chosen = append(chosen, onSale[i])
			if walk(i + 1) {
				return true
			}
			chosen = chosen[:len(chosen)-1]
		}
		return false
	}

	if walk(0) {
		return append([]int(nil), chosen...), true
	}
	return nil, false
}

// findConsecutiveSum tries runs of count consecutive on-sale items.
func findConsecutiveSum(parsed *parsers.ParsedReceipt, onSale []int, count int, target float64, tolerance float64) (indexes []int, matched bool) {
	if len(onSale) < count {
		return nil, false
	}
	for start := 0; start+count <= len(onSale); start++ {
		sum := 0.0
		run := onSale[start : start+count]
		for _, idx := range run {
			sum += parsed.Items[idx].LineTotal
		}
		if money.WithinTolerance(sum, target, tolerance) {
			return append([]int(nil), run...), true
		}
	}
	return nil, false
}
