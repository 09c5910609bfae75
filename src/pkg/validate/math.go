package validate

import (
	"fmt"
	"regexp"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/parsers"
)

// rawNumberRegexp pulls every standalone number out of an item's raw text
// for quantity/unit-price recovery.
var rawNumberRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)

/*
ValidateItems runs the per-item math check over every extracted item.

Items carrying both quantity and unit price must satisfy
|quantity*unit_price - line_total| <= tolerance. Items missing either field
get a recovery attempt: every ordered pair of numbers in the raw text is
tried, and the pair whose product matches the line total is retained on the
item — confidence 1.0 on an exact (cent-equal) product, 0.5 otherwise.
*/
func ValidateItems(parsed *parsers.ParsedReceipt, tolerance float64) []ItemCheck {
	checks := make([]ItemCheck, 0, len(parsed.Items))

	for i := range parsed.Items {
		item := &parsed.Items[i]
		check := ItemCheck{ItemIndex: i, Passed: true, Confidence: item.Confidence}

		if item.Quantity != nil && item.UnitPrice != nil {
			product := money.Round2(*item.Quantity * *item.UnitPrice)
			if money.WithinTolerance(product, item.LineTotal, tolerance) {
				if product == money.Round2(item.LineTotal) {
					check.Confidence = 1.0
				} else {
					check.Confidence = 0.5
				}
			} else {
				check.Passed = false
				check.Confidence = 0.5
				check.Detail = fmt.Sprintf("quantity*unit_price %.2f disagrees with line_total %.2f", product, item.LineTotal)
			}
			item.Confidence = check.Confidence
			checks = append(checks, check)
			continue
		}

		if quantity, unitPrice, exact, recovered := recoverPair(item.RawText, item.LineTotal, tolerance); recovered {
			item.Quantity = &quantity
			item.UnitPrice = &unitPrice
			check.Recovered = true
			if exact {
				check.Confidence = 1.0
			} else {
				check.Confidence = 0.5
			}
			item.Confidence = check.Confidence
			tl.Log(
				tl.Info1, palette.Cyan, "%s quantity %s x unit price %s for item '%s'",
				"Recovered", fmt.Sprintf("%.2f", quantity), fmt.Sprintf("%.2f", unitPrice), item.ProductName,
			)
		}
		checks = append(checks, check)
	}

	return checks
}

/*
recoverPair tries all ordered pairs of numbers from the raw text and keeps
the pair whose product matches the line total within tolerance. Exact
(cent-equal) products are preferred over merely tolerable ones.
*/
func recoverPair(rawText string, lineTotal float64, tolerance float64) (quantity float64, unitPrice float64, exact bool, recovered bool) {
	numbers := rawNumbers(rawText, lineTotal)
	if len(numbers) < 2 {
		return 0, 0, false, false
	}

	bestDelta := tolerance + 1
	for i, a := range numbers {
		for j, b := range numbers {
			if i == j {
				continue
			}
			product := money.Round2(a * b)
			delta := absDelta(product, lineTotal)
			if delta > tolerance {
				continue
			}
			if !recovered || delta < bestDelta {
				quantity, unitPrice = a, b
				bestDelta = delta
				exact = product == money.Round2(lineTotal)
				recovered = true
			}
			if exact {
				return quantity, unitPrice, true, true
			}
		}
	}
	return quantity, unitPrice, exact, recovered
}

// rawNumbers extracts candidate numbers from raw text, excluding the line
// total itself (a number equal to the total is the printed price, not a
// factor).
func rawNumbers(rawText string, lineTotal float64) []float64 {
	matches := rawNumberRegexp.FindAllString(rawText, -1)
	numbers := make([]float64, 0, len(matches))
	for _, match := range matches {
		value, ok := money.ParseAmount(match)
		if !ok || value == 0 || value == lineTotal {
			continue
		}
		numbers = append(numbers, value)
	}
	return numbers
}

func absDelta(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
