package money

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MathTolerance bounds |quantity*unit_price - line_total| for one item.
	MathTolerance = 0.02
	// SumTolerance bounds the aggregate checks over items, fees, tax and total.
	SumTolerance = 0.03
)

// Cents is the persistence representation of money: a signed integer number
// of cents. Extraction works in 2-decimal float64 and converts at the
// storage boundary.
type Cents int64

// amountTokenRegexp accepts "$1,234.56", "12.34-", "-0.10", "2.00-" etc.
// Group 1 is a leading minus, group 2 the digits, group 3 a trailing minus.
var amountTokenRegexp = regexp.MustCompile(`^(-)?\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)\s*(-)?$`)

/*
ParseAmount parses an OCR amount token into a float64 value.

Receipt OCR renders negative amounts with a trailing minus ("2.00-") at
least as often as with a leading one; both are honored. A currency symbol
and thousands separators are tolerated. The boolean result reports whether
the token looked like an amount at all.
*/
func ParseAmount(token string) (value float64, ok bool) {
	m := amountTokenRegexp.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, false
	}

	cleaned := strings.ReplaceAll(m[2], ",", "")
	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}

	if m[1] == "-" || m[3] == "-" {
		dec = dec.Neg()
	}

	value, _ = dec.Float64()
	return value, true
}

// strictAmountRegexp is the bare dollars-and-cents form once sign and
// currency symbol are stripped.
var strictAmountRegexp = regexp.MustCompile(`^\d{1,6}\.\d{2}$`)

// IsStrictAmount reports whether a token is a well-formed dollars-and-cents
// amount with exactly two decimals ("12.34", "12.34-"). Costco US digital
// receipts need this to keep SKU fragments like "371" out of the amount set.
func IsStrictAmount(token string) bool {
	trimmed := strings.TrimSpace(token)
	trimmed = strings.TrimPrefix(trimmed, "-")
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.TrimSuffix(trimmed, "-")
	return strictAmountRegexp.MatchString(strings.TrimSpace(trimmed))
}

/*
FromFloat converts an extraction-time float to Cents, rounding half-to-even
at cent granularity. decimal.RoundBank is the banker's rounding the storage
boundary requires.
*/
func FromFloat(value float64) Cents {
	dec := decimal.NewFromFloat(value).Mul(decimal.NewFromInt(100)).RoundBank(0)
	return Cents(dec.IntPart())
}

// ToFloat converts Cents back to the 2-decimal float used during extraction.
// The round trip Cents -> float64 -> Cents is exact for any realistic total.
func (c Cents) ToFloat() float64 {
	return float64(c) / 100
}

// String renders like a receipt would: "12.34", "-2.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// WithinTolerance reports |a-b| <= tolerance with a half-cent guard against
// float accumulation noise.
func WithinTolerance(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance+1e-9
}

// Round2 snaps an extraction-time value to two decimals (half-to-even).
func Round2(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).RoundBank(2).Float64()
	return rounded
}
