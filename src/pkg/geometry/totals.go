package geometry

// LabeledAmount is one named figure from the totals region ("HST", "GST",
// "TOTAL TAX", deposit and fee lines...).
type LabeledAmount struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

/*
TotalsSequence is the ordered view of the totals region: a subtotal, the
middle amounts between subtotal and total (taxes, fees, deposits), and the
grand total. Pointers distinguish "absent" from zero — grocery receipts often
print no subtotal at all.
*/
type TotalsSequence struct {
	Subtotal *float64        `json:"subtotal,omitempty"`
	Middle   []LabeledAmount `json:"middle,omitempty"`
	Total    *float64        `json:"total,omitempty"`
}

// MiddleSum adds up every middle amount (taxes, fees, deposits).
func (t TotalsSequence) MiddleSum() float64 {
	sum := 0.0
	for _, m := range t.Middle {
		sum += m.Amount
	}
	return sum
}
