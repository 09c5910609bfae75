package parsers

import (
	"ledgerlens/src/pkg/geometry"
)

/*
ExtractedItem is one candidate line from the items region.

LineTotal stays a 2-decimal float during extraction; the repository converts
to cents at the storage boundary. Quantity/UnitPrice are pointers because
most receipt lines print neither. A negative LineTotal is only legal on a
line that absorbed a discount row.
*/
type ExtractedItem struct {
	ProductName string   `json:"product_name"`
	LineTotal   float64  `json:"line_total"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Unit        string   `json:"unit,omitempty"` // lb, kg, ea
	Sku         string   `json:"sku,omitempty"`
	RawText     string   `json:"raw_text,omitempty"`
	OnSale      bool     `json:"on_sale,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// FieldConflict records a disagreement between the parsed value of a field
// and a trusted OCR hint for the same field.
type FieldConflict struct {
	Field       string `json:"field"`
	ParsedValue string `json:"parsed_value"`
	HintValue   string `json:"hint_value"`
}

// ResolutionReport is the typed replacement for the loose "tbd" substructure:
// open conflicts before resolution, applied overrides after.
type ResolutionReport struct {
	FieldConflicts    []FieldConflict `json:"field_conflicts,omitempty"`
	ResolvedConflicts []FieldConflict `json:"resolved_conflicts,omitempty"`
}

/*
ValidationBlock is the parser's own summary of what it could and could not
establish. Every parser fills one in, successful or not; the sum checker
builds its full report on top of it.
*/
type ValidationBlock struct {
	ItemCount   int      `json:"item_count"`
	HasSubtotal bool     `json:"has_subtotal"`
	HasTotal    bool     `json:"has_total"`
	// TotalFromInterim marks a total taken from an interim line ("Balance to
	// pay"); the verdict is capped at needs_review when set.
	TotalFromInterim bool     `json:"total_from_interim,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

/*
ParsedReceipt is the candidate record a store parser (or the LLM) produces.

Success=false with a non-empty ErrorLog means the parser could not identify
items; that is a data outcome, not a Go error. Subtotal and Total are
pointers so grocery receipts that never print a subtotal stay
distinguishable from a zero subtotal.
*/
type ParsedReceipt struct {
	MerchantName  string                   `json:"merchant_name,omitempty"`
	StoreChainID  string                   `json:"store_chain_id,omitempty"`
	Address       string                   `json:"address,omitempty"`
	PurchaseDate  string                   `json:"purchase_date,omitempty"`
	PurchaseTime  string                   `json:"purchase_time,omitempty"`
	Currency      string                   `json:"currency,omitempty"`
	Items         []ExtractedItem          `json:"items"`
	Subtotal      *float64                 `json:"subtotal,omitempty"`
	Taxes         []geometry.LabeledAmount `json:"taxes,omitempty"`
	Fees          []geometry.LabeledAmount `json:"fees,omitempty"`
	Total         *float64                 `json:"total,omitempty"`
	PaymentMethod string                   `json:"payment_method,omitempty"`
	CardLast4     string                   `json:"card_last4,omitempty"`
	MembershipID  string                   `json:"membership_id,omitempty"`

	Success    bool             `json:"success"`
	Validation ValidationBlock  `json:"validation"`
	ErrorLog   []string         `json:"error_log"`
	Resolution ResolutionReport `json:"resolution,omitempty"`
}

// TaxSum adds every labeled tax amount. A receipt with no tax lines sums to 0.
func (p *ParsedReceipt) TaxSum() float64 {
	sum := 0.0
	for _, tax := range p.Taxes {
		sum += tax.Amount
	}
	return sum
}

// FeeSum adds every labeled fee amount (bottle deposits, environmental fees).
func (p *ParsedReceipt) FeeSum() float64 {
	sum := 0.0
	for _, fee := range p.Fees {
		sum += fee.Amount
	}
	return sum
}

// ItemsSum adds every item line total, discounts already applied.
func (p *ParsedReceipt) ItemsSum() float64 {
	sum := 0.0
	for _, item := range p.Items {
		sum += item.LineTotal
	}
	return sum
}
