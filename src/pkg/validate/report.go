package validate

// Verdict is the outcome of a validation pass.
type Verdict string

const (
	VerdictPass        Verdict = "pass"
	VerdictNeedsReview Verdict = "needs_review"
	VerdictFail        Verdict = "fail"
)

// Mode names which totals arithmetic applied.
type Mode string

const (
	// ModeStandard compares items against a printed subtotal, then
	// subtotal+fees+tax against the total.
	ModeStandard Mode = "standard"
	// ModeGrocery has no subtotal; items (fee rows included) compare
	// directly against the total.
	ModeGrocery Mode = "grocery"
)

// ItemCheck is the per-item math result.
type ItemCheck struct {
	ItemIndex  int     `json:"item_index"`
	Passed     bool    `json:"passed"`
	Recovered  bool    `json:"recovered,omitempty"` // quantity/unit price recovered from raw text
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// PackagePromo is a detected "N for $X" promotion and whether a matching
// set of on-sale items was found. Detection never mutates items.
type PackagePromo struct {
	Count        int     `json:"count"`
	PackagePrice float64 `json:"package_price"`
	Matched      bool    `json:"matched"`
	ItemIndexes  []int   `json:"item_indexes,omitempty"`
}

/*
ValidationReport is the sum checker's full output: the verdict, which mode
applied, per-item math results, the aggregate deltas, any detected package
promotions, and the reasons behind a non-pass verdict.
*/
type ValidationReport struct {
	Verdict       Verdict        `json:"verdict"`
	Mode          Mode           `json:"mode"`
	ItemChecks    []ItemCheck    `json:"item_checks,omitempty"`
	ItemsSum      float64        `json:"items_sum"`
	ProductsSum   float64        `json:"products_sum"`
	FeesFromItems float64        `json:"fees_from_items"`
	SubtotalDelta *float64       `json:"subtotal_delta,omitempty"`
	TotalDelta    *float64       `json:"total_delta,omitempty"`
	PackagePromos []PackagePromo `json:"package_promos,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	Notes         []string       `json:"notes,omitempty"`
}

func (r *ValidationReport) addError(message string) {
	r.Errors = append(r.Errors, message)
}

func (r *ValidationReport) addNote(message string) {
	r.Notes = append(r.Notes, message)
}
