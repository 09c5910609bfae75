package storecfg

import (
	"regexp"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
)

// LayoutFamily is the closed enumeration of supported receipt layouts.
// Chains map onto a family through their config document; parser dispatch
// never happens on free-form merchant strings.
type LayoutFamily string

const (
	FamilyCostcoCADigital  LayoutFamily = "costco_ca_digital"
	FamilyCostcoUSDigital  LayoutFamily = "costco_us_digital"
	FamilyCostcoUSPhysical LayoutFamily = "costco_us_physical"
	FamilyTNT              LayoutFamily = "tnt"
	FamilyTraderJoes       LayoutFamily = "trader_joes"
)

// Identification names a chain and the merchant strings that resolve to it.
type Identification struct {
	PrimaryName string   `json:"primary_name"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Pipeline carries per-chain processing toggles.
type Pipeline struct {
	SkewCorrection      *bool   `json:"skew_correction,omitempty"`
	RowEpsilon          float64 `json:"row_epsilon,omitempty"`
	SplitOnSecondAmount *bool   `json:"split_on_second_amount,omitempty"`
	StageTimeoutSecond  int     `json:"stage_timeout_second,omitempty"`
}

// ItemsLayout describes the geometry of the items region.
type ItemsLayout struct {
	AmountSuffixes        []string `json:"amount_suffixes,omitempty"` // e.g. FP, P, W on T&T
	AmountColumnCenter    float64  `json:"amount_column_center,omitempty"`
	AmountColumnTolerance float64  `json:"amount_column_tolerance,omitempty"`
}

// Items groups item-region settings.
type Items struct {
	SectionHeaders []string    `json:"section_headers,omitempty"` // GROCERY, PRODUCE, DELI...
	Layout         ItemsLayout `json:"layout,omitempty"`
}

// WashData lists row patterns that are fees rather than products.
type WashData struct {
	FeeRowPatterns []string `json:"fee_row_patterns,omitempty"` // "Env fee (CRF)", "Bottle deposit"
}

// Tolerances override the package defaults per chain.
type Tolerances struct {
	Math float64 `json:"math,omitempty"`
	Sum  float64 `json:"sum,omitempty"`
}

// Validation groups validation overrides.
type Validation struct {
	Tolerances Tolerances `json:"tolerances,omitempty"`
}

// Markers holds the raw region-marker regexes of a document.
type Markers struct {
	Member       string `json:"member,omitempty"`
	Subtotal     string `json:"subtotal,omitempty"`
	Tax          string `json:"tax,omitempty"`
	Total        string `json:"total,omitempty"`
	ExcludeTotal string `json:"exclude_total,omitempty"`
	ItemStart    string `json:"item_start,omitempty"`
}

/*
StoreConfig is one chain document. Documents may extend another document via
Extends; the child wins field-by-field over the parent after the merge.
*/
type StoreConfig struct {
	ChainID        string         `json:"chain_id"`
	Extends        string         `json:"extends,omitempty"`
	LayoutFamily   LayoutFamily   `json:"layout_family,omitempty"`
	Identification Identification `json:"identification"`
	Pipeline       Pipeline       `json:"pipeline,omitempty"`
	Items          Items          `json:"items,omitempty"`
	WashData       WashData       `json:"wash_data,omitempty"`
	Validation     Validation     `json:"validation,omitempty"`
	Markers        Markers        `json:"markers,omitempty"`

	compiledMarkers *geometry.RegionMarkers
	compiledFees    []*regexp.Regexp
}

// RowOptions converts the pipeline toggles into geometry options.
func (c *StoreConfig) RowOptions() geometry.RowOptions {
	options := geometry.RowOptions{Epsilon: c.Pipeline.RowEpsilon}
	if c.Pipeline.SplitOnSecondAmount != nil {
		options.SplitOnSecondAmount = *c.Pipeline.SplitOnSecondAmount
	}
	if c.Pipeline.SkewCorrection != nil {
		options.SkewCorrection = *c.Pipeline.SkewCorrection
	}
	return options
}

// ColumnFallback returns the configured amount-column boundary.
func (c *StoreConfig) ColumnFallback() geometry.ColumnFallback {
	center := c.Items.Layout.AmountColumnCenter
	tolerance := c.Items.Layout.AmountColumnTolerance
	if center == 0 {
		center = 0.85
	}
	if tolerance == 0 {
		tolerance = 0.08
	}
	return geometry.ColumnFallback{CenterX: center, Tolerance: tolerance}
}

// MathTolerance returns the per-item tolerance, chain override first.
func (c *StoreConfig) MathTolerance() float64 {
	if c.Validation.Tolerances.Math > 0 {
		return c.Validation.Tolerances.Math
	}
	return money.MathTolerance
}

// SumTolerance returns the aggregate tolerance, chain override first.
func (c *StoreConfig) SumTolerance() float64 {
	if c.Validation.Tolerances.Sum > 0 {
		return c.Validation.Tolerances.Sum
	}
	return money.SumTolerance
}

/*
RegionMarkers compiles the document's marker regexes, falling back to the
geometry defaults for any marker the document leaves empty. Compilation
happens once per registry load; the result is cached on the config.
*/
func (c *StoreConfig) RegionMarkers() (geometry.RegionMarkers, *xerr.Error) {
	if c.compiledMarkers != nil {
		return *c.compiledMarkers, nil
	}

	markers := geometry.DefaultRegionMarkers()

	compile := func(pattern string, target **regexp.Regexp) *xerr.Error {
		if pattern == "" {
			return nil
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return xerr.NewError(err, "compile region marker regex", map[string]string{"chain_id": c.ChainID, "pattern": pattern})
		}
		*target = compiled
		return nil
	}

	steps := []struct {
		pattern string
		target  **regexp.Regexp
	}{
		{c.Markers.Member, &markers.MemberPattern},
		{c.Markers.Subtotal, &markers.SubtotalPattern},
		{c.Markers.Tax, &markers.TaxPattern},
		{c.Markers.Total, &markers.TotalPattern},
		{c.Markers.ExcludeTotal, &markers.ExcludeTotalPattern},
		{c.Markers.ItemStart, &markers.ItemStartPattern},
	}
	for _, step := range steps {
		if e := compile(step.pattern, step.target); e != nil {
			return markers, e
		}
	}

	c.compiledMarkers = &markers
	return markers, nil
}

// FeePatterns compiles the wash-data fee row patterns (case-insensitive,
// treated as literal receipt text fragments).
func (c *StoreConfig) FeePatterns() []*regexp.Regexp {
	if c.compiledFees != nil {
		return c.compiledFees
	}
	compiled := make([]*regexp.Regexp, 0, len(c.WashData.FeeRowPatterns))
	for _, pattern := range c.WashData.FeeRowPatterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(pattern)))
	}
	c.compiledFees = compiled
	return compiled
}

// IsFeeRow reports whether a row's text matches a configured fee pattern.
func (c *StoreConfig) IsFeeRow(text string) bool {
	for _, pattern := range c.FeePatterns() {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// IsSectionHeader reports whether a normalized row is a configured section
// banner (GROCERY, PRODUCE, DELI...).
func (c *StoreConfig) IsSectionHeader(normalizedText string) bool {
	for _, header := range c.Items.SectionHeaders {
		if normalizedText == header {
			return true
		}
	}
	return false
}
