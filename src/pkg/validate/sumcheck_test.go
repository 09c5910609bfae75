package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/storecfg"
	"ledgerlens/src/pkg/util"
)

func genericConfig() *storecfg.StoreConfig {
	return &storecfg.StoreConfig{ChainID: "generic"}
}

func tntConfig(t *testing.T) *storecfg.StoreConfig {
	t.Helper()
	registry, e := storecfg.NewRegistry("")
	require.Nil(t, e)
	cfg := registry.Get("tnt_ca")
	require.NotNil(t, cfg)
	return cfg
}

func TestCheckSumsStandardModePass(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{
			{ProductName: "SPINACH", LineTotal: 4.99},
			{ProductName: "WATER", LineTotal: 6.99},
		},
		Subtotal: util.Ptr(11.98),
		Taxes:    []geometry.LabeledAmount{{Label: "GST", Amount: 0.60}},
		Total:    util.Ptr(12.58),
	}

	report := CheckSums(parsed, "", genericConfig())

	assert.Equal(t, VerdictPass, report.Verdict)
	assert.Equal(t, ModeStandard, report.Mode)
	assert.InDelta(t, 11.98, report.ItemsSum, 1e-9)
	require.NotNil(t, report.TotalDelta)
	assert.InDelta(t, 0, *report.TotalDelta, 1e-9)
	assert.Empty(t, report.Errors)
}

func TestCheckSumsStandardModeSubtotalMismatchFails(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items:    []parsers.ExtractedItem{{ProductName: "SPINACH", LineTotal: 4.99}},
		Subtotal: util.Ptr(9.99),
		Total:    util.Ptr(9.99),
	}

	report := CheckSums(parsed, "", genericConfig())

	assert.Equal(t, VerdictFail, report.Verdict)
	assert.NotEmpty(t, report.Errors)
}

func TestCheckSumsFeeRowExclusionRetry(t *testing.T) {
	// The bottle-deposit row prints inside the items region but stays out of
	// the subtotal; both checks recover via the fee-row split.
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{
			{ProductName: "EGG TOFU", LineTotal: 10.00},
			{ProductName: "Env fee (CRF)", LineTotal: 0.05},
		},
		Subtotal: util.Ptr(10.00),
		Total:    util.Ptr(10.05),
	}

	report := CheckSums(parsed, "", tntConfig(t))

	assert.Equal(t, VerdictPass, report.Verdict)
	assert.InDelta(t, 10.00, report.ProductsSum, 1e-9)
	assert.InDelta(t, 0.05, report.FeesFromItems, 1e-9)
	assert.Len(t, report.Notes, 2, "both the subtotal and the total matched via the fee split")
}

func TestCheckSumsGroceryMode(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{
			{ProductName: "TOFU", LineTotal: 2.69},
			{ProductName: "PEAR", LineTotal: 7.72},
		},
		Taxes: []geometry.LabeledAmount{{Label: "GST", Amount: 0.13}},
		Total: util.Ptr(10.54),
	}

	report := CheckSums(parsed, "", genericConfig())

	assert.Equal(t, VerdictPass, report.Verdict)
	assert.Equal(t, ModeGrocery, report.Mode)
}

func TestCheckSumsGroceryModeMismatchFails(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{{ProductName: "TOFU", LineTotal: 2.69}},
		Total: util.Ptr(12.00),
	}

	report := CheckSums(parsed, "", genericConfig())

	assert.Equal(t, VerdictFail, report.Verdict)
	require.NotNil(t, report.TotalDelta)
	assert.NotEmpty(t, report.Errors)
}

func TestCheckSumsNoTotalsNeedsReview(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{{ProductName: "TOFU", LineTotal: 2.69}},
	}

	report := CheckSums(parsed, "", genericConfig())
	assert.Equal(t, VerdictNeedsReview, report.Verdict)
}

func TestCheckSumsSubtotalWithoutTotalNeedsReview(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items:    []parsers.ExtractedItem{{ProductName: "TOFU", LineTotal: 2.69}},
		Subtotal: util.Ptr(2.69),
	}

	report := CheckSums(parsed, "", genericConfig())
	assert.Equal(t, VerdictNeedsReview, report.Verdict)
	assert.NotEmpty(t, report.Errors)
}

func TestCheckSumsInterimTotalCapsVerdict(t *testing.T) {
	parsed := &parsers.ParsedReceipt{
		Items: []parsers.ExtractedItem{{ProductName: "PEANUT BUTTER", LineTotal: 5.99}},
		Total: util.Ptr(5.99),
	}
	parsed.Validation.TotalFromInterim = true

	report := CheckSums(parsed, "", genericConfig())

	// The arithmetic passes, but a "Balance to pay" total cannot earn a pass.
	assert.Equal(t, VerdictNeedsReview, report.Verdict)
	assert.NotEmpty(t, report.Notes)
}
