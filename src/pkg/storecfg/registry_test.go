package storecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinChainsLoad(t *testing.T) {
	registry, e := NewRegistry("")
	require.Nil(t, e)

	for _, id := range []string{"costco_ca_digital", "costco_us_digital", "costco_us_physical", "tnt_ca", "tnt_us", "trader_joes"} {
		cfg := registry.Get(id)
		require.NotNil(t, cfg, "chain %s", id)
		assert.NotEmpty(t, cfg.LayoutFamily, "chain %s", id)
	}
}

func TestExtendsMerge(t *testing.T) {
	registry, e := NewRegistry("")
	require.Nil(t, e)

	ca := registry.Get("tnt_ca")
	require.NotNil(t, ca)

	// Inherited from tnt_base.
	assert.Equal(t, FamilyTNT, ca.LayoutFamily)
	assert.Contains(t, ca.Items.Layout.AmountSuffixes, "FP")
	assert.True(t, ca.IsFeeRow("Bottle deposit $0.10"))
	// Overridden by the child.
	require.NotNil(t, ca.Pipeline.SkewCorrection)
	assert.False(t, *ca.Pipeline.SkewCorrection)

	us := registry.Get("tnt_us")
	require.NotNil(t, us)
	require.NotNil(t, us.Pipeline.SkewCorrection)
	assert.True(t, *us.Pipeline.SkewCorrection)

	// The toggle reaches row reconstruction.
	assert.False(t, ca.RowOptions().SkewCorrection)
	assert.True(t, us.RowOptions().SkewCorrection)
}

func TestResolveByMerchantLongestWins(t *testing.T) {
	registry, e := NewRegistry("")
	require.Nil(t, e)

	cfg := registry.ResolveByMerchant("COSTCO WHOLESALE CANADA #123")
	require.NotNil(t, cfg)
	assert.Equal(t, "costco_ca_digital", cfg.ChainID)

	cfg = registry.ResolveByMerchant("Trader Joe's Store 42")
	require.NotNil(t, cfg)
	assert.Equal(t, "trader_joes", cfg.ChainID)

	assert.Nil(t, registry.ResolveByMerchant("SOME UNKNOWN SHOP"))
	assert.Nil(t, registry.ResolveByMerchant(""))
}

func TestDirectoryOverlayAndReload(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"chain_id": "trader_joes",
		"layout_family": "trader_joes",
		"identification": {"primary_name": "Trader Joe's", "aliases": ["TJ"]},
		"pipeline": {"row_epsilon": 0.02},
		"validation": {"tolerances": {"sum": 0.05}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trader-joes.json"), []byte(doc), 0o644))

	registry, e := NewRegistry(dir)
	require.Nil(t, e)

	cfg := registry.Get("trader_joes")
	require.NotNil(t, cfg)
	assert.Equal(t, 0.02, cfg.Pipeline.RowEpsilon)
	assert.Equal(t, 0.05, cfg.SumTolerance())

	// Remove the override; reload swaps back to the builtin document.
	require.NoError(t, os.Remove(filepath.Join(dir, "trader-joes.json")))
	require.Nil(t, registry.Reload())
	assert.Equal(t, 0.012, registry.Get("trader_joes").Pipeline.RowEpsilon)
}

func TestToleranceDefaults(t *testing.T) {
	registry, e := NewRegistry("")
	require.Nil(t, e)

	cfg := registry.Get("costco_ca_digital")
	assert.Equal(t, 0.02, cfg.MathTolerance())
	assert.Equal(t, 0.03, cfg.SumTolerance())
}

func TestRegionMarkersCompileOverride(t *testing.T) {
	registry, e := NewRegistry("")
	require.Nil(t, e)

	tj := registry.Get("trader_joes")
	markers, me := tj.RegionMarkers()
	require.Nil(t, me)

	assert.True(t, markers.TotalPattern.MatchString("TOTAL PURCHASE 23.96"))
	assert.True(t, markers.ExcludeTotalPattern.MatchString("BALANCE TO PAY 23.96"))
}
