package storecfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
Registry resolves receipts to chain configs.

Reads (Get, ResolveByMerchant) take a read lock; Reload swaps the whole map
under the write lock, so workers holding a *StoreConfig keep a consistent
snapshot across an admin reload.
*/
type Registry struct {
	mu      sync.RWMutex
	dir     string
	configs map[string]*StoreConfig
}

/*
NewRegistry loads the per-chain JSON documents from dir and layers them over
the builtin chain set. An empty dir (or a missing directory) leaves just the
builtins, so the pipeline always has the five shipped layout families.
*/
func NewRegistry(dir string) (registry *Registry, e *xerr.Error) {
	registry = &Registry{dir: dir}
	e = registry.Reload()
	return registry, e
}

/*
Reload re-reads the config directory and atomically replaces the chain map.

Steps:
 1. Start from the builtin documents.
 2. Overlay every *.json document from the directory (by chain_id).
 3. Resolve the extends chains (child fields win over parent).
 4. Pre-compile markers and fee patterns so workers never pay for it.
*/
func (r *Registry) Reload() (e *xerr.Error) {
	loaded := builtinConfigs()

	if strings.TrimSpace(r.dir) != "" {
		entries, readErr := os.ReadDir(r.dir)
		if readErr != nil {
			tl.Log(tl.Warning, palette.YellowDim, "Store config dir '%s' is %s, using builtin chains only", r.dir, "not readable")
		} else {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
					continue
				}
				path := filepath.Join(r.dir, entry.Name())
				cfg, loadErr := loadDocument(path)
				if loadErr != nil {
					return loadErr
				}
				loaded[cfg.ChainID] = cfg
			}
		}
	}

	resolved, e := resolveExtends(loaded)
	if e != nil {
		return e
	}

	// Compile up front; a bad regex should fail the reload, not a worker.
	for _, cfg := range resolved {
		if _, markerErr := cfg.RegionMarkers(); markerErr != nil {
			return markerErr
		}
		cfg.FeePatterns()
	}

	r.mu.Lock()
	r.configs = resolved
	r.mu.Unlock()

	tl.Log(tl.Info, palette.Green, "Store config registry %s with '%s' chains", "loaded", fmt.Sprintf("%d", len(resolved)))
	return nil
}

// Get returns the config for a chain id, or nil when unknown.
func (r *Registry) Get(chainID string) *StoreConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configs[chainID]
}

// ChainIDs lists the known chains, sorted, for logs and diagnostics.
func (r *Registry) ChainIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

/*
ResolveByMerchant maps an OCR merchant name (or a raw-text fragment) to the
chain whose primary name or alias it contains, case-insensitively. The
longest matching alias wins so "COSTCO WHOLESALE CANADA" prefers the CA
chain over a bare "COSTCO" alias of the US one.
*/
func (r *Registry) ResolveByMerchant(merchantName string) *StoreConfig {
	needle := strings.ToUpper(strings.TrimSpace(merchantName))
	if needle == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *StoreConfig
	bestLen := 0
	for _, cfg := range r.configs {
		names := append([]string{cfg.Identification.PrimaryName}, cfg.Identification.Aliases...)
		for _, name := range names {
			upper := strings.ToUpper(strings.TrimSpace(name))
			if upper == "" || !strings.Contains(needle, upper) {
				continue
			}
			if len(upper) > bestLen {
				best = cfg
				bestLen = len(upper)
			}
		}
	}
	return best
}

func loadDocument(path string) (cfg *StoreConfig, e *xerr.Error) {
	fileBytes, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, xerr.NewError(readErr, "read store config document", path)
	}

	cfg = &StoreConfig{}
	if parseErr := json.Unmarshal(fileBytes, cfg); parseErr != nil {
		return nil, xerr.NewError(parseErr, "parse store config JSON", path)
	}
	if strings.TrimSpace(cfg.ChainID) == "" {
		return nil, xerr.NewError(fmt.Errorf("missing chain_id"), "store config document has no chain_id", path)
	}
	return cfg, nil
}

/*
resolveExtends merges every document onto its (transitive) parent. Cycles
and dangling parents fail the load.
*/
func resolveExtends(docs map[string]*StoreConfig) (map[string]*StoreConfig, *xerr.Error) {
	resolved := make(map[string]*StoreConfig, len(docs))

	var resolve func(id string, trail []string) (*StoreConfig, *xerr.Error)
	resolve = func(id string, trail []string) (*StoreConfig, *xerr.Error) {
		if cfg, done := resolved[id]; done {
			return cfg, nil
		}
		for _, seen := range trail {
			if seen == id {
				return nil, xerr.NewError(fmt.Errorf("cycle at '%s'", id), "store config extends cycle", append(trail, id))
			}
		}

		doc, exists := docs[id]
		if !exists {
			return nil, xerr.NewError(fmt.Errorf("unknown parent"), "store config extends unknown chain", id)
		}
		if doc.Extends == "" {
			resolved[id] = doc
			return doc, nil
		}

		parent, e := resolve(doc.Extends, append(trail, id))
		if e != nil {
			return nil, e
		}

		merged := mergeConfigs(parent, doc)
		resolved[id] = merged
		return merged, nil
	}

	for id := range docs {
		if _, e := resolve(id, nil); e != nil {
			return nil, e
		}
	}
	return resolved, nil
}

// mergeConfigs overlays child on parent; child fields win when set.
func mergeConfigs(parent, child *StoreConfig) *StoreConfig {
	merged := *parent
	merged.ChainID = child.ChainID
	merged.Extends = child.Extends
	merged.compiledMarkers = nil
	merged.compiledFees = nil

	if child.LayoutFamily != "" {
		merged.LayoutFamily = child.LayoutFamily
	}
	if child.Identification.PrimaryName != "" {
		merged.Identification.PrimaryName = child.Identification.PrimaryName
	}
	if len(child.Identification.Aliases) > 0 {
		merged.Identification.Aliases = child.Identification.Aliases
	}
	if child.Pipeline.SkewCorrection != nil {
		merged.Pipeline.SkewCorrection = child.Pipeline.SkewCorrection
	}
	if child.Pipeline.RowEpsilon > 0 {
		merged.Pipeline.RowEpsilon = child.Pipeline.RowEpsilon
	}
	if child.Pipeline.SplitOnSecondAmount != nil {
		merged.Pipeline.SplitOnSecondAmount = child.Pipeline.SplitOnSecondAmount
	}
	if child.Pipeline.StageTimeoutSecond > 0 {
		merged.Pipeline.StageTimeoutSecond = child.Pipeline.StageTimeoutSecond
	}
	if len(child.Items.SectionHeaders) > 0 {
		merged.Items.SectionHeaders = child.Items.SectionHeaders
	}
	if len(child.Items.Layout.AmountSuffixes) > 0 {
		merged.Items.Layout.AmountSuffixes = child.Items.Layout.AmountSuffixes
	}
	if child.Items.Layout.AmountColumnCenter > 0 {
		merged.Items.Layout.AmountColumnCenter = child.Items.Layout.AmountColumnCenter
	}
	if child.Items.Layout.AmountColumnTolerance > 0 {
		merged.Items.Layout.AmountColumnTolerance = child.Items.Layout.AmountColumnTolerance
	}
	if len(child.WashData.FeeRowPatterns) > 0 {
		merged.WashData.FeeRowPatterns = child.WashData.FeeRowPatterns
	}
	if child.Validation.Tolerances.Math > 0 {
		merged.Validation.Tolerances.Math = child.Validation.Tolerances.Math
	}
	if child.Validation.Tolerances.Sum > 0 {
		merged.Validation.Tolerances.Sum = child.Validation.Tolerances.Sum
	}
	if child.Markers.Member != "" {
		merged.Markers.Member = child.Markers.Member
	}
	if child.Markers.Subtotal != "" {
		merged.Markers.Subtotal = child.Markers.Subtotal
	}
	if child.Markers.Tax != "" {
		merged.Markers.Tax = child.Markers.Tax
	}
	if child.Markers.Total != "" {
		merged.Markers.Total = child.Markers.Total
	}
	if child.Markers.ExcludeTotal != "" {
		merged.Markers.ExcludeTotal = child.Markers.ExcludeTotal
	}
	if child.Markers.ItemStart != "" {
		merged.Markers.ItemStart = child.Markers.ItemStart
	}
	return &merged
}
