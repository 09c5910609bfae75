package parsers

import (
	"fmt"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/storecfg"
)

/*
Parser is the common contract of every layout family.

Parse never raises for bad receipt data: a receipt the parser cannot read
comes back with Success=false and a populated ErrorLog. *xerr.Error is
reserved for invariant violations (nil config, unknown family).
*/
type Parser interface {
	Family() storecfg.LayoutFamily
	Parse(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (*ParsedReceipt, *xerr.Error)
}

/*
ForFamily maps the closed layout-family enumeration onto its parser. Parsers
are stateless (their regexes are package-level, compiled once), so the same
instance serves every worker.
*/
func ForFamily(family storecfg.LayoutFamily) (parser Parser, e *xerr.Error) {
	switch family {
	case storecfg.FamilyCostcoCADigital:
		return costcoCADigitalParser{}, nil
	case storecfg.FamilyCostcoUSDigital:
		return costcoUSDigitalParser{}, nil
	case storecfg.FamilyCostcoUSPhysical:
		return costcoUSPhysicalParser{}, nil
	case storecfg.FamilyTNT:
		return tntParser{}, nil
	case storecfg.FamilyTraderJoes:
		return traderJoesParser{}, nil
	default:
		return nil, xerr.NewError(fmt.Errorf("unknown layout family"), "resolve parser for layout family", string(family))
	}
}

/*
Run is the dispatch entry the workflow calls: resolve the family parser from
the chain config and run it over the blocks.
*/
func Run(blocks []geometry.TextBlock, cfg *storecfg.StoreConfig, merchantName string) (parsed *ParsedReceipt, e *xerr.Error) {
	if cfg == nil {
		return nil, xerr.NewError(fmt.Errorf("nil store config"), "run store parser", merchantName)
	}

	parser, e := ForFamily(cfg.LayoutFamily)
	if e != nil {
		return nil, e
	}

	tl.Log(
		tl.Notice, palette.BlueBold, "%s '%s' parser over '%s' blocks (chain '%s')",
		"Running", cfg.LayoutFamily, fmt.Sprintf("%d", len(blocks)), cfg.ChainID,
	)

	parsed, e = parser.Parse(blocks, cfg, merchantName)
	if e != nil {
		return nil, e
	}

	if parsed.Success {
		tl.Log(
			tl.Notice1, palette.GreenBold, "%s '%s' parser: '%s' items, subtotal present: %s, total present: %s",
			"Finished", cfg.LayoutFamily, fmt.Sprintf("%d", len(parsed.Items)),
			fmt.Sprintf("%t", parsed.Subtotal != nil), fmt.Sprintf("%t", parsed.Total != nil),
		)
	} else {
		tl.Log(
			tl.Notice1, palette.PurpleBold, "%s '%s' parser without items: %s",
			"Finished", cfg.LayoutFamily, parsed.ErrorLog,
		)
	}
	return parsed, nil
}
