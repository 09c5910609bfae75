package storecfg

import "ledgerlens/src/pkg/util"

/*
builtinConfigs returns the shipped chain documents. They mirror the JSON
documents under cfg/stores/ so the pipeline works with no config directory
at all; on-disk documents with the same chain_id override these.
*/
func builtinConfigs() map[string]*StoreConfig {
	docs := []*StoreConfig{
		{
			ChainID:      "costco_base",
			LayoutFamily: FamilyCostcoCADigital,
			Identification: Identification{
				PrimaryName: "Costco Wholesale",
				Aliases:     []string{"COSTCO"},
			},
			Pipeline: Pipeline{
				RowEpsilon:         0.012,
				StageTimeoutSecond: 90,
			},
			Items: Items{
				Layout: ItemsLayout{AmountColumnCenter: 0.85, AmountColumnTolerance: 0.08},
			},
			Markers: Markers{
				ExcludeTotal: `SUB\s?TOTAL|ITEMS SOLD|NUMBER OF ITEMS|TOTAL TAX`,
			},
		},
		{
			ChainID:      "costco_ca_digital",
			Extends:      "costco_base",
			LayoutFamily: FamilyCostcoCADigital,
			Identification: Identification{
				PrimaryName: "Costco Wholesale Canada",
				Aliases:     []string{"COSTCO CANADA", "COSTCO WHOLESALE CANADA"},
			},
		},
		{
			ChainID:      "costco_us_digital",
			Extends:      "costco_base",
			LayoutFamily: FamilyCostcoUSDigital,
			Identification: Identification{
				PrimaryName: "Costco Wholesale US",
				Aliases:     []string{"COSTCO WHOLESALE"},
			},
		},
		{
			ChainID:      "costco_us_physical",
			Extends:      "costco_base",
			LayoutFamily: FamilyCostcoUSPhysical,
			Identification: Identification{
				PrimaryName: "Costco Wholesale US",
				Aliases:     []string{"COSTCO WHOLESALE"},
			},
			Pipeline: Pipeline{
				RowEpsilon:          0.008, // dense thermal print
				SplitOnSecondAmount: util.Ptr(true),
			},
		},
		{
			ChainID:      "tnt_base",
			LayoutFamily: FamilyTNT,
			Identification: Identification{
				PrimaryName: "T&T Supermarket",
				Aliases:     []string{"T&T", "T & T SUPERMARKET"},
			},
			Pipeline: Pipeline{
				RowEpsilon:         0.010,
				SkewCorrection:     util.Ptr(true),
				StageTimeoutSecond: 90,
			},
			Items: Items{
				SectionHeaders: []string{"GROCERY", "PRODUCE", "DELI", "BAKERY", "MEAT", "SEAFOOD"},
				Layout: ItemsLayout{
					AmountSuffixes:        []string{"FP", "P", "W"},
					AmountColumnCenter:    0.82,
					AmountColumnTolerance: 0.09,
				},
			},
			WashData: WashData{
				FeeRowPatterns: []string{"Env fee (CRF)", "Bottle deposit"},
			},
		},
		{
			ChainID: "tnt_ca",
			Extends: "tnt_base",
			Identification: Identification{
				PrimaryName: "T&T Supermarket Canada",
			},
			Pipeline: Pipeline{
				SkewCorrection: util.Ptr(false), // CA variant disables skew correction
			},
		},
		{
			ChainID: "tnt_us",
			Extends: "tnt_base",
			Identification: Identification{
				PrimaryName: "T&T Supermarket US",
			},
		},
		{
			ChainID:      "trader_joes",
			LayoutFamily: FamilyTraderJoes,
			Identification: Identification{
				PrimaryName: "Trader Joe's",
				Aliases:     []string{"TRADER JOES", "TRADER JOE S"},
			},
			Pipeline: Pipeline{
				RowEpsilon:         0.012,
				StageTimeoutSecond: 90,
			},
			Items: Items{
				Layout: ItemsLayout{AmountColumnCenter: 0.80, AmountColumnTolerance: 0.10},
			},
			Markers: Markers{
				Total:        `TOTAL PURCHASE`,
				ExcludeTotal: `SUB\s?TOTAL|ITEMS SOLD|BALANCE TO PAY`,
			},
		},
	}

	out := make(map[string]*StoreConfig, len(docs))
	for _, doc := range docs {
		out[doc.ChainID] = doc
	}
	return out
}
