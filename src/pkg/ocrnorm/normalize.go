package ocrnorm

import (
	"fmt"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/geometry"
	"ledgerlens/src/pkg/money"
)

// TrustedHintConfidence is the floor above which an OCR entity may override
// parser/LLM output after a successful sum check.
const TrustedHintConfidence = 0.95

// Metadata records which provider produced a normalized result.
type Metadata struct {
	OcrProvider string `json:"ocr_provider"`
}

// LineItem is a provider-suggested item line (entity-form providers only).
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	LineTotal   float64 `json:"line_total,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

/*
NormalizedOcr is the single schema every provider output converts into.

Text-only providers leave Entities, LineItems and Blocks empty; block-form
providers fill Blocks; entity-form providers additionally fill Entities and
LineItems.
*/
type NormalizedOcr struct {
	RawText      string                 `json:"raw_text"`
	MerchantName string                 `json:"merchant_name,omitempty"`
	Entities     map[string]EntityValue `json:"entities,omitempty"`
	LineItems    []LineItem             `json:"line_items,omitempty"`
	Blocks       []geometry.TextBlock   `json:"blocks,omitempty"`
	Metadata     Metadata               `json:"metadata"`
}

/*
ProviderOutput is the raw shape a provider hands the normalizer. Exactly one
form is populated:
  - block-form: Blocks (geometry per token)
  - entity-form: Blocks plus Entities/LineItems
  - text-only: RawText
*/
type ProviderOutput struct {
	Blocks       []geometry.TextBlock
	Entities     map[string]EntityValue
	LineItems    []LineItem
	RawText      string
	MerchantName string
}

/*
Normalize converts any provider output into the unified schema:

 1. Blocks get sequential block_ids, derived centers and a deterministic
    (page, y, x) order.
 2. Amount flags are derived where the provider left them unset: a token is
    an amount when it parses as money AND carries a decimal point or a
    trailing minus (bare integers stay SKUs).
 3. RawText falls back to the row-joined block text when absent.
 4. MerchantName falls back to a supplier/vendor entity when absent.
*/
func Normalize(output ProviderOutput, providerTag string) *NormalizedOcr {
	tl.Log(tl.Info, palette.Blue, "%s OCR output from provider '%s' ('%s' blocks)", "Normalizing", providerTag, fmt.Sprintf("%d", len(output.Blocks)))

	blocks := geometry.NormalizeBlocks(output.Blocks)
	for i := range blocks {
		blocks[i].BlockID = i
		if blocks[i].IsAmount {
			continue
		}
		if value, isAmount := deriveAmount(blocks[i].Text); isAmount {
			blocks[i].IsAmount = true
			blocks[i].Amount = value
		}
	}

	rawText := output.RawText
	if rawText == "" && len(blocks) > 0 {
		rows := geometry.BuildRows(blocks, geometry.RowOptions{})
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, row.Text)
		}
		rawText = strings.Join(lines, "\n")
	}

	merchant := output.MerchantName
	if merchant == "" {
		for _, key := range []string{"VENDOR_NAME", "SUPPLIER_NAME", "MERCHANT_NAME"} {
			if entity, exists := output.Entities[key]; exists && entity.Text != "" {
				merchant = entity.Text
				break
			}
		}
	}

	normalized := &NormalizedOcr{
		RawText:      rawText,
		MerchantName: merchant,
		Entities:     output.Entities,
		LineItems:    output.LineItems,
		Blocks:       blocks,
		Metadata:     Metadata{OcrProvider: providerTag},
	}

	tl.Log(tl.Info1, palette.Green, "%s OCR output from provider '%s' (raw text length '%s')", "Normalized", providerTag, fmt.Sprintf("%d", len(rawText)))
	return normalized
}

// deriveAmount applies the money heuristic for unflagged tokens.
func deriveAmount(token string) (value float64, isAmount bool) {
	trimmed := strings.TrimSpace(token)
	if !strings.Contains(trimmed, ".") && !strings.HasSuffix(trimmed, "-") {
		return 0, false
	}
	return money.ParseAmount(trimmed)
}

// UnifiedInfo is the compact view the workflow threads through the LLM and
// the sum checker.
type UnifiedInfo struct {
	RawText      string                 `json:"raw_text"`
	MerchantName string                 `json:"merchant_name,omitempty"`
	TrustedHints map[string]EntityValue `json:"trusted_hints,omitempty"`
	Total        *float64               `json:"total,omitempty"`
	LineItems    []LineItem             `json:"line_items,omitempty"`
}

/*
ExtractUnifiedInfo filters the normalized result down to what downstream
stages trust: only entities at or above TrustedHintConfidence survive as
hints, and a TOTAL hint is surfaced as a typed field.
*/
func (n *NormalizedOcr) ExtractUnifiedInfo() UnifiedInfo {
	info := UnifiedInfo{
		RawText:      n.RawText,
		MerchantName: n.MerchantName,
		LineItems:    n.LineItems,
	}

	for key, entity := range n.Entities {
		if entity.Confidence < TrustedHintConfidence {
			continue
		}
		if info.TrustedHints == nil {
			info.TrustedHints = make(map[string]EntityValue)
		}
		info.TrustedHints[key] = entity

		if key == "TOTAL" && entity.NormalizedMoney != nil {
			info.Total = entity.NormalizedMoney
		}
	}

	return info
}
