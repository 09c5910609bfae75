package ocrnorm

import (
	"strings"
	"time"

	"ledgerlens/src/pkg/money"
)

/*
EntityValue is the narrow view of a provider-detected named entity: the raw
text plus whatever normalized forms the adapter could derive. Confidence is
in [0,1] regardless of the provider's native scale.
*/
type EntityValue struct {
	Text            string   `json:"value"`
	Confidence      float64  `json:"confidence"`
	NormalizedMoney *float64 `json:"normalized_money,omitempty"`
	NormalizedDate  *string  `json:"normalized_date,omitempty"`
}

// moneyEntityKeys are the entity types whose value should parse as money.
var moneyEntityKeys = map[string]bool{
	"TOTAL":      true,
	"SUBTOTAL":   true,
	"TAX":        true,
	"AMOUNT_DUE": true,
}

// dateLayouts covers the receipt date formats the providers emit.
var dateLayouts = []string{
	"2006-01-02", "01/02/2006", "1/2/2006", "01/02/06", "2006/01/02", "Jan 2, 2006",
}

/*
NewEntityValue builds an EntityValue from adapter raw material, deriving the
normalized money/date forms where the entity key calls for them.
*/
func NewEntityValue(key, text string, confidence float64) EntityValue {
	entity := EntityValue{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
	}

	if moneyEntityKeys[strings.ToUpper(key)] {
		if value, ok := money.ParseAmount(entity.Text); ok {
			entity.NormalizedMoney = &value
		}
	}

	if strings.Contains(strings.ToUpper(key), "DATE") {
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, entity.Text); err == nil {
				normalized := parsed.Format("2006-01-02")
				entity.NormalizedDate = &normalized
				break
			}
		}
	}

	return entity
}
