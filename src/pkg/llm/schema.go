package llm

/*
receiptSchemaProperties is the JSON output schema the model is forced to
follow. It mirrors parsers.ParsedReceipt; nullable fields use ["...",
"null"] union types so the model can express absence instead of inventing
zeros.
*/
func receiptSchemaProperties() map[string]any {
	nullableNumber := map[string]any{"type": []string{"number", "null"}}
	nullableString := map[string]any{"type": []string{"string", "null"}}

	labeledAmount := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label":  map[string]any{"type": "string"},
			"amount": map[string]any{"type": "number"},
		},
		"required":             []string{"label", "amount"},
		"additionalProperties": false,
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_name": map[string]any{"type": "string"},
			"line_total":   map[string]any{"type": "number", "description": "Final price of the line, discounts applied. Negative only on a standalone discount line."},
			"quantity":     nullableNumber,
			"unit_price":   nullableNumber,
			"unit":         nullableString,
			"sku":          nullableString,
			"raw_text":     nullableString,
			"on_sale":      map[string]any{"type": "boolean"},
			"confidence":   map[string]any{"type": "number"},
		},
		"required": []string{
			"product_name", "line_total", "quantity", "unit_price",
			"unit", "sku", "raw_text", "on_sale", "confidence",
		},
		"additionalProperties": false,
	}

	fieldConflict := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field":        map[string]any{"type": "string"},
			"parsed_value": map[string]any{"type": "string"},
			"hint_value":   map[string]any{"type": "string"},
		},
		"required":             []string{"field", "parsed_value", "hint_value"},
		"additionalProperties": false,
	}

	return map[string]any{
		"merchant_name":  map[string]any{"type": "string"},
		"store_chain_id": nullableString,
		"address":        nullableString,
		"purchase_date":  nullableString,
		"purchase_time":  nullableString,
		"currency":       nullableString,
		"items":          map[string]any{"type": "array", "items": item},
		"subtotal":       nullableNumber,
		"taxes":          map[string]any{"type": "array", "items": labeledAmount},
		"fees":           map[string]any{"type": "array", "items": labeledAmount},
		"total":          nullableNumber,
		"payment_method": nullableString,
		"card_last4":     nullableString,
		"membership_id":  nullableString,
		"resolution": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field_conflicts":    map[string]any{"type": "array", "items": fieldConflict},
				"resolved_conflicts": map[string]any{"type": "array", "items": fieldConflict},
			},
			"required":             []string{"field_conflicts", "resolved_conflicts"},
			"additionalProperties": false,
		},
	}
}
