package openai

import "sort"

func TextAsPlain(verbosity TextVerbosity) TextOptions {
	return TextOptions{
		Format:    TextFormat{Type: TextFormatTypeText},
		Verbosity: verbosity,
	}
}

func TextAsJSONObject() TextOptions {
	return TextOptions{
		Format: TextFormat{Type: TextFormatTypeJSONObject},
	}
}

func TextAsJSONSchema(name string, schema map[string]any, strict bool) TextOptions {
	return TextOptions{
		Format: TextFormat{
			Type:   TextFormatTypeJSONSchema,
			Name:   name,   // <-- required here
			Schema: schema, // <-- raw schema object
			Strict: &strict,
		},
	}
}

// StrictObj builds a strict JSON Schema "object" where:
// - "properties" = props
// - "additionalProperties" = false
// - "required" = all keys from props (sorted for determinism)
func StrictObj(props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
		"required":             keys,
	}
}
