package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictObjRequiresEveryProperty(t *testing.T) {
	schema := StrictObj(map[string]any{
		"merchant_name": map[string]any{"type": "string"},
		"items":         map[string]any{"type": "array"},
	})

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []string{"items", "merchant_name"}, schema["required"])
}

func TestStrictObjNilProperties(t *testing.T) {
	schema := StrictObj(nil)
	require.NotNil(t, schema["properties"])
	assert.Empty(t, schema["required"])
}

func TestTextAsJSONSchemaFormat(t *testing.T) {
	options := TextAsJSONSchema("parsed-receipt", StrictObj(nil), true)
	assert.Equal(t, TextFormatTypeJSONSchema, options.Format.Type)
	assert.Equal(t, "parsed-receipt", options.Format.Name)
	require.NotNil(t, options.Format.Strict)
	assert.True(t, *options.Format.Strict)
}
