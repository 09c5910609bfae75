package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReceiptJSON(t *testing.T) {
	response := `{
		"merchant_name": "Costco Wholesale Canada",
		"items": [
			{"product_name": "ORG SPINACH", "line_total": 6.99, "quantity": null,
			 "unit_price": 8.99, "unit": null, "sku": "369985", "raw_text": null,
			 "on_sale": true, "confidence": 0.9}
		],
		"subtotal": 11.98,
		"taxes": [{"label": "GST", "amount": 0.63}],
		"total": 12.96
	}`

	parsed, e := DecodeReceiptJSON(response)
	require.Nil(t, e)

	assert.True(t, parsed.Success)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "369985", parsed.Items[0].Sku)
	assert.True(t, parsed.Validation.HasSubtotal)
	assert.True(t, parsed.Validation.HasTotal)
	assert.NotNil(t, parsed.ErrorLog, "error log is always materialized")
}

func TestDecodeReceiptJSONStripsCodeFence(t *testing.T) {
	fenced := "```json\n{\"merchant_name\": \"T&T Supermarket\", \"items\": []}\n```"

	parsed, e := DecodeReceiptJSON(fenced)
	require.Nil(t, e)
	assert.Equal(t, "T&T Supermarket", parsed.MerchantName)
	assert.False(t, parsed.Success, "no items means no success")

	bare := "```\n{\"merchant_name\": \"Trader Joe's\", \"items\": []}\n```"
	parsed, e = DecodeReceiptJSON(bare)
	require.Nil(t, e)
	assert.Equal(t, "Trader Joe's", parsed.MerchantName)
}

func TestDecodeReceiptJSONInvalid(t *testing.T) {
	_, e := DecodeReceiptJSON("The receipt shows a purchase of spinach.")
	require.NotNil(t, e)
	assert.True(t, IsInvalidJSON(e))
}

func TestIsInvalidJSONDistinguishesTransportErrors(t *testing.T) {
	assert.False(t, IsInvalidJSON(nil))

	_, e := DecodeReceiptJSON("{broken")
	require.NotNil(t, e)
	assert.True(t, IsInvalidJSON(e))
}

func TestStripCodeFencePassthrough(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
}
