package openbanking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadAccessors(t *testing.T) {
	var p Payload
	require.NoError(t, DecodeJSON([]byte(`{
		"id": "tx-1",
		"amount": -12.34,
		"text": "7,50",
		"count": 3,
		"merchant": {"name": "  Padaria  ", "details": {"cnpj": "123"}},
		"empty": "",
		"nothing": null
	}`), &p))

	assert.Equal(t, "tx-1", p.String("id"))
	assert.Equal(t, "Padaria", p.String("empty", "nothing", "merchant.name"))
	assert.Equal(t, "123", p.String("merchant.details.cnpj"))
	assert.Equal(t, "3", p.String("count"))
	assert.Equal(t, "", p.String("merchant", "missing.path"))

	amount, ok := p.Decimal("amount")
	require.True(t, ok)
	assert.Equal(t, "-12.34", amount.String())

	text, ok := p.Decimal("text")
	require.True(t, ok)
	assert.Equal(t, "7.5", text.String())

	_, ok = p.Decimal("merchant", "empty", "missing")
	assert.False(t, ok)

	merchant, ok := p.Object("merchant")
	require.True(t, ok)
	assert.Equal(t, "Padaria", merchant.String("name"))

	assert.IsType(t, json.Number(""), p["amount"])
}
