package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_JSONPreservesUnknownAttributes(t *testing.T) {
	input := `{
		"id": "p1",
		"title": "Metal Scale - 12 inches",
		"category": "Stationery",
		"sub_category": "Geometry Sets",
		"brand": "Domes",
		"images": ["a.webp", "b.webp"],
		"product_skus": [{"price": 35, "mrp": 45, "sku_id": "S-1", "stock": 12}],
		"created_at": "2024-05-01T10:00:00Z"
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Geometry Sets", p.SubCategory)
	require.Len(t, p.SKUs, 1)
	assert.Equal(t, 35.0, p.SKUs[0].Price)
	assert.Equal(t, 45.0, p.SKUs[0].MRP)
	assert.Equal(t, "Domes", p.Extra["brand"])

	out, err := json.Marshal(p)
	require.NoError(t, err)

	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(out, &roundTrip))
	assert.Equal(t, "Domes", roundTrip["brand"])
	assert.Equal(t, []any{"a.webp", "b.webp"}, roundTrip["images"])
	assert.Equal(t, "2024-05-01T10:00:00Z", roundTrip["created_at"])

	sku := roundTrip["product_skus"].([]any)[0].(map[string]any)
	assert.Equal(t, "S-1", sku["sku_id"])
	assert.Equal(t, 12.0, sku["stock"])
	assert.Equal(t, 35.0, sku["price"])
}

func TestProduct_KeyFallsBackToProductID(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"product_id": "legacy-7", "title": "Glue Stick"}`), &p))

	assert.Equal(t, "legacy-7", p.Key())
}

func TestSKU_AcceptsNumericStrings(t *testing.T) {
	var s SKU
	require.NoError(t, json.Unmarshal([]byte(`{"price": "40", "mrp": " 50.5 "}`), &s))

	assert.True(t, s.HasPrice())
	assert.Equal(t, 40.0, s.Price)
	assert.Equal(t, 50.5, s.MRP)
}

func TestSKU_NonFiniteStringsStayRaw(t *testing.T) {
	var s SKU
	require.NoError(t, json.Unmarshal([]byte(`{"price": "NaN", "mrp": "Inf"}`), &s))

	assert.False(t, s.HasPrice())
	assert.Equal(t, "NaN", s.Extra["price"])
	assert.Equal(t, "Inf", s.Extra["mrp"])

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price": "NaN", "mrp": "Inf"}`, string(out))
}

func TestSKU_DoesNotInventMissingFields(t *testing.T) {
	var s SKU
	require.NoError(t, json.Unmarshal([]byte(`{"sku_id": "X"}`), &s))

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sku_id": "X"}`, string(out))

	s.SetPrices(40, 50)
	out, err = json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sku_id": "X", "price": 40, "mrp": 50}`, string(out))
}

func TestProduct_CloneIsIndependent(t *testing.T) {
	p := Product{
		ID:    "p1",
		SKUs:  []SKU{{Price: 10, MRP: 12}},
		Extra: map[string]any{"brand": "Camlin"},
	}

	c := p.Clone()
	c.SKUs[0].SetPrices(99, 99)
	c.Extra["brand"] = "Other"

	assert.Equal(t, 10.0, p.SKUs[0].Price)
	assert.Equal(t, "Camlin", p.Extra["brand"])
}

func TestProductFromDocument(t *testing.T) {
	doc := Document{
		ID: "doc-9",
		Data: map[string]any{
			"title":        "AA Battery Pack",
			"category":     "Housekeeping",
			"sub_category": "Power & Batteries",
			"product_skus": []any{map[string]any{"price": 120.0, "mrp": 150.0}},
		},
	}

	p, err := ProductFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "doc-9", p.ID)
	assert.Equal(t, "AA Battery Pack", p.Title)
	require.Len(t, p.SKUs, 1)
	assert.Equal(t, 150.0, p.SKUs[0].MRP)
}
