package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ServerTimestamp is the placeholder a record carries when the store should stamp the write time
const ServerTimestamp = "__SERVER_TIMESTAMP__"

// Product is a catalog record. Attributes other than the named fields are kept in Extra
// and written back untouched.
type Product struct {
	ID          string
	ProductID   string
	Title       string
	Category    string
	SubCategory string
	SKUs        []SKU
	CreatedAt   string
	UpdatedAt   string
	Extra       map[string]any

	hasSKUs bool
}

// SKU is a stock-keeping unit entry carrying price and MRP
type SKU struct {
	Price float64
	MRP   float64
	Extra map[string]any

	hasPrice bool
	hasMRP   bool
}

// Placement is a (category, sub_category) pair
type Placement struct {
	Category    string `json:"category" yaml:"category"`
	SubCategory string `json:"sub_category" yaml:"sub_category"`
}

func (p Placement) String() string {
	return p.Category + " > " + p.SubCategory
}

// Key returns the identifier used to address the record in the document store
func (p *Product) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.ProductID
}

// Placement returns the record's current (category, sub_category)
func (p *Product) Placement() Placement {
	return Placement{Category: p.Category, SubCategory: p.SubCategory}
}

// Place moves the record to the given placement
func (p *Product) Place(pl Placement) {
	p.Category = pl.Category
	p.SubCategory = pl.SubCategory
}

// Clone returns a copy that shares no slices or top-level maps with p
func (p Product) Clone() Product {
	out := p
	if p.SKUs != nil {
		out.SKUs = make([]SKU, len(p.SKUs))
		for i, s := range p.SKUs {
			out.SKUs[i] = s
			out.SKUs[i].Extra = cloneMap(s.Extra)
		}
	}
	out.Extra = cloneMap(p.Extra)
	return out
}

// SetPrices overwrites the SKU's price and MRP
func (s *SKU) SetPrices(price, mrp float64) {
	s.Price, s.MRP = price, mrp
	s.hasPrice, s.hasMRP = true, true
}

// HasPrice reports whether the SKU carried a numeric price
func (s *SKU) HasPrice() bool { return s.hasPrice }

var productFields = map[string]bool{
	"id": true, "product_id": true, "title": true, "category": true,
	"sub_category": true, "product_skus": true, "created_at": true, "updated_at": true,
}

// UnmarshalJSON decodes a record, keeping unknown attributes in Extra
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{}
	var err error
	if p.ID, err = stringField(raw, "id"); err != nil {
		return err
	}
	if p.ProductID, err = stringField(raw, "product_id"); err != nil {
		return err
	}
	if p.Title, err = stringField(raw, "title"); err != nil {
		return err
	}
	if p.Category, err = stringField(raw, "category"); err != nil {
		return err
	}
	if p.SubCategory, err = stringField(raw, "sub_category"); err != nil {
		return err
	}
	if p.CreatedAt, err = stringField(raw, "created_at"); err != nil {
		return err
	}
	if p.UpdatedAt, err = stringField(raw, "updated_at"); err != nil {
		return err
	}

	if v, ok := raw["product_skus"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &p.SKUs); err != nil {
			return fmt.Errorf("product_skus: %w", err)
		}
		p.hasSKUs = true
	}

	for k, v := range raw {
		if productFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = val
	}
	return nil
}

// MarshalJSON encodes the record with its preserved attributes
func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		out[k] = v
	}
	setString(out, "id", p.ID)
	setString(out, "product_id", p.ProductID)
	out["title"] = p.Title
	out["category"] = p.Category
	out["sub_category"] = p.SubCategory
	setString(out, "created_at", p.CreatedAt)
	setString(out, "updated_at", p.UpdatedAt)
	if p.hasSKUs || len(p.SKUs) > 0 {
		skus := p.SKUs
		if skus == nil {
			skus = []SKU{}
		}
		out["product_skus"] = skus
	}
	return marshalUnescaped(out)
}

// UnmarshalJSON decodes a SKU entry. Price and MRP may be numbers or numeric strings.
func (s *SKU) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = SKU{}
	for k, v := range raw {
		switch k {
		case "price":
			if f, ok := toFloat(v); ok {
				s.Price, s.hasPrice = f, true
				continue
			}
		case "mrp":
			if f, ok := toFloat(v); ok {
				s.MRP, s.hasMRP = f, true
				continue
			}
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the SKU entry with its preserved attributes
func (s SKU) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.hasPrice {
		out["price"] = s.Price
	}
	if s.hasMRP {
		out["mrp"] = s.MRP
	}
	return marshalUnescaped(out)
}

// marshalUnescaped encodes without HTML escaping; callers that want escaping get it from their own encoder
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, error) {
	v, ok := raw[key]
	if !ok || string(v) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	// ids are occasionally numeric in older exports
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%s: expected string, got %s", key, string(v))
}

func setString(out map[string]any, key, val string) {
	if val != "" {
		out[key] = val
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
