package domain

import (
	"encoding/json"
	"fmt"
)

// ToDocument converts a value into the generic map form the document store accepts.
// It goes through JSON so the stored shape is identical to the shard files.
func ToDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromDocument decodes a stored document into v
func FromDocument(doc map[string]any, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ProductFromDocument decodes a product document; the document id becomes the record id
func ProductFromDocument(doc Document) (Product, error) {
	var p Product
	if err := FromDocument(doc.Data, &p); err != nil {
		return Product{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	p.ID = doc.ID
	return p, nil
}

// MergeFields merges src into dst. Nested maps are merged key by key, everything else is replaced.
func MergeFields(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				MergeFields(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// CopyDocument returns a deep copy of a decoded document
func CopyDocument(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyDocument(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
