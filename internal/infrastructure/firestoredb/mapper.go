package firestoredb

import (
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/catalogsync/backend/internal/domain"
)

// ToFirestore prepares a document for writing. The server timestamp placeholder becomes the
// Firestore sentinel at any depth.
func ToFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) any {
	switch t := v.(type) {
	case string:
		if t == domain.ServerTimestamp {
			return firestore.ServerTimestamp
		}
		return t
	case map[string]any:
		return ToFirestore(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = toValue(t[i])
		}
		return out
	default:
		return v
	}
}

// FromFirestore converts a snapshot's data into plain JSON-compatible values.
// Timestamps become RFC 3339 strings and references become their path.
func FromFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *firestore.DocumentRef:
		if t == nil {
			return nil
		}
		return t.Path
	case int64:
		return float64(t)
	case map[string]any:
		return FromFirestore(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Updates turns top-level fields into Firestore updates, in key order
func Updates(fields map[string]any) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: toValue(fields[k])})
	}
	return updates
}
