package shardfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
)

func products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		out[i] = domain.Product{
			ID:          fmt.Sprintf("p%02d", i),
			Title:       fmt.Sprintf("Product %d", i),
			Category:    "Stationery",
			SubCategory: "Paper & Office",
		}
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		count int
		want  []int
	}{
		{"even", 10, 5, []int{2, 2, 2, 2, 2}},
		{"remainder goes to leading shards", 12, 5, []int{3, 3, 2, 2, 2}},
		{"fewer records than shards", 3, 5, []int{1, 1, 1, 0, 0}},
		{"empty", 0, 5, []int{0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := Split(products(tt.n), tt.count)
			sizes := make([]int, len(parts))
			for i, p := range parts {
				sizes[i] = len(p)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := New(dir, 0, "")

	in := products(12)
	in[0].Extra = map[string]any{"brand": "Domes", "tags": []any{"school"}}
	require.NoError(t, store.ReplaceAll(ctx, in))

	for n := 1; n <= DefaultShardCount; n++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("firebase-products-part%d.json", n)))
		assert.NoError(t, err)
	}

	out, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 12)
	assert.Equal(t, "p00", out[0].ID)
	assert.Equal(t, "p11", out[11].ID)
	assert.Equal(t, "Domes", out[0].Extra["brand"])
}

func TestStore_ShardFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := New(dir, 2, "part-%d.json")

	require.NoError(t, store.ReplaceAll(ctx, products(3)))

	data, err := os.ReadFile(store.Path(1))
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "[\n  {"), "shard should be indented with two spaces")
	assert.Contains(t, text, `"Paper & Office"`)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)

	data, err = os.ReadFile(store.Path(2))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 1)
}

func TestStore_EmptyShardsAreWritten(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), 3, "")

	require.NoError(t, store.ReplaceAll(ctx, products(1)))

	data, err := os.ReadFile(store.Path(3))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	out, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestStore_MissingShard(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := New(dir, 3, "")
	require.NoError(t, store.ReplaceAll(ctx, products(6)))
	require.NoError(t, os.Remove(store.Path(2)))

	_, err := store.LoadAll(ctx)
	assert.True(t, errors.Is(err, domain.ErrShardMissing))
}

func TestStore_MalformedShard(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir(), 1, "")
	require.NoError(t, os.WriteFile(store.Path(1), []byte(`{"not": "a list"}`), 0o644))

	_, err := store.LoadAll(ctx)
	assert.Error(t, err)
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, New(dir, 2, "").ReplaceAll(ctx, products(4)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_FailedEncodeKeepsPreviousCatalog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := New(dir, 2, "")
	require.NoError(t, store.ReplaceAll(ctx, products(4)))

	next := products(3)
	var bad domain.SKU
	bad.SetPrices(math.NaN(), 10)
	next[2].SKUs = []domain.SKU{bad}

	err := store.ReplaceAll(ctx, next)
	require.Error(t, err)

	out, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 4)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
