package shardfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

const (
	// DefaultShardCount is the number of files the catalog is split across
	DefaultShardCount = 5
	// DefaultPattern names shard files; %d is the 1-based shard number
	DefaultPattern = "firebase-products-part%d.json"
)

// Store is a CatalogStore over a fixed number of JSON shard files in one directory
type Store struct {
	dir     string
	count   int
	pattern string
}

// New creates a shard store. Zero values fall back to the defaults.
func New(dir string, count int, pattern string) *Store {
	if count <= 0 {
		count = DefaultShardCount
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Store{dir: dir, count: count, pattern: pattern}
}

// Path returns the file path of shard n (1-based)
func (s *Store) Path(n int) string {
	return filepath.Join(s.dir, fmt.Sprintf(s.pattern, n))
}

// LoadAll concatenates every shard in shard order. A missing shard is an error: loading a
// partial catalog and writing it back would drop records.
func (s *Store) LoadAll(ctx context.Context) ([]domain.Product, error) {
	log := logger.Component(ctx, "shardfile")

	var products []domain.Product
	for n := 1; n <= s.count; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := s.Path(n)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrShardMissing, path)
		}
		if err != nil {
			return nil, err
		}

		var shard []domain.Product
		if err := json.Unmarshal(data, &shard); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		log.Debug().Str("file", path).Int("records", len(shard)).Msg("shard loaded")
		products = append(products, shard...)
	}

	log.Info().Int("shards", s.count).Int("records", len(products)).Msg("catalog loaded")
	return products, nil
}

// ReplaceAll redistributes products evenly over the shards, the first len%count shards
// taking one extra record, and rewrites every shard. Every shard is encoded to a temp file
// before any is renamed, so a failed encode leaves the previous catalog intact.
func (s *Store) ReplaceAll(ctx context.Context, products []domain.Product) (err error) {
	log := logger.Component(ctx, "shardfile")

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	parts := Split(products, s.count)
	staged := make([]string, 0, len(parts))
	defer func() {
		if err != nil {
			for _, tmp := range staged {
				os.Remove(tmp)
			}
		}
	}()

	for n, part := range parts {
		if err = ctx.Err(); err != nil {
			return err
		}
		var tmp string
		tmp, err = stageShard(s.dir, part)
		if err != nil {
			return fmt.Errorf("write %s: %w", s.Path(n+1), err)
		}
		staged = append(staged, tmp)
	}

	for n, tmp := range staged {
		path := s.Path(n + 1)
		if err = os.Rename(tmp, path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Debug().Str("file", path).Int("records", len(parts[n])).Msg("shard written")
	}

	log.Info().Int("shards", s.count).Int("records", len(products)).Msg("catalog written")
	return nil
}

// Split divides products into count contiguous parts whose sizes differ by at most one
func Split(products []domain.Product, count int) [][]domain.Product {
	parts := make([][]domain.Product, count)
	base, extra := len(products)/count, len(products)%count

	start := 0
	for i := range parts {
		size := base
		if i < extra {
			size++
		}
		parts[i] = products[start : start+size]
		start += size
	}
	return parts
}

// stageShard encodes products into a synced temp file in dir and returns its name
func stageShard(dir string, products []domain.Product) (name string, err error) {
	if products == nil {
		products = []domain.Product{}
	}

	tmp, err := os.CreateTemp(dir, ".shard-*.json")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(products); err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}
