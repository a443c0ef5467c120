package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/catalogsync/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Store is a document store kept in a local SQLite file. Each document is one JSON row.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema exists
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreSetup, path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", domain.ErrStoreSetup, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Get retrieves one document
func (s *Store) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}

	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	return &domain.Document{ID: id, Data: data}, nil
}

// List returns every document of a collection ordered by id
func (s *Store) List(ctx context.Context, collection string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		docs = append(docs, domain.Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// Set stores a document, merging into the existing one when merge is set
func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return s.CommitBatch(ctx, collection, []domain.DocumentWrite{{Op: domain.OpSet, ID: id, Data: data, Merge: merge}})
}

// Update overwrites top-level fields of an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.CommitBatch(ctx, collection, []domain.DocumentWrite{{Op: domain.OpUpdate, ID: id, Data: fields}})
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.CommitBatch(ctx, collection, []domain.DocumentWrite{{Op: domain.OpDelete, ID: id}})
}

// CommitBatch applies all writes in one transaction
func (s *Store) CommitBatch(ctx context.Context, collection string, writes []domain.DocumentWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	stamp := now.Format(time.RFC3339)
	for _, w := range writes {
		switch w.Op {
		case domain.OpSet:
			data := resolveTimestamps(w.Data, stamp)
			if w.Merge {
				existing, err := load(ctx, tx, collection, w.ID)
				if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
					return err
				}
				if existing != nil {
					domain.MergeFields(existing, data)
					data = existing
				}
			}
			if err := upsert(ctx, tx, collection, w.ID, data, now); err != nil {
				return err
			}
		case domain.OpUpdate:
			existing, err := load(ctx, tx, collection, w.ID)
			if err != nil {
				return err
			}
			for k, v := range resolveTimestamps(w.Data, stamp) {
				existing[k] = v
			}
			if err := upsert(ctx, tx, collection, w.ID, existing, now); err != nil {
				return err
			}
		case domain.OpDelete:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, w.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}

	return tx.Commit()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func load(ctx context.Context, tx *sql.Tx, collection, id string) (map[string]any, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func upsert(ctx context.Context, tx *sql.Tx, collection, id string, data map[string]any, now time.Time) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), now)
	return err
}

func decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return data, nil
}

func resolveTimestamps(data map[string]any, stamp string) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == domain.ServerTimestamp {
			v = stamp
		}
		out[k] = v
	}
	return out
}
