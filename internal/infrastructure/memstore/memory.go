package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain"
)

type collection map[string]map[string]any

// MemoryStore is a thread-safe in-memory document store
type MemoryStore struct {
	data  map[string]collection
	mutex sync.RWMutex
	now   func() time.Time
}

// NewMemoryStore creates a new in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]collection),
		now:  time.Now,
	}
}

// Get retrieves one document
func (s *MemoryStore) Get(ctx context.Context, coll, id string) (*domain.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	doc, exists := s.data[coll][id]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, coll, id)
	}
	return &domain.Document{ID: id, Data: domain.CopyDocument(doc)}, nil
}

// List returns every document of a collection ordered by id
func (s *MemoryStore) List(ctx context.Context, coll string) ([]domain.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	docs := make([]domain.Document, 0, len(s.data[coll]))
	for id, doc := range s.data[coll] {
		docs = append(docs, domain.Document{ID: id, Data: domain.CopyDocument(doc)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Set stores a document. With merge, nested maps are merged into the existing document.
func (s *MemoryStore) Set(ctx context.Context, coll, id string, data map[string]any, merge bool) error {
	return s.CommitBatch(ctx, coll, []domain.DocumentWrite{{Op: domain.OpSet, ID: id, Data: data, Merge: merge}})
}

// Update overwrites top-level fields of an existing document
func (s *MemoryStore) Update(ctx context.Context, coll, id string, fields map[string]any) error {
	return s.CommitBatch(ctx, coll, []domain.DocumentWrite{{Op: domain.OpUpdate, ID: id, Data: fields}})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *MemoryStore) Delete(ctx context.Context, coll, id string) error {
	return s.CommitBatch(ctx, coll, []domain.DocumentWrite{{Op: domain.OpDelete, ID: id}})
}

// CommitBatch applies writes to a staged copy of the collection and swaps it in only when
// every write succeeded
func (s *MemoryStore) CommitBatch(ctx context.Context, coll string, writes []domain.DocumentWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	staged := make(collection, len(s.data[coll]))
	for id, doc := range s.data[coll] {
		staged[id] = doc
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	for _, w := range writes {
		switch w.Op {
		case domain.OpSet:
			data, err := normalize(w.Data, stamp)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", coll, w.ID, err)
			}
			if existing, ok := staged[w.ID]; ok && w.Merge {
				merged := domain.CopyDocument(existing)
				domain.MergeFields(merged, data)
				data = merged
			}
			staged[w.ID] = data
		case domain.OpUpdate:
			existing, ok := staged[w.ID]
			if !ok {
				return fmt.Errorf("%w: %s/%s", domain.ErrDocumentNotFound, coll, w.ID)
			}
			fields, err := normalize(w.Data, stamp)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", coll, w.ID, err)
			}
			updated := domain.CopyDocument(existing)
			for k, v := range fields {
				updated[k] = v
			}
			staged[w.ID] = updated
		case domain.OpDelete:
			delete(staged, w.ID)
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}

	s.data[coll] = staged
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// Size returns the number of documents in a collection
func (s *MemoryStore) Size(coll string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data[coll])
}

// Clear removes every collection
func (s *MemoryStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = make(map[string]collection)
}

// normalize serializes to JSON and back so stored values have the same shape a remote
// backend would return, and resolves the server timestamp placeholder
func normalize(data map[string]any, stamp string) (map[string]any, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var stored map[string]any
	if err := json.Unmarshal(jsonData, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		stored = make(map[string]any)
	}

	for k, v := range stored {
		if v == domain.ServerTimestamp {
			stored[k] = stamp
		}
	}
	return stored, nil
}
