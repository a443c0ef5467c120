package domain

import (
	"context"
)

// CatalogStore holds the full product catalog. Shard layout is an implementation detail.
type CatalogStore interface {
	LoadAll(ctx context.Context) ([]Product, error)
	ReplaceAll(ctx context.Context, products []Product) error
}

// Document is a stored document and its id
type Document struct {
	ID   string
	Data map[string]any
}

// WriteOp is the kind of a batched write
type WriteOp int

const (
	OpSet WriteOp = iota
	OpUpdate
	OpDelete
)

// DocumentWrite is one write inside a batch
type DocumentWrite struct {
	Op    WriteOp
	ID    string
	Data  map[string]any
	Merge bool
}

// DocumentStore is the remote record store. CommitBatch applies all writes or none.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	CommitBatch(ctx context.Context, collection string, writes []DocumentWrite) error
	Close() error
}

// PricingSource yields pricing rows from an external sheet
type PricingSource interface {
	Rows(ctx context.Context) ([]PricingRow, error)
}
