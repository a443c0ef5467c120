package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/catalogsync/backend/internal/domain"
)

// RemoteCatalog is a CatalogStore over the remote product collection
type RemoteCatalog struct {
	store      domain.DocumentStore
	publisher  *Publisher
	collection string
}

// NewRemoteCatalog creates a catalog view of one product collection
func NewRemoteCatalog(store domain.DocumentStore, publisher *Publisher, collection string) *RemoteCatalog {
	if collection == "" {
		collection = domain.CollectionProducts
	}
	return &RemoteCatalog{store: store, publisher: publisher, collection: collection}
}

// LoadAll lists every product document; the document id becomes the record id.
// Records are ordered by id so repeated pulls produce the same shards.
func (c *RemoteCatalog) LoadAll(ctx context.Context) ([]domain.Product, error) {
	docs, err := c.store.List(ctx, c.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.collection, err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := domain.ProductFromDocument(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// ReplaceAll publishes every product. Documents missing from products are left alone.
func (c *RemoteCatalog) ReplaceAll(ctx context.Context, products []domain.Product) error {
	_, err := c.Publish(ctx, products)
	return err
}

// Publish is ReplaceAll returning the batch report
func (c *RemoteCatalog) Publish(ctx context.Context, products []domain.Product) (*PublishReport, error) {
	return c.publisher.PublishProducts(ctx, c.collection, products)
}
