package usecase

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/catalogsync/backend/internal/domain"
)

// MockCatalogStore is a mock implementation of domain.CatalogStore
type MockCatalogStore struct {
	products     []domain.Product
	loadError    error
	replaceError error
	replaced     []domain.Product
	replaceCalls int
}

func NewMockCatalogStore(products ...domain.Product) *MockCatalogStore {
	return &MockCatalogStore{products: products}
}

func (m *MockCatalogStore) LoadAll(ctx context.Context) ([]domain.Product, error) {
	if m.loadError != nil {
		return nil, m.loadError
	}
	out := make([]domain.Product, len(m.products))
	for i := range m.products {
		out[i] = m.products[i].Clone()
	}
	return out, nil
}

func (m *MockCatalogStore) ReplaceAll(ctx context.Context, products []domain.Product) error {
	m.replaceCalls++
	if m.replaceError != nil {
		return m.replaceError
	}
	m.replaced = products
	m.products = products
	return nil
}

// MockPricingSource is a mock implementation of domain.PricingSource
type MockPricingSource struct {
	rows []domain.PricingRow
	err  error
}

func (m *MockPricingSource) Rows(ctx context.Context) ([]domain.PricingRow, error) {
	return m.rows, m.err
}

// MockDocumentStore is a mock implementation of domain.DocumentStore backed by maps.
// failOnCommit makes the n-th CommitBatch call (1-based) fail.
type MockDocumentStore struct {
	docs         map[string]map[string]map[string]any
	commits      int
	failOnCommit int
	batchSizes   []int
}

func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{docs: make(map[string]map[string]map[string]any)}
}

func (m *MockDocumentStore) collection(name string) map[string]map[string]any {
	c, ok := m.docs[name]
	if !ok {
		c = make(map[string]map[string]any)
		m.docs[name] = c
	}
	return c
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (*domain.Document, error) {
	data, ok := m.collection(collection)[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &domain.Document{ID: id, Data: data}, nil
}

func (m *MockDocumentStore) List(ctx context.Context, collection string) ([]domain.Document, error) {
	var out []domain.Document
	for id, data := range m.collection(collection) {
		out = append(out, domain.Document{ID: id, Data: data})
	}
	return out, nil
}

func (m *MockDocumentStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	c := m.collection(collection)
	if existing, ok := c[id]; ok && merge {
		for k, v := range data {
			existing[k] = v
		}
		return nil
	}
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}
	c[id] = cp
	return nil
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	existing, ok := m.collection(collection)[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, collection, id string) error {
	delete(m.collection(collection), id)
	return nil
}

func (m *MockDocumentStore) CommitBatch(ctx context.Context, collection string, writes []domain.DocumentWrite) error {
	m.commits++
	if m.failOnCommit > 0 && m.commits == m.failOnCommit {
		return fmt.Errorf("backend unavailable")
	}
	m.batchSizes = append(m.batchSizes, len(writes))
	for _, w := range writes {
		var err error
		switch w.Op {
		case domain.OpSet:
			err = m.Set(ctx, collection, w.ID, w.Data, w.Merge)
		case domain.OpUpdate:
			err = m.Update(ctx, collection, w.ID, w.Data)
		case domain.OpDelete:
			err = m.Delete(ctx, collection, w.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDocumentStore) Close() error { return nil }

var legacyLabels = []string{
	"Geometry Sets", "Adhesives", "Cleaning Essentials", "Writing Instruments",
	"Notebooks", "Gift Sets", "Mystery Aisle", "Seasonal",
}

// fakeCatalog generates n products spread over legacy sub_categories, some of them unknown to any table
func fakeCatalog(seed int64, n int) []domain.Product {
	faker := gofakeit.New(seed)
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{
			ID:          faker.UUID(),
			Title:       faker.ProductName(),
			Category:    faker.RandomString([]string{"Stationery", "Office Supplies", "Housekeeping"}),
			SubCategory: faker.RandomString(legacyLabels),
			SKUs: []domain.SKU{
				newSKU(float64(faker.Number(10, 500)), float64(faker.Number(500, 900))),
			},
		}
	}
	return products
}

func newSKU(price, mrp float64) domain.SKU {
	var s domain.SKU
	s.SetPrices(price, mrp)
	return s
}
