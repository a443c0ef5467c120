package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
)

func TestSummarize(t *testing.T) {
	products := []domain.Product{
		pricedProduct("p1", "Stapler", 10, 12),
		pricedProduct("p2", "Glue Stick", 10, 12),
		{ID: "p3", Title: "Duster"},
	}
	products[0].Place(domain.Placement{Category: "Stationery", SubCategory: "Adhesives & Tapes"})
	products[1].Place(domain.Placement{Category: "Stationery", SubCategory: "Adhesives & Tapes"})
	products[2].Place(domain.Placement{Category: "Housekeeping", SubCategory: "Cleaning"})

	summary := Summarize(products)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Categories)
	assert.Equal(t, 1, summary.WithoutSKU)
	assert.Len(t, summary.Placements, 2)
}

func TestCatalogSyncService(t *testing.T) {
	ctx := context.Background()

	t.Run("pull replaces local shards with remote records", func(t *testing.T) {
		remoteStore := NewMockDocumentStore()
		_ = remoteStore.Set(ctx, domain.CollectionProducts, "b", map[string]any{"title": "Duster", "category": "Housekeeping"}, false)
		_ = remoteStore.Set(ctx, domain.CollectionProducts, "a", map[string]any{"title": "Stapler", "category": "Stationery"}, false)
		local := NewMockCatalogStore(domain.Product{ID: "old"})

		remote := NewRemoteCatalog(remoteStore, NewPublisher(remoteStore, PublisherConfig{}), "")
		summary, err := NewCatalogSyncService(local, remote).Pull(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.Total)
		require.Len(t, local.replaced, 2)
		assert.Equal(t, "a", local.replaced[0].ID)
		assert.Equal(t, "b", local.replaced[1].ID)
	})

	t.Run("pull dry run leaves shards alone", func(t *testing.T) {
		remoteStore := NewMockDocumentStore()
		_ = remoteStore.Set(ctx, domain.CollectionProducts, "a", map[string]any{"title": "Stapler"}, false)
		local := NewMockCatalogStore()

		remote := NewRemoteCatalog(remoteStore, NewPublisher(remoteStore, PublisherConfig{}), "")
		_, err := NewCatalogSyncService(local, remote).Pull(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, 0, local.replaceCalls)
	})

	t.Run("push publishes every local record", func(t *testing.T) {
		remoteStore := NewMockDocumentStore()
		local := NewMockCatalogStore(fakeCatalog(3, 120)...)
		local.products = append(local.products, domain.Product{Title: "no id"})

		remote := NewRemoteCatalog(remoteStore, NewPublisher(remoteStore, PublisherConfig{}), "")
		report, err := NewCatalogSyncService(local, remote).Push(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 120, report.Committed)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, []int{100, 20}, remoteStore.batchSizes)
	})

	t.Run("push dry run commits nothing", func(t *testing.T) {
		remoteStore := NewMockDocumentStore()
		local := NewMockCatalogStore(fakeCatalog(3, 10)...)

		remote := NewRemoteCatalog(remoteStore, NewPublisher(remoteStore, PublisherConfig{}), "")
		report, err := NewCatalogSyncService(local, remote).Push(ctx, true)
		require.NoError(t, err)

		assert.Equal(t, 0, report.Committed)
		assert.Equal(t, 0, remoteStore.commits)
	})

	t.Run("remote operations need a remote store", func(t *testing.T) {
		svc := NewCatalogSyncService(NewMockCatalogStore(), nil)

		_, err := svc.Pull(ctx, false)
		assert.True(t, errors.Is(err, domain.ErrStoreSetup))
		_, err = svc.Push(ctx, false)
		assert.True(t, errors.Is(err, domain.ErrStoreSetup))
	})

	t.Run("summary of local catalog", func(t *testing.T) {
		summary, err := NewCatalogSyncService(NewMockCatalogStore(fakeCatalog(9, 25)...), nil).Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, summary.Total)
	})
}
