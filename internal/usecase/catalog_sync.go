package usecase

import (
	"context"
	"fmt"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// CatalogSummary is the per-placement view of a catalog
type CatalogSummary struct {
	Total      int              `json:"total"`
	Categories int              `json:"categories"`
	Placements []PlacementCount `json:"placements"`
	WithoutSKU int              `json:"withoutSku"`
}

// Summarize counts a catalog per (category, sub_category)
func Summarize(products []domain.Product) *CatalogSummary {
	summary := &CatalogSummary{Total: len(products), Placements: CountPlacements(products)}
	cats := make(map[string]bool)
	for i := range products {
		cats[products[i].Category] = true
		if len(products[i].SKUs) == 0 {
			summary.WithoutSKU++
		}
	}
	summary.Categories = len(cats)
	return summary
}

// CatalogSyncService moves the catalog between the shard files and the remote product collection
type CatalogSyncService struct {
	local  domain.CatalogStore
	remote *RemoteCatalog
}

// NewCatalogSyncService creates a sync service. remote may be nil when only local operations are used.
func NewCatalogSyncService(local domain.CatalogStore, remote *RemoteCatalog) *CatalogSyncService {
	return &CatalogSyncService{local: local, remote: remote}
}

// Pull replaces the local shards with the remote product collection
func (s *CatalogSyncService) Pull(ctx context.Context, dryRun bool) (*CatalogSummary, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("%w: no remote store configured", domain.ErrStoreSetup)
	}

	products, err := s.remote.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	summary := Summarize(products)

	if !dryRun {
		if err := s.local.ReplaceAll(ctx, products); err != nil {
			return summary, fmt.Errorf("write catalog: %w", err)
		}
	}
	logger.Component(ctx, "sync").Info().Int("records", summary.Total).Bool("dry_run", dryRun).Msg("pulled")
	return summary, nil
}

// Push publishes every local record to the remote product collection
func (s *CatalogSyncService) Push(ctx context.Context, dryRun bool) (*PublishReport, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("%w: no remote store configured", domain.ErrStoreSetup)
	}

	products, err := s.local.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if dryRun {
		report := &PublishReport{Collection: s.remote.collection}
		for i := range products {
			if products[i].Key() == "" {
				report.Skipped++
			}
		}
		logger.Component(ctx, "sync").Info().Int("records", len(products)).Msg("dry run, nothing pushed")
		return report, nil
	}
	return s.remote.Publish(ctx, products)
}

// Summary loads the local catalog and summarizes it
func (s *CatalogSyncService) Summary(ctx context.Context) (*CatalogSummary, error) {
	products, err := s.local.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(products), nil
}
