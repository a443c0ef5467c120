package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// PriceUpdate is one applied price change
type PriceUpdate struct {
	Line        int     `json:"line"`
	Item        string  `json:"item"`
	ProductID   string  `json:"productId"`
	Title       string  `json:"title"`
	Score       float64 `json:"score"`
	Containment bool    `json:"containment,omitempty"`
	NeedsReview bool    `json:"needsReview,omitempty"`
	RunnerUpID  string  `json:"runnerUpId,omitempty"`
	OldPrice    float64 `json:"oldPrice"`
	OldMRP      float64 `json:"oldMrp"`
	NewPrice    float64 `json:"newPrice"`
	NewMRP      float64 `json:"newMrp"`
}

// RowIssue is a pricing row that produced no update
type RowIssue struct {
	Line      int     `json:"line"`
	Item      string  `json:"item"`
	Reason    string  `json:"reason"`
	ProductID string  `json:"productId,omitempty"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// ReconcileReport accounts for every pricing row and every product of one pass
type ReconcileReport struct {
	RowsRead         int               `json:"rowsRead"`
	Applied          []PriceUpdate     `json:"applied"`
	Malformed        []RowIssue        `json:"malformed,omitempty"`
	ZeroPrice        []RowIssue        `json:"zeroPrice,omitempty"`
	Unmatched        []RowIssue        `json:"unmatched,omitempty"`
	NotUpdatable     []RowIssue        `json:"notUpdatable,omitempty"`
	AlreadyUpdated   []RowIssue        `json:"alreadyUpdated,omitempty"`
	UnpricedProducts []UnmatchedRecord `json:"unpricedProducts,omitempty"`
	NeedsReview      int               `json:"needsReview"`

	updated map[int]bool
}

// Skipped returns the number of rows that produced no update
func (r *ReconcileReport) Skipped() int {
	return len(r.Malformed) + len(r.ZeroPrice) + len(r.Unmatched) + len(r.NotUpdatable) + len(r.AlreadyUpdated)
}

// UpdatedIndexes returns the catalog indexes of products that received an update, in catalog order
func (r *ReconcileReport) UpdatedIndexes(total int) []int {
	var out []int
	for i := 0; i < total; i++ {
		if r.updated[i] {
			out = append(out, i)
		}
	}
	return out
}

// Reconciler applies pricing rows to catalog products
type Reconciler struct {
	matcher *MatchingService
}

// NewReconciler creates a new reconciler
func NewReconciler(matcher *MatchingService) *Reconciler {
	return &Reconciler{matcher: matcher}
}

// Reconcile matches each row to a product and overwrites the product's first SKU price and MRP,
// truncated to whole units. Products are updated in place. A product takes at most one update per
// pass; later rows that resolve to it are reported as already updated.
func (r *Reconciler) Reconcile(ctx context.Context, products []domain.Product, rows []domain.PricingRow) (*ReconcileReport, error) {
	log := logger.Component(ctx, "reconciler")
	report := &ReconcileReport{RowsRead: len(rows), updated: make(map[int]bool)}
	candidates := NewCandidates(products)

	for _, row := range rows {
		mrp, selling, err := row.Prices()
		if err != nil {
			issue := RowIssue{Line: row.Line, Item: row.ItemName, Reason: err.Error()}
			if errors.Is(err, domain.ErrZeroPrice) {
				report.ZeroPrice = append(report.ZeroPrice, issue)
			} else {
				report.Malformed = append(report.Malformed, issue)
			}
			continue
		}

		match, err := r.matcher.FindBestMatch(ctx, row.ItemName, candidates)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrLowConfidence):
			report.Unmatched = append(report.Unmatched, RowIssue{
				Line: row.Line, Item: row.ItemName, Reason: err.Error(),
				ProductID: match.ProductID, Title: match.Title, Score: match.Score,
			})
			continue
		case errors.Is(err, domain.ErrNoMatch):
			report.Unmatched = append(report.Unmatched, RowIssue{Line: row.Line, Item: row.ItemName, Reason: err.Error()})
			continue
		case errors.Is(err, domain.ErrMalformedRow):
			report.Malformed = append(report.Malformed, RowIssue{Line: row.Line, Item: row.ItemName, Reason: "item name is empty after normalization"})
			continue
		default:
			return report, err
		}

		issue := RowIssue{Line: row.Line, Item: row.ItemName, ProductID: match.ProductID, Title: match.Title, Score: match.Score}
		if report.updated[match.ProductIndex] {
			issue.Reason = "product already updated by an earlier row"
			report.AlreadyUpdated = append(report.AlreadyUpdated, issue)
			continue
		}

		p := &products[match.ProductIndex]
		if len(p.SKUs) == 0 {
			issue.Reason = domain.ErrNoSKU.Error()
			report.NotUpdatable = append(report.NotUpdatable, issue)
			continue
		}

		sku := &p.SKUs[0]
		update := PriceUpdate{
			Line:        row.Line,
			Item:        row.ItemName,
			ProductID:   match.ProductID,
			Title:       match.Title,
			Score:       match.Score,
			Containment: match.Containment,
			NeedsReview: match.NeedsReview,
			RunnerUpID:  match.RunnerUpID,
			OldPrice:    sku.Price,
			OldMRP:      sku.MRP,
			NewPrice:    float64(selling.IntPart()),
			NewMRP:      float64(mrp.IntPart()),
		}
		sku.SetPrices(update.NewPrice, update.NewMRP)
		report.updated[match.ProductIndex] = true
		report.Applied = append(report.Applied, update)
		if update.NeedsReview {
			report.NeedsReview++
			log.Warn().Int("line", row.Line).Str("item", row.ItemName).Str("match", match.Title).
				Str("runner_up", match.RunnerUpID).Float64("score", match.Score).Float64("runner_up_score", match.RunnerUp).
				Msg("near tie, review the applied match")
		}
	}

	for i := range products {
		if !report.updated[i] {
			report.UnpricedProducts = append(report.UnpricedProducts, UnmatchedRecord{
				ID: products[i].Key(), Title: products[i].Title, Placement: products[i].Placement(),
			})
		}
	}

	log.Info().
		Int("rows", report.RowsRead).
		Int("applied", len(report.Applied)).
		Int("malformed", len(report.Malformed)).
		Int("zero_price", len(report.ZeroPrice)).
		Int("unmatched", len(report.Unmatched)).
		Int("not_updatable", len(report.NotUpdatable)).
		Int("already_updated", len(report.AlreadyUpdated)).
		Msg("reconciled")

	return report, nil
}

// PriceRunOptions controls where a pricing pass writes its results
type PriceRunOptions struct {
	DryRun bool
	// Push publishes the updated products to the remote store after the catalog is saved
	Push bool
}

// productPublisher is a catalog that persists records by publishing them one by one,
// so a pass can write only the records it changed
type productPublisher interface {
	Publish(ctx context.Context, products []domain.Product) (*PublishReport, error)
}

// PriceService runs a pricing pass: load catalog, read sheet, reconcile, persist
type PriceService struct {
	catalog    domain.CatalogStore
	source     domain.PricingSource
	reconciler *Reconciler
	publisher  *Publisher
	collection string
}

// NewPriceService creates a new price service. publisher may be nil when pushing is not needed.
func NewPriceService(
	catalog domain.CatalogStore,
	source domain.PricingSource,
	reconciler *Reconciler,
	publisher *Publisher,
	collection string,
) *PriceService {
	return &PriceService{
		catalog:    catalog,
		source:     source,
		reconciler: reconciler,
		publisher:  publisher,
		collection: collection,
	}
}

// Run executes one pricing pass
func (s *PriceService) Run(ctx context.Context, opts PriceRunOptions) (*ReconcileReport, error) {
	log := logger.Component(ctx, "prices")

	products, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	rows, err := s.source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pricing sheet: %w", err)
	}
	log.Info().Int("products", len(products)).Int("rows", len(rows)).Msg("inputs loaded")

	report, err := s.reconciler.Reconcile(ctx, products, rows)
	if err != nil {
		return report, err
	}

	if opts.DryRun || len(report.Applied) == 0 {
		log.Info().Bool("dry_run", opts.DryRun).Msg("catalog not written")
		return report, nil
	}

	updated := make([]domain.Product, 0, len(report.Applied))
	for _, i := range report.UpdatedIndexes(len(products)) {
		updated = append(updated, products[i])
	}

	if remote, ok := s.catalog.(productPublisher); ok {
		if _, err := remote.Publish(ctx, updated); err != nil {
			return report, fmt.Errorf("write catalog: %w", err)
		}
		log.Info().Int("products", len(updated)).Msg("updated products published")
		return report, nil
	}

	if err := s.catalog.ReplaceAll(ctx, products); err != nil {
		return report, fmt.Errorf("write catalog: %w", err)
	}

	if opts.Push {
		if s.publisher == nil {
			return report, fmt.Errorf("%w: no remote store configured", domain.ErrStoreSetup)
		}
		if _, err := s.publisher.PublishProducts(ctx, s.collection, updated); err != nil {
			return report, err
		}
	}

	return report, nil
}
