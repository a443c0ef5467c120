package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// Collections names the remote collections a service works on
type Collections struct {
	Products      string
	Categories    string
	Subcategories string
}

func (c Collections) withDefaults() Collections {
	if c.Products == "" {
		c.Products = domain.CollectionProducts
	}
	if c.Categories == "" {
		c.Categories = domain.CollectionCategories
	}
	if c.Subcategories == "" {
		c.Subcategories = domain.CollectionSubcategories
	}
	return c
}

// TaxonomySyncReport describes what a taxonomy sync wrote
type TaxonomySyncReport struct {
	DryRun             bool     `json:"dryRun"`
	Categories         int      `json:"categories"`
	Subcategories      int      `json:"subcategories"`
	StaleCategories    []string `json:"staleCategories,omitempty"`
	StaleSubcategories []string `json:"staleSubcategories,omitempty"`
	CommittedDocuments int      `json:"committedDocuments"`
}

// LinkIssue is a subcategory document whose parent link is broken
type LinkIssue struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId,omitempty"`
	Problem    string `json:"problem"`
}

// LinkReport is the result of checking subcategory → category links
type LinkReport struct {
	Categories    int         `json:"categories"`
	Subcategories int         `json:"subcategories"`
	Issues        []LinkIssue `json:"issues,omitempty"`
	Repaired      []string    `json:"repaired,omitempty"`
	Unresolved    []LinkIssue `json:"unresolved,omitempty"`
}

// OK reports whether every subcategory links to an existing category
func (r *LinkReport) OK() bool { return len(r.Issues) == 0 }

// ValidationReport lists products whose placement is outside the taxonomy.
// Placements counts the invalid records per placement.
type ValidationReport struct {
	Total      int               `json:"total"`
	Valid      int               `json:"valid"`
	Invalid    []UnmatchedRecord `json:"invalid,omitempty"`
	Placements []PlacementCount  `json:"placements,omitempty"`
}

// OK reports whether every product sits on a taxonomy placement
func (r *ValidationReport) OK() bool { return len(r.Invalid) == 0 }

// PruneReport lists remote products removed for being outside the taxonomy's categories
type PruneReport struct {
	DryRun     bool           `json:"dryRun"`
	Scanned    int            `json:"scanned"`
	Orphans    []string       `json:"orphans,omitempty"`
	ByCategory map[string]int `json:"byCategory,omitempty"`
	Deleted    int            `json:"deleted"`
}

// TaxonomyService keeps the remote category tree in line with the authoritative rule table
type TaxonomyService struct {
	store       domain.DocumentStore
	publisher   *Publisher
	taxonomy    domain.Taxonomy
	collections Collections
}

// NewTaxonomyService creates a taxonomy service for the tree derived from table
func NewTaxonomyService(store domain.DocumentStore, publisher *Publisher, table *domain.RuleTable, collections Collections) *TaxonomyService {
	return &TaxonomyService{
		store:       store,
		publisher:   publisher,
		taxonomy:    domain.TaxonomyFromRules(table),
		collections: collections.withDefaults(),
	}
}

// Taxonomy returns the tree the service enforces
func (s *TaxonomyService) Taxonomy() domain.Taxonomy {
	return s.taxonomy
}

// Sync writes every category and subcategory document and deletes documents that are no
// longer part of the tree
func (s *TaxonomyService) Sync(ctx context.Context, dryRun bool) (*TaxonomySyncReport, error) {
	log := logger.Component(ctx, "taxonomy")
	report := &TaxonomySyncReport{
		DryRun:        dryRun,
		Categories:    len(s.taxonomy.Categories),
		Subcategories: len(s.taxonomy.Subcategories),
	}

	catWrites, keepCats, err := setWrites(s.taxonomy.Categories, func(c domain.CategoryDoc) string { return c.ID })
	if err != nil {
		return nil, err
	}
	subWrites, keepSubs, err := setWrites(s.taxonomy.Subcategories, func(c domain.SubcategoryDoc) string { return c.ID })
	if err != nil {
		return nil, err
	}

	if report.StaleCategories, err = s.stale(ctx, s.collections.Categories, keepCats); err != nil {
		return nil, err
	}
	if report.StaleSubcategories, err = s.stale(ctx, s.collections.Subcategories, keepSubs); err != nil {
		return nil, err
	}

	if dryRun {
		log.Info().Int("categories", report.Categories).Int("subcategories", report.Subcategories).
			Int("stale", len(report.StaleCategories)+len(report.StaleSubcategories)).Msg("dry run, nothing written")
		return report, nil
	}

	// subcategories first so a category is never removed while children still point at it
	subWrites = append(subWrites, deleteWrites(report.StaleSubcategories)...)
	pub, err := s.publisher.CommitAll(ctx, s.collections.Subcategories, subWrites)
	report.CommittedDocuments += pub.Committed
	if err != nil {
		return report, err
	}

	catWrites = append(catWrites, deleteWrites(report.StaleCategories)...)
	pub, err = s.publisher.CommitAll(ctx, s.collections.Categories, catWrites)
	report.CommittedDocuments += pub.Committed
	if err != nil {
		return report, err
	}

	log.Info().Int("documents", report.CommittedDocuments).Msg("taxonomy synced")
	return report, nil
}

func setWrites[T any](docs []T, id func(T) string) ([]domain.DocumentWrite, map[string]bool, error) {
	writes := make([]domain.DocumentWrite, 0, len(docs))
	keep := make(map[string]bool, len(docs))
	for _, d := range docs {
		data, err := domain.ToDocument(d)
		if err != nil {
			return nil, nil, err
		}
		data["updated_at"] = domain.ServerTimestamp
		writes = append(writes, domain.DocumentWrite{Op: domain.OpSet, ID: id(d), Data: data})
		keep[id(d)] = true
	}
	return writes, keep, nil
}

func deleteWrites(ids []string) []domain.DocumentWrite {
	writes := make([]domain.DocumentWrite, len(ids))
	for i, id := range ids {
		writes[i] = domain.DocumentWrite{Op: domain.OpDelete, ID: id}
	}
	return writes
}

func (s *TaxonomyService) stale(ctx context.Context, collection string, keep map[string]bool) ([]string, error) {
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	var out []string
	for _, d := range docs {
		if !keep[d.ID] {
			out = append(out, d.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// VerifyLinks checks that every subcategory document carries a categoryId naming an
// existing category document
func (s *TaxonomyService) VerifyLinks(ctx context.Context) (*LinkReport, error) {
	cats, err := s.store.List(ctx, s.collections.Categories)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collections.Categories, err)
	}
	subs, err := s.store.List(ctx, s.collections.Subcategories)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collections.Subcategories, err)
	}

	exists := make(map[string]bool, len(cats))
	for _, c := range cats {
		exists[c.ID] = true
	}

	report := &LinkReport{Categories: len(cats), Subcategories: len(subs)}
	for _, sub := range subs {
		name, _ := sub.Data["name"].(string)
		catID, _ := sub.Data["categoryId"].(string)
		switch {
		case catID == "":
			report.Issues = append(report.Issues, LinkIssue{ID: sub.ID, Name: name, Problem: "categoryId is not set"})
		case !exists[catID]:
			report.Issues = append(report.Issues, LinkIssue{ID: sub.ID, Name: name, CategoryID: catID, Problem: "categoryId names no category document"})
		}
	}

	logger.Component(ctx, "taxonomy").Info().
		Int("categories", report.Categories).
		Int("subcategories", report.Subcategories).
		Int("issues", len(report.Issues)).
		Msg("links verified")
	return report, nil
}

// RepairLinks sets categoryId on broken subcategories whose name belongs to the taxonomy.
// Subcategories the taxonomy does not know are reported as unresolved.
func (s *TaxonomyService) RepairLinks(ctx context.Context, dryRun bool) (*LinkReport, error) {
	report, err := s.VerifyLinks(ctx)
	if err != nil {
		return nil, err
	}

	var writes []domain.DocumentWrite
	for _, issue := range report.Issues {
		catID, ok := s.taxonomy.CategoryIDFor(issue.ID, issue.Name)
		if !ok {
			report.Unresolved = append(report.Unresolved, issue)
			continue
		}
		writes = append(writes, domain.DocumentWrite{
			Op: domain.OpUpdate, ID: issue.ID,
			Data: map[string]any{"categoryId": catID, "updated_at": domain.ServerTimestamp},
		})
		report.Repaired = append(report.Repaired, issue.ID)
	}

	if dryRun || len(writes) == 0 {
		return report, nil
	}
	if _, err := s.publisher.CommitAll(ctx, s.collections.Subcategories, writes); err != nil {
		return report, err
	}
	return report, nil
}

// ValidateProducts checks every product's placement against the taxonomy
func ValidateProducts(products []domain.Product, taxonomy domain.Taxonomy) *ValidationReport {
	report := &ValidationReport{Total: len(products)}
	var invalid []domain.Product
	for i := range products {
		p := &products[i]
		if taxonomy.Contains(p.Placement()) {
			report.Valid++
			continue
		}
		invalid = append(invalid, *p)
		report.Invalid = append(report.Invalid, UnmatchedRecord{ID: p.Key(), Title: p.Title, Placement: p.Placement()})
	}
	report.Placements = CountPlacements(invalid)
	return report
}

// Validate loads a catalog and validates it against the taxonomy
func (s *TaxonomyService) Validate(ctx context.Context, catalog domain.CatalogStore) (*ValidationReport, error) {
	products, err := catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	report := ValidateProducts(products, s.taxonomy)
	logger.Component(ctx, "taxonomy").Info().Int("total", report.Total).Int("invalid", len(report.Invalid)).Msg("catalog validated")
	return report, nil
}

// PruneOrphans deletes remote products whose category is not part of the taxonomy
func (s *TaxonomyService) PruneOrphans(ctx context.Context, dryRun bool) (*PruneReport, error) {
	docs, err := s.store.List(ctx, s.collections.Products)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.collections.Products, err)
	}

	report := &PruneReport{DryRun: dryRun, Scanned: len(docs), ByCategory: make(map[string]int)}
	for _, d := range docs {
		category, _ := d.Data["category"].(string)
		if s.taxonomy.HasCategory(category) {
			continue
		}
		report.Orphans = append(report.Orphans, d.ID)
		report.ByCategory[category]++
	}

	log := logger.Component(ctx, "taxonomy")
	if dryRun || len(report.Orphans) == 0 {
		log.Info().Int("scanned", report.Scanned).Int("orphans", len(report.Orphans)).Bool("dry_run", dryRun).Msg("prune checked")
		return report, nil
	}

	pub, err := s.publisher.CommitAll(ctx, s.collections.Products, deleteWrites(report.Orphans))
	report.Deleted = pub.Committed
	if err != nil {
		return report, err
	}
	log.Info().Int("deleted", report.Deleted).Msg("orphans pruned")
	return report, nil
}
