package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// ReclassifyOutcome records which rule placed a record
type ReclassifyOutcome string

const (
	OutcomeOverride  ReclassifyOutcome = "override"
	OutcomeMapped    ReclassifyOutcome = "mapped"
	OutcomePlaced    ReclassifyOutcome = "already_placed"
	OutcomeDefaulted ReclassifyOutcome = "defaulted"
	OutcomeUnmatched ReclassifyOutcome = "unmatched"
)

// UnmatchedRecord is a record no bucket accepted
type UnmatchedRecord struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Placement domain.Placement `json:"placement"`
}

// PlacementCount is the number of records in one (category, sub_category)
type PlacementCount struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Count       int    `json:"count"`
}

// ReclassifyReport summarizes one reclassification pass
type ReclassifyReport struct {
	RuleVersion int                       `json:"ruleVersion"`
	Policy      domain.UnmatchedPolicy    `json:"policy"`
	Total       int                       `json:"total"`
	Changed     int                       `json:"changed"`
	Outcomes    map[ReclassifyOutcome]int `json:"outcomes"`
	Unmatched   []UnmatchedRecord         `json:"unmatched,omitempty"`
	Placements  []PlacementCount          `json:"placements"`
}

// Reclassify maps every record's placement through the rule table. Input records are not modified.
//
// Per record, the first rule that applies wins:
//  1. a title override
//  2. the first bucket, in declaration order, whose accepted labels contain the sub_category
//  3. a record already on a declared bucket stays there
//  4. the table's unmatched policy
func Reclassify(products []domain.Product, table *domain.RuleTable) ([]domain.Product, *ReclassifyReport, error) {
	if err := table.Validate(); err != nil {
		return nil, nil, err
	}

	overrides := make(map[string]domain.Placement, len(table.Overrides))
	for _, o := range table.Overrides {
		overrides[o.Title] = o.Target
	}
	byLabel := make(map[string]domain.Placement)
	for _, b := range table.Buckets {
		for _, label := range b.Accepts {
			if _, ok := byLabel[label]; !ok {
				byLabel[label] = b.Target
			}
		}
	}

	report := &ReclassifyReport{
		RuleVersion: table.Version,
		Policy:      table.Policy,
		Total:       len(products),
		Outcomes:    make(map[ReclassifyOutcome]int),
	}

	out := make([]domain.Product, len(products))
	for i := range products {
		p := products[i].Clone()
		before := p.Placement()

		target, outcome := before, OutcomeUnmatched
		if pl, ok := overrides[p.Title]; ok {
			target, outcome = pl, OutcomeOverride
		} else if pl, ok := byLabel[p.SubCategory]; ok {
			target, outcome = pl, OutcomeMapped
		} else if table.HasTarget(before) {
			outcome = OutcomePlaced
		} else if table.Policy == domain.UnmatchedDefault {
			target, outcome = *table.Default, OutcomeDefaulted
		}

		if outcome == OutcomeUnmatched {
			report.Unmatched = append(report.Unmatched, UnmatchedRecord{ID: p.Key(), Title: p.Title, Placement: before})
		}
		if target != before {
			report.Changed++
		}
		p.Place(target)
		report.Outcomes[outcome]++
		out[i] = p
	}

	report.Placements = CountPlacements(out)
	return out, report, nil
}

// CountPlacements counts records per (category, sub_category), sorted by category then sub_category
func CountPlacements(products []domain.Product) []PlacementCount {
	counts := make(map[domain.Placement]int)
	for i := range products {
		counts[products[i].Placement()]++
	}

	out := make([]PlacementCount, 0, len(counts))
	for pl, n := range counts {
		out = append(out, PlacementCount{Category: pl.Category, SubCategory: pl.SubCategory, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].SubCategory < out[j].SubCategory
	})
	return out
}

// ReclassifyService runs a reclassification pass against the catalog store
type ReclassifyService struct {
	catalog domain.CatalogStore
	table   *domain.RuleTable
}

// NewReclassifyService creates a new reclassify service
func NewReclassifyService(catalog domain.CatalogStore, table *domain.RuleTable) *ReclassifyService {
	return &ReclassifyService{catalog: catalog, table: table}
}

// Run loads the catalog, reclassifies it, verifies the result and writes it back unless dryRun is set
func (s *ReclassifyService) Run(ctx context.Context, dryRun bool) (*ReclassifyReport, error) {
	log := logger.Component(ctx, "reclassifier")

	if err := s.table.Validate(); err != nil {
		return nil, err
	}

	products, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info().Int("records", len(products)).Int("rule_version", s.table.Version).Msg("catalog loaded")

	out, report, err := Reclassify(products, s.table)
	if err != nil {
		return nil, err
	}

	if err := verifyReclassified(products, out, report); err != nil {
		return report, err
	}

	for _, u := range report.Unmatched {
		log.Warn().Str("id", u.ID).Str("title", u.Title).Str("placement", u.Placement.String()).Msg("no bucket for record")
	}
	log.Info().
		Int("changed", report.Changed).
		Int("mapped", report.Outcomes[OutcomeMapped]).
		Int("override", report.Outcomes[OutcomeOverride]).
		Int("defaulted", report.Outcomes[OutcomeDefaulted]).
		Int("unmatched", report.Outcomes[OutcomeUnmatched]).
		Msg("reclassified")

	if dryRun {
		log.Info().Msg("dry run, catalog not written")
		return report, nil
	}

	if err := s.catalog.ReplaceAll(ctx, out); err != nil {
		return report, fmt.Errorf("write catalog: %w", err)
	}
	return report, nil
}

// verifyReclassified checks that no record was created or lost
func verifyReclassified(before, after []domain.Product, report *ReclassifyReport) error {
	if len(before) != len(after) {
		return fmt.Errorf("record count changed from %d to %d", len(before), len(after))
	}
	total := 0
	for _, pc := range report.Placements {
		total += pc.Count
	}
	if total != len(after) {
		return fmt.Errorf("summary covers %d of %d records", total, len(after))
	}
	return nil
}
