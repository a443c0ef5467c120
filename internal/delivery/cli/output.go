package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/catalogsync/backend/internal/usecase"
)

var (
	// Color definitions for terminal output
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
)

func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...interface{}) {
	errorColor.Fprintf(w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...interface{}) {
	warningColor.Fprintf(w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func printInfo(w io.Writer, format string, args ...interface{}) {
	infoColor.Fprintf(w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

func printBold(w io.Writer, format string, args ...interface{}) {
	boldColor.Fprintln(w, fmt.Sprintf(format, args...))
}

func printDryRun(w io.Writer, dryRun bool) {
	if dryRun {
		printInfo(w, "dry run, nothing was written")
	}
}

func printPlacements(w io.Writer, placements []usecase.PlacementCount) {
	category := ""
	for _, p := range placements {
		if p.Category != category {
			category = p.Category
			printBold(w, "%s", category)
		}
		fmt.Fprintf(w, "  %-36s %5d\n", p.SubCategory, p.Count)
	}
}

func printReclassifyReport(w io.Writer, r *usecase.ReclassifyReport, dryRun bool) {
	printBold(w, "Reclassified %d records with rule table v%d (%s policy)", r.Total, r.RuleVersion, r.Policy)
	printPlacements(w, r.Placements)
	fmt.Fprintln(w)

	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-16s %5d\n", o, r.Outcomes[usecase.ReclassifyOutcome(o)])
	}

	for _, u := range r.Unmatched {
		printWarning(w, "no bucket for %s %q (%s)", u.ID, u.Title, u.Placement)
	}
	printSuccess(w, "%d records changed placement", r.Changed)
	printDryRun(w, dryRun)
}

func printReconcileReport(w io.Writer, r *usecase.ReconcileReport, dryRun bool) {
	printBold(w, "Read %d pricing rows", r.RowsRead)
	for _, u := range r.Applied {
		line := fmt.Sprintf("line %d %q -> %s (%.2f): price %.0f -> %.0f, mrp %.0f -> %.0f",
			u.Line, u.Item, u.Title, u.Score, u.OldPrice, u.NewPrice, u.OldMRP, u.NewMRP)
		if u.NeedsReview {
			printWarning(w, "%s, review: runner-up %s", line, u.RunnerUpID)
			continue
		}
		fmt.Fprintf(w, "  %s\n", line)
	}

	issues := []struct {
		label string
		rows  []usecase.RowIssue
	}{
		{"malformed", r.Malformed},
		{"zero price", r.ZeroPrice},
		{"unmatched", r.Unmatched},
		{"no sku", r.NotUpdatable},
		{"already updated", r.AlreadyUpdated},
	}
	for _, group := range issues {
		for _, issue := range group.rows {
			if issue.Title != "" {
				printWarning(w, "%s: line %d %q (closest %q, %.2f)", group.label, issue.Line, issue.Item, issue.Title, issue.Score)
			} else {
				printWarning(w, "%s: line %d %q: %s", group.label, issue.Line, issue.Item, issue.Reason)
			}
		}
	}

	printSuccess(w, "%d products updated, %d rows skipped, %d products without a price row",
		len(r.Applied), r.Skipped(), len(r.UnpricedProducts))
	if r.NeedsReview > 0 {
		printWarning(w, "%d matches need review", r.NeedsReview)
	}
	printDryRun(w, dryRun)
}

func printPublishReport(w io.Writer, r *usecase.PublishReport, dryRun bool) {
	printSuccess(w, "%d documents committed to %s in %d batches", r.Committed, r.Collection, r.Batches)
	if r.Skipped > 0 {
		printWarning(w, "%d records skipped without an id", r.Skipped)
	}
	printDryRun(w, dryRun)
}

func printSummary(w io.Writer, s *usecase.CatalogSummary) {
	printBold(w, "%d records in %d categories", s.Total, s.Categories)
	printPlacements(w, s.Placements)
	if s.WithoutSKU > 0 {
		printWarning(w, "%d records have no SKU entry", s.WithoutSKU)
	}
}

func printTaxonomySync(w io.Writer, r *usecase.TaxonomySyncReport) {
	printBold(w, "Taxonomy: %d categories, %d subcategories", r.Categories, r.Subcategories)
	for _, id := range r.StaleCategories {
		printWarning(w, "stale category %s", id)
	}
	for _, id := range r.StaleSubcategories {
		printWarning(w, "stale subcategory %s", id)
	}
	printSuccess(w, "%d documents committed", r.CommittedDocuments)
	printDryRun(w, r.DryRun)
}

func printLinkReport(w io.Writer, r *usecase.LinkReport, dryRun bool) {
	printBold(w, "Checked %d subcategories against %d categories", r.Subcategories, r.Categories)
	for _, issue := range r.Issues {
		printError(w, "%s (%s): %s", issue.ID, issue.Name, issue.Problem)
	}
	for _, id := range r.Repaired {
		printSuccess(w, "linked %s", id)
	}
	for _, issue := range r.Unresolved {
		printWarning(w, "cannot link %s (%s): not part of the taxonomy", issue.ID, issue.Name)
	}
	if len(r.Repaired) > 0 {
		printDryRun(w, dryRun)
	}
}

func printValidation(w io.Writer, r *usecase.ValidationReport) {
	printBold(w, "%d of %d records sit on a taxonomy placement", r.Valid, r.Total)
	for _, u := range r.Invalid {
		printError(w, "%s %q: %s is not in the taxonomy", u.ID, u.Title, u.Placement)
	}
	if len(r.Placements) > 0 {
		printPlacements(w, r.Placements)
	}
}

func printPrune(w io.Writer, r *usecase.PruneReport) {
	printBold(w, "Scanned %d products, %d outside the taxonomy", r.Scanned, len(r.Orphans))
	categories := make([]string, 0, len(r.ByCategory))
	for c := range r.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		name := c
		if name == "" {
			name = "(no category)"
		}
		fmt.Fprintf(w, "  %-36s %5d\n", name, r.ByCategory[c])
	}
	printSuccess(w, "%d products deleted", r.Deleted)
	printDryRun(w, r.DryRun)
}
