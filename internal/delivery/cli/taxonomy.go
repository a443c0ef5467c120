package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/usecase"
)

// withTaxonomy opens the store and builds the taxonomy service for the selected rule table
func (a *app) withTaxonomy(ctx context.Context, fn func(ctx context.Context, svc *usecase.TaxonomyService) error) error {
	table, err := a.ruleTable()
	if err != nil {
		return err
	}
	return a.withStore(ctx, func(ctx context.Context, store domain.DocumentStore) error {
		return fn(ctx, usecase.NewTaxonomyService(store, a.publisher(store), table, a.collections()))
	})
}

func (a *app) taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Maintain the remote category and subcategory documents",
		Long: `The category tree is derived from the rule table: its categories and
sub_categories in declaration order.`,
	}
	cmd.AddCommand(a.taxonomySyncCmd(), a.taxonomyVerifyCmd(), a.taxonomyRepairCmd())
	return cmd
}

func (a *app) taxonomySyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write the category tree and delete stale documents",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTaxonomy(cmd.Context(), func(ctx context.Context, svc *usecase.TaxonomyService) error {
				report, err := svc.Sync(ctx, dryRun)
				if report != nil {
					printTaxonomySync(cmd.OutOrStdout(), report)
				}
				return err
			})
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}

func (a *app) taxonomyVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every subcategory links to an existing category",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTaxonomy(cmd.Context(), func(ctx context.Context, svc *usecase.TaxonomyService) error {
				report, err := svc.VerifyLinks(ctx)
				if err != nil {
					return err
				}
				printLinkReport(cmd.OutOrStdout(), report, false)
				if !report.OK() {
					return fmt.Errorf("%w: %d subcategory links are broken", errVerificationFailed, len(report.Issues))
				}
				printSuccess(cmd.OutOrStdout(), "every subcategory is linked")
				return nil
			})
		},
	}
}

func (a *app) taxonomyRepairCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Set categoryId on subcategories the taxonomy can place",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTaxonomy(cmd.Context(), func(ctx context.Context, svc *usecase.TaxonomyService) error {
				report, err := svc.RepairLinks(ctx, dryRun)
				if report != nil {
					printLinkReport(cmd.OutOrStdout(), report, dryRun)
				}
				return err
			})
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that every record sits on a placement of the taxonomy",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.ruleTable()
			if err != nil {
				return err
			}

			check := func(ctx context.Context, svc *usecase.TaxonomyService, catalog domain.CatalogStore) error {
				report, err := svc.Validate(ctx, catalog)
				if err != nil {
					return err
				}
				printValidation(cmd.OutOrStdout(), report)
				if !report.OK() {
					return fmt.Errorf("%w: %d records outside the taxonomy", errVerificationFailed, len(report.Invalid))
				}
				printSuccess(cmd.OutOrStdout(), "every record is placed")
				return nil
			}

			if !remote {
				return check(cmd.Context(), usecase.NewTaxonomyService(nil, nil, table, a.collections()), a.shards())
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, store domain.DocumentStore) error {
				svc := usecase.NewTaxonomyService(store, a.publisher(store), table, a.collections())
				return check(ctx, svc, a.remoteCatalog(store))
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "validate the remote product collection instead of the shard files")
	return cmd
}

func (a *app) pruneCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete remote products whose category is outside the taxonomy",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTaxonomy(cmd.Context(), func(ctx context.Context, svc *usecase.TaxonomyService) error {
				report, err := svc.PruneOrphans(ctx, dryRun)
				if report != nil {
					printPrune(cmd.OutOrStdout(), report)
				}
				return err
			})
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}
