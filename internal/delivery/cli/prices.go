package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/pricing"
	"github.com/catalogsync/backend/internal/usecase"
)

func (a *app) reconcilePricesCmd() *cobra.Command {
	var (
		sheet      string
		fromRemote bool
		opts       usecase.PriceRunOptions
	)

	cmd := &cobra.Command{
		Use:   "reconcile-prices",
		Short: "Apply a pricing sheet to the catalog",
		Long: `Match every pricing sheet row to a product by name and overwrite the product's
first SKU price and MRP. The catalog comes from the shard files, or from the remote
product collection with --from-remote.`,
		Example: `  $ catalogsync reconcile-prices --sheet ./data/pricing.csv --dry-run
  $ catalogsync reconcile-prices --sheet ./data/pricing.xlsx --push`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := sheet
			if path == "" {
				path = a.cfg.Pricing.Path
			}
			if path == "" {
				return fmt.Errorf("no pricing sheet given (use --sheet or pricing.path)")
			}
			source := pricing.NewReader(path, a.cfg.Pricing.Sheet, a.cfg.Pricing.Charset)
			reconciler := usecase.NewReconciler(a.matcher())

			run := func(ctx context.Context, catalog domain.CatalogStore, publisher *usecase.Publisher) error {
				svc := usecase.NewPriceService(catalog, source, reconciler, publisher, a.cfg.Store.Collections.Products)
				report, err := svc.Run(ctx, opts)
				if report != nil {
					printReconcileReport(cmd.OutOrStdout(), report, opts.DryRun)
				}
				return err
			}

			if !fromRemote && !opts.Push {
				return run(cmd.Context(), a.shards(), nil)
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, store domain.DocumentStore) error {
				if fromRemote {
					// the remote catalog persists by publishing, so a separate push is redundant
					opts.Push = false
					return run(ctx, a.remoteCatalog(store), nil)
				}
				return run(ctx, a.shards(), a.publisher(store))
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "pricing sheet, .csv or .xlsx (default: pricing.path)")
	cmd.Flags().BoolVar(&fromRemote, "from-remote", false, "price the remote product collection instead of the shard files")
	cmd.Flags().BoolVar(&opts.Push, "push", false, "publish the updated products to the remote store")
	dryRunFlag(cmd, &opts.DryRun)
	return cmd
}
