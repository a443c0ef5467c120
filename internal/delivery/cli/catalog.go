package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/usecase"
)

func (a *app) pushCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish every shard record to the remote product collection",
		Long: `Merge-set every record of the catalog shards into the remote product collection,
stamping last_sync. Remote documents that are not in the shards are left alone.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store domain.DocumentStore) error {
				report, err := usecase.NewCatalogSyncService(a.shards(), a.remoteCatalog(store)).Push(ctx, dryRun)
				if report != nil {
					printPublishReport(cmd.OutOrStdout(), report, dryRun)
				}
				return err
			})
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}

func (a *app) pullCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Replace the shard files with the remote product collection",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, store domain.DocumentStore) error {
				summary, err := usecase.NewCatalogSyncService(a.shards(), a.remoteCatalog(store)).Pull(ctx, dryRun)
				if summary != nil {
					printSummary(cmd.OutOrStdout(), summary)
					printDryRun(cmd.OutOrStdout(), dryRun)
				}
				return err
			})
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count records per category and sub_category",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !remote {
				summary, err := usecase.NewCatalogSyncService(a.shards(), nil).Summary(cmd.Context())
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			}
			return a.withStore(cmd.Context(), func(ctx context.Context, store domain.DocumentStore) error {
				products, err := a.remoteCatalog(store).LoadAll(ctx)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), usecase.Summarize(products))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "summarize the remote product collection instead of the shard files")
	return cmd
}
