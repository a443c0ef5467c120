package cli

import (
	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/usecase"
)

func (a *app) reclassifyCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Map every record's placement through the rule table",
		Long: `Load the catalog shards, move each record to the placement the rule table assigns
it, verify no record was lost and write the shards back.`,
		Example: `  $ catalogsync reclassify --dry-run
  $ catalogsync reclassify --rules-version 3`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.ruleTable()
			if err != nil {
				return err
			}

			report, err := usecase.NewReclassifyService(a.shards(), table).Run(cmd.Context(), dryRun)
			if report != nil {
				printReclassifyReport(cmd.OutOrStdout(), report, dryRun)
			}
			return err
		},
	}
	dryRunFlag(cmd, &dryRun)
	return cmd
}
