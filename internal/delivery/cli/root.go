package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

// errVerificationFailed is returned by audit commands that found problems, so the process exits non-zero
var errVerificationFailed = errors.New("verification failed")

// NewRootCommand builds the catalogsync command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "catalogsync",
		Short:   "Reclassify, re-price and publish the product catalog",
		Version: version,
		Long: `catalogsync keeps the product catalog shards, the pricing sheet and the remote
document store in line. Every command runs one pass and prints a summary; commands
that write support --dry-run.`,
		Example: `  # Preview the latest rule table against the catalog shards
  $ catalogsync reclassify --dry-run

  # Apply a pricing sheet and push the updated products
  $ catalogsync reconcile-prices --sheet ./data/pricing.xlsx --push

  # Rebuild the remote category tree
  $ catalogsync taxonomy sync`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: config.yaml in ., ./config or /etc/catalogsync)")
	flags.IntVar(&a.rulesVersion, "rules-version", 0, "rule table version to use (default: from config, then latest)")
	flags.StringVar(&a.storeType, "store", "", "document store: firestore, sqlite or memory (default: from config)")

	root.AddCommand(
		a.reclassifyCmd(),
		a.reconcilePricesCmd(),
		a.pushCmd(),
		a.pullCmd(),
		a.summaryCmd(),
		a.taxonomyCmd(),
		a.validateCmd(),
		a.pruneCmd(),
		a.serveCmd(),
	)
	return root
}

// Execute runs the command line and prints the error that ends it
func Execute(ctx context.Context, args []string) error {
	a := &app{}
	defer a.teardown()

	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), "%v", err)
	}
	return err
}

func dryRunFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "dry-run", false, "report what would change without writing anything")
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	return nil
}
