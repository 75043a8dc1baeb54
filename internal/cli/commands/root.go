// Package commands holds the skrining CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skrining/internal/platform/config"
)

const version = "1.0.0"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "skrining",
		Short:   "Submit screening records to the health portal",
		Version: version,
		Long: `Reads screening records from a spreadsheet export, normalizes each one and
submits it through the portal's web form, keeping a log of every outcome so
reruns skip what is already registered.`,
		Example: `  # Submit every row
  $ skrining run --input rows.csv

  # Retry previously failed rows first
  $ skrining run --input rows.csv --prioritize-stale

  # Inspect the outcome log
  $ skrining logs list --status error,locked
  $ skrining logs get 3578102009820006`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvConfigPath, configPath)
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("skrining version %s\n", version))
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides "+config.EnvConfigPath+")")

	root.AddCommand(newRunCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newCacheCmd())
	return root
}

// Execute runs the CLI with ctx as the root context.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
