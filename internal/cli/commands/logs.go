package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"skrining/internal/cli/ui"
	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/pkg/platform/sentinel"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune the outcome log",
	}
	cmd.AddCommand(newLogsListCmd(), newLogsGetCmd(), newLogsRmCmd())
	return cmd
}

func newLogsListCmd() *cobra.Command {
	var (
		status string
		since  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest entry per NIK, oldest first",
		Example: `  $ skrining logs list
  $ skrining logs list --status error,locked --since 2025-01-01T00:00:00Z
  $ skrining logs list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var q logstore.Query
			var err error
			if q.Statuses, err = logstore.ParseStatuses(status); err != nil {
				return err
			}
			if since != "" {
				if q.Since, err = time.Parse(time.RFC3339, since); err != nil {
					return fmt.Errorf("--since must be RFC3339: %w", err)
				}
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.GetLogs(cmd.Context(), q.Predicate())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if entries == nil {
					entries = []domain.LogEntry{}
				}
				return enc.Encode(entries)
			}
			return printEntries(cmd, entries)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma-separated statuses (success,error,invalid,locked)")
	cmd.Flags().StringVar(&since, "since", "", "only entries written at or after this RFC3339 time")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON, payloads included")
	return cmd
}

func newLogsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get NIK",
		Short: "Print the latest entry for one NIK as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.GetLogByID(cmd.Context(), args[0])
			if errors.Is(err, sentinel.ErrNotFound) {
				return fmt.Errorf("no log entry for %s", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
}

func newLogsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NIK...",
		Short: "Remove entries so the NIKs are processed again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			// all or nothing on backends that support transactions
			removed := make([]bool, len(args))
			err = logstore.InTx(cmd.Context(), store.Store, func(ctx context.Context) error {
				for i, id := range args {
					ok, err := store.RemoveLog(ctx, id)
					if err != nil {
						return err
					}
					removed[i] = ok
				}
				return nil
			})
			if err != nil {
				return err
			}
			for i, id := range args {
				if removed[i] {
					ui.Success(cmd.OutOrStdout(), "removed %s", id)
				} else {
					ui.Warning(cmd.OutOrStdout(), "no entry for %s", id)
				}
			}
			return nil
		},
	}
}

func printEntries(cmd *cobra.Command, entries []domain.LogEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NIK\tSTATUS\tREASON\tREGISTERED\tATTEMPT\tTIMESTAMP")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\n",
			e.ID, e.Status, e.Reason, e.Registered, e.Attempt, e.Timestamp.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	ui.Info(cmd.OutOrStdout(), "%d entries", len(entries))
	return nil
}
