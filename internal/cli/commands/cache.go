package commands

import (
	"github.com/spf13/cobra"

	"skrining/internal/cli/ui"
	"skrining/internal/geocode"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the geocode cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "invalidate KEYWORD",
		Short:   "Drop the cached lookup for a locality keyword",
		Example: `  $ skrining cache invalidate "Kecamatan Sukolilo, Surabaya"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			cache, err := geocode.NewFileCache(a.cfg.Geocode.CacheDir)
			if err != nil {
				return err
			}
			removed, err := cache.Invalidate(args[0])
			if err != nil {
				return err
			}
			if removed {
				ui.Success(cmd.OutOrStdout(), "invalidated %q", args[0])
			} else {
				ui.Warning(cmd.OutOrStdout(), "no cached entry for %q", args[0])
			}
			return nil
		},
	})
	return cmd
}
