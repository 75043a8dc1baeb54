package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"skrining/internal/batch"
	"skrining/internal/browser"
	"skrining/internal/cli/ui"
	"skrining/internal/geocode"
	"skrining/internal/lock"
	"skrining/internal/normalize"
	"skrining/internal/operator"
	"skrining/internal/platform/config"
	"skrining/internal/platform/httpserver"
	"skrining/internal/submission"
	httptransport "skrining/internal/transport/http"
)

type runOptions struct {
	input      string
	noPrompt   bool
	retriesSet bool
	batch      batch.Options
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit every record of an input file",
		Long: `Processes the input rows one at a time in a single browser session.
Rows already registered are skipped. The run stops early only when the portal
rejects the credentials or an unexpected error occurs; the exit status is then
non-zero.`,
		Example: `  $ skrining run --input rows.csv
  $ skrining run --input rows.csv --nik 3578102009820006 --single
  $ skrining run --input rows.csv --shuffle --retries 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.retriesSet = cmd.Flags().Changed("retries")
			return runBatch(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "CSV export of the screening sheet")
	f.StringVar(&opts.batch.NIK, "nik", "", "only process rows with this NIK")
	f.BoolVar(&opts.batch.Single, "single", false, "stop after the first row that is not a duplicate")
	f.BoolVar(&opts.batch.Shuffle, "shuffle", false, "randomize row order")
	f.BoolVar(&opts.batch.PrioritizeStale, "prioritize-stale", false, "process previously failed rows first, oldest first")
	f.IntVar(&opts.batch.Retries, "retries", 0, "re-runs of a row after a navigation failure (default from config)")
	f.BoolVar(&opts.noPrompt, "no-prompt", false, "never ask the operator; escalations count as rejected")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBatch(cmd *cobra.Command, opts runOptions) error {
	ctx := cmd.Context()
	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg := a.cfg
	if !opts.retriesSet {
		opts.batch.Retries = cfg.Batch.Retries
	}

	records, err := batch.ReadCSVFile(opts.input)
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close log store", "error", err)
		}
	}()

	var op *operator.Terminal
	if !opts.noPrompt && operator.Interactive() {
		op = operator.New(operator.WithLogger(a.logger))
	}

	normalizer, err := buildNormalizer(a, op)
	if err != nil {
		return err
	}

	locks := lock.NewManager(cfg.Lock.Dir,
		lock.WithLogger(a.logger),
		lock.WithMetrics(a.metrics),
		lock.WithStaleAfter(cfg.Lock.StaleAfter),
	)
	defer func() {
		if err := locks.ReleaseAll(); err != nil {
			a.logger.Warn("release locks", "error", err)
		}
	}()

	chrome, err := browser.Launch(ctx, cfg.Browser, browser.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := chrome.Close(); err != nil {
			a.logger.Warn("close browser", "error", err)
		}
	}()

	engineOpts := []submission.Option{
		submission.WithLogger(a.logger),
		submission.WithMetrics(a.metrics),
		submission.WithScreenshotDir(cfg.Batch.ScreenshotDir),
	}
	if op != nil {
		engineOpts = append(engineOpts, submission.WithOperator(op))
	}
	engine := submission.NewEngine(normalizer, store, locks, cfg.Portal, engineOpts...)

	if path := os.Getenv(config.EnvConfigPath); path != "" {
		stopWatch, err := config.Watch(path, a.logger, func(c config.Config) { engine.Reconfigure(c.Portal) })
		if err != nil {
			a.logger.Warn("config reload disabled", "error", err)
		} else {
			defer stopWatch()
		}
	}

	session := submission.NewSession(chrome, cfg.Portal, submission.WithSessionLogger(a.logger))
	runner := batch.NewRunner(engine, store, batch.WithLogger(a.logger), batch.WithMetrics(a.metrics))

	var sum batch.Summary
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	if cfg.Status.Addr != "" {
		handler := httptransport.NewHandler(store, a.logger)
		srv := httpserver.New(cfg.Status.Addr, httptransport.NewRouter(handler, a.registry, a.logger))
		a.logger.Info("status server listening", "addr", cfg.Status.Addr)
		g.Go(func() error { return httpserver.Run(serveCtx, srv) })
	}
	g.Go(func() error {
		defer stopServing()
		var runErr error
		sum, runErr = runner.Run(gctx, session, records, opts.batch)
		return runErr
	})
	err = g.Wait()

	printSummary(cmd, sum, err)
	return err
}

func buildNormalizer(a *app, op *operator.Terminal) (*normalize.Normalizer, error) {
	cfg := a.cfg.Geocode
	cache, err := geocode.NewFileCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	providerOpts := []geocode.ProviderOption{
		geocode.WithUserAgent(cfg.UserAgent),
		geocode.WithTimeout(cfg.Timeout),
	}
	var providers []geocode.Provider
	if len(cfg.LocationIQKeys) > 0 {
		providers = append(providers, geocode.NewLocationIQ(cfg.LocationIQURL, cfg.LocationIQKeys, nil, providerOpts...))
	}
	providers = append(providers, geocode.NewNominatim(cfg.NominatimURL, providerOpts...))

	chain, err := geocode.NewChain(cache, providers,
		geocode.WithLogger(a.logger),
		geocode.WithMetrics(a.metrics),
		geocode.WithDelay(cfg.Delay),
	)
	if err != nil {
		return nil, err
	}

	opts := []normalize.Option{
		normalize.WithGeocoder(chain, cfg.CountryCode),
		normalize.WithConfig(a.cfg.Normalize),
		normalize.WithLogger(a.logger),
	}
	if op != nil {
		opts = append(opts, normalize.WithReviewer(op))
	}
	return normalize.New(opts...), nil
}

func printSummary(cmd *cobra.Command, sum batch.Summary, err error) {
	out := cmd.OutOrStdout()
	kinds := make([]string, 0, len(sum.Counts))
	for k := range sum.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	lines := []string{fmt.Sprintf("processed  %d", sum.Total), fmt.Sprintf("retries    %d", sum.Retries)}
	for _, k := range kinds {
		lines = append(lines, fmt.Sprintf("%-28s %d", k, sum.Counts[submission.Kind(k)]))
	}
	if !sum.Finished.IsZero() {
		lines = append(lines, fmt.Sprintf("elapsed    %s", sum.Finished.Sub(sum.Started).Round(time.Second)))
	}

	switch {
	case err == nil:
		fmt.Fprintln(out, ui.Box(ui.Styles.SummaryBox, "Run complete", lines))
	case errors.Is(err, batch.ErrHalted):
		fmt.Fprintln(out, ui.Box(ui.Styles.HaltBox, "Run halted", lines))
		ui.Error(cmd.ErrOrStderr(), "%v", err)
	default:
		fmt.Fprintln(out, ui.Box(ui.Styles.HaltBox, "Run stopped", lines))
	}
}
