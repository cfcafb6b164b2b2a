// Package cmd defines the catalog-scraper command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/app"
	"github.com/JakeFAU/catalog-scraper/internal/config"
	"github.com/JakeFAU/catalog-scraper/internal/discovery"
	"github.com/JakeFAU/catalog-scraper/internal/logging"
)

// scrapeFunc runs one scrape. Tests swap it for a fake.
type scrapeFunc func(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.Result, error)

func runApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.Result, error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return app.Result{}, fmt.Errorf("initialize scraper: %w", err)
	}
	return a.Run(ctx)
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"limit":        "crawler.limit",
	"concurrency":  "crawler.concurrency",
	"renderer":     "renderer.backend",
	"output-dir":   "output.dir",
	"metrics-addr": "server.metrics_addr",
}

func newRootCmd(scrape scrapeFunc) *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "catalog-scraper <site-url>",
		Short: "Scrape a WooCommerce product catalog into a CSV file.",
		Long: `catalog-scraper finds every product page of a WooCommerce store through its
sitemaps, renders each page with a pool of browser sessions, and writes all
products and their variations to a single CSV file.

A missing or invalid site URL, limit or concurrency switches to interactive
prompts on stdin.`,
		Example:       "  catalog-scraper https://example.com --limit 100 --concurrency 5",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, v, cfgFile, args, scrape)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Int("limit", 0, "maximum number of products to scrape (0 = no limit)")
	flags.Int("concurrency", 3, "number of concurrent page sessions")
	flags.String("renderer", config.BackendChromedp, "page renderer: chromedp, rod or http")
	flags.String("output-dir", ".", "directory the CSV is written to")
	flags.String("metrics-addr", "", "serve /metrics and /stats on this address during the run")
	if err := bindFlags(v, flags); err != nil {
		panic(err)
	}
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func runRoot(cmd *cobra.Command, v *viper.Viper, cfgFile string, args []string, scrape scrapeFunc) error {
	cfg, err := config.Read(v, cfgFile)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Site = args[0]
	}

	if reason := invalidInput(cfg); reason != nil {
		out := cmd.ErrOrStderr()
		if len(args) > 0 {
			fmt.Fprintf(out, "Invalid command line arguments: %v\nSwitching to interactive mode...\n\n", reason)
		}
		if err := newPrompter(cmd.InOrStdin(), out).fill(&cfg); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := scrape(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows (%d of %d products processed, %d failed) to %s\n",
		res.Rows, res.Stats.Processed, res.Stats.Total, res.Stats.Failed, res.OutputPath)
	return nil
}

// invalidInput returns the first problem with the values the prompts can fix.
func invalidInput(cfg config.Config) error {
	if cfg.Site == "" {
		return errors.New("website URL is required")
	}
	if err := discovery.ValidateSiteURL(cfg.Site); err != nil {
		return err
	}
	if err := config.ValidateLimit(cfg.Crawler.Limit); err != nil {
		return err
	}
	return cfg.Crawler.ValidateConcurrency(cfg.Crawler.Concurrency)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmd := newRootCmd(runApp)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
