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
	"go.uber.org/zap"

	"github.com/JakeFAU/store-locator-crawler/internal/app"
	"github.com/JakeFAU/store-locator-crawler/internal/config"
	"github.com/JakeFAU/store-locator-crawler/internal/logging"
	"github.com/JakeFAU/store-locator-crawler/internal/metrics"
)

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

type crawlFlags struct {
	startID     int
	endID       int
	concurrency int
}

// apply copies explicitly set flags over the loaded configuration.
func (f crawlFlags) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("start-id") {
		cfg.Crawl.StartID = f.startID
	}
	if flags.Changed("end-id") {
		cfg.Crawl.EndID = f.endID
	}
	if flags.Changed("concurrency") {
		cfg.Crawl.Concurrency = f.concurrency
	}
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(cfgFile *string) *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the configured store locator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, *cfgFile, flags)
		},
	}
	cmd.Flags().IntVar(&flags.startID, "start-id", 0, "first id of the requested range (recorded, not used by the walk)")
	cmd.Flags().IntVar(&flags.endID, "end-id", 0, "last id of the requested range (recorded, not used by the walk)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "maximum in-flight requests")
	return cmd
}

func runCrawl(cmd *cobra.Command, cfgFile string, flags crawlFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags.apply(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer a.Close()
	log := a.Logger()

	if cfg.Metrics.Addr != "" {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, log); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	engine, err := a.Engine()
	if err != nil {
		return err
	}
	summary, err := engine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "table=%s pages=%d records=%d skipped=%d fetch_errors=%d sink_failures=%d\n",
		a.Run().TableName, summary.Pages, summary.Records, summary.Skipped, summary.FetchErrors, summary.SinkFailures)
	if errors.Is(err, context.Canceled) {
		log.Warn("crawl interrupted")
	}
	return nil
}
