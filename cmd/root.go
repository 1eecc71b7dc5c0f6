// Package cmd defines and implements the CLI commands for the storecrawler executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "storecrawler",
		Short: "Crawls store-locator sites into a relational table.",
		Long: `storecrawler walks a retailer's store locator from its country page down
through states and cities to every store page, saves each store page gzip'd,
and writes one normalized row per store into a table named for the run.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.AddCommand(newCrawlCmd(&cfgFile))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
