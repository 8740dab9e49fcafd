package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stockfin/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stockfin",
		Short:         "Track a handful of tickers and publish their daily move to the status bar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", config.DefaultPath(), "Path to the YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the refresh loop, the bus service and the HTTP API",
			Args:  cobra.NoArgs,
			RunE:  runDaemon,
		},
		newStatusCmd(),
		newActivateCmd(),
		&cobra.Command{
			Use:   "list",
			Short: "List tracked stocks, best daily performer first",
			Args:  cobra.NoArgs,
			RunE:  runList,
		},
		&cobra.Command{
			Use:   "add TICKER [NAME]",
			Short: "Track a ticker",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runAdd,
		},
		&cobra.Command{
			Use:   "remove POSITION",
			Short: "Stop tracking the stock at a list position",
			Args:  cobra.ExactArgs(1),
			RunE:  runRemove,
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Refresh all tracked stocks now",
			Args:  cobra.NoArgs,
			RunE:  runRefresh,
		},
		&cobra.Command{
			Use:   "search QUERY",
			Short: "Look up ticker symbols by name",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runSearch,
		},
	)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}
