package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stockfin/internal/api"
	"stockfin/internal/config"
	"stockfin/internal/status"
)

const clientTimeout = 10 * time.Second

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the status payload as JSON (usable as a Waybar exec)",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().Bool("http", false, "Read through the HTTP API instead of the session bus")
	return cmd
}

func newActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Ask the running instance to bring up its UI",
		Args:  cobra.NoArgs,
		RunE:  runActivate,
	}
	cmd.Flags().Bool("http", false, "Call through the HTTP API instead of the session bus")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	var p status.Payload
	if useHTTP, _ := cmd.Flags().GetBool("http"); useHTTP {
		c, err := httpClient(cfg)
		if err != nil {
			return err
		}
		p, err = c.Status(ctx)
		if err != nil {
			return err
		}
	} else {
		c, err := status.Dial(busConfig(cfg))
		if err != nil {
			return err
		}
		defer c.Close()
		p, err = c.Status(ctx)
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.JSON())
	return nil
}

func runActivate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	defer cancel()

	if useHTTP, _ := cmd.Flags().GetBool("http"); useHTTP {
		c, err := httpClient(cfg)
		if err != nil {
			return err
		}
		return c.Activate(ctx)
	}
	c, err := status.Dial(busConfig(cfg))
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Activate(ctx)
}

func runList(cmd *cobra.Command, _ []string) error {
	c, ctx, cancel, err := apiClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	rows, err := c.Stocks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tTICKER\tNAME\tPRICE\t1D\t1W")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%+.2f%%\t%+.2f%%\n",
			r.Position, r.Ticker, r.Name, r.Price, r.PctChange1D*100, r.PctChange1W*100)
	}
	return tw.Flush()
}

func runAdd(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := apiClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	row, err := c.Add(ctx, args[0], name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s at position %d\n", row.Ticker, row.Position)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	position, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[0])
	}
	c, ctx, cancel, err := apiClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	row, err := c.Remove(ctx, position)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", row.Ticker)
	return nil
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	c, ctx, cancel, err := apiClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	return c.Refresh(ctx)
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := apiClient(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	results, err := c.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\n", r.Symbol, r.Name)
	}
	return tw.Flush()
}

func apiClient(cmd *cobra.Command) (*api.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := httpClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
	return c, ctx, cancel, nil
}

func httpClient(cfg *config.Config) (*api.Client, error) {
	if cfg.Server.Port == 0 {
		return nil, fmt.Errorf("http api is disabled (server.port is 0)")
	}
	return api.NewClient("http://"+cfg.Server.Addr(), clientTimeout), nil
}
