package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockfin/internal/api"
	"stockfin/internal/config"
	"stockfin/internal/engine"
	"stockfin/internal/logging"
	"stockfin/internal/market"
	"stockfin/internal/metrics"
	"stockfin/internal/status"
	"stockfin/internal/stock"
	"stockfin/internal/store"
)

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tickers := store.NewTickerFile(cfg.Tickers.Path)
	entries, err := tickers.Load()
	if err != nil {
		logger.Debug().Err(err).Str("path", tickers.Path()).Msg("starting with no tickers")
	}
	reg := stock.NewRegistry(tickers, logger)
	for _, e := range entries {
		reg.Create(e.Symbol, e.Name)
	}

	var (
		snapWriter engine.SnapshotWriter
		snapReader api.SnapshotReader
	)
	if cfg.Store.Sqlite.Path != "" {
		st, err := store.Open(cfg.Store.Sqlite.Path)
		if err != nil {
			return fmt.Errorf("store error: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Warn().Err(err).Msg("store close error")
			}
		}()
		snapWriter, snapReader = st, st
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	provider := market.NewYahooProvider(market.YahooConfig{
		ChartURL:  cfg.Provider.ChartURL,
		SearchURL: cfg.Provider.SearchURL,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   cfg.Provider.Timeout(),
	}, logger)

	activator := status.NewCommandActivator(cfg.UI.ActivateCommand, cfg.UI.FocusCommand, logger)
	pub := status.NewPublisher(busConfig(cfg), activator, logger)

	eng := engine.New(engine.Config{
		Interval:  cfg.Refresh.Interval(),
		OnSettled: settledLogger(logger),
	}, reg, provider, pub.Aggregate(), snapWriter, m, logger)

	go func() {
		err := pub.Serve(ctx)
		switch {
		case errors.Is(err, status.ErrNameTaken):
			logger.Warn().Err(err).Msg("another instance owns the bus name, status not published")
		case err != nil:
			logger.Warn().Err(err).Msg("status bus unavailable")
		}
	}()

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	logger.Info().
		Int("count", reg.Len()).
		Dur("interval", cfg.Refresh.Interval()).
		Str("tickers", tickers.Path()).
		Msg("stockfin starting")

	if err := serveHTTP(ctx, cfg, logger, eng, pub, provider, snapReader, promReg); err != nil {
		stop()
		<-engineDone
		return err
	}
	return <-engineDone
}

// serveHTTP blocks until ctx is done. Port 0 disables the API, and so does
// an address another process already holds.
func serveHTTP(ctx context.Context, cfg *config.Config, logger zerolog.Logger, eng api.Tracker, pub api.StatusSource, searcher api.Searcher, snaps api.SnapshotReader, gatherer prometheus.Gatherer) error {
	if cfg.Server.Port == 0 {
		<-ctx.Done()
		return nil
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Server.Addr()).Msg("http api disabled, address unavailable")
		<-ctx.Done()
		return nil
	}
	h := server.Default(server.WithListener(ln))
	api.RegisterRoutes(h, eng, pub, searcher, snaps, gatherer)

	errc := make(chan error, 1)
	go func() { errc <- h.Run() }()
	logger.Info().Str("addr", ln.Addr().String()).Msg("http api listening")

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server run error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown error")
	}
	return nil
}

func busConfig(cfg *config.Config) status.BusConfig {
	return status.BusConfig{
		Name:      cfg.Bus.Name,
		Path:      cfg.Bus.Path,
		Interface: cfg.Bus.Interface,
	}
}

func settledLogger(logger zerolog.Logger) func(string, market.Range, error) {
	return func(ticker string, rng market.Range, err error) {
		logger.Trace().Str("ticker", ticker).Str("range", string(rng)).AnErr("fetch_err", err).Msg("settled")
	}
}
