// Package engine runs the refresh loop. One goroutine owns the registry,
// the sorted view and every stock; fetches run on their own goroutines and
// hand results back to it as closures.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"stockfin/internal/market"
	"stockfin/internal/metrics"
	"stockfin/internal/status"
	"stockfin/internal/stock"
	"stockfin/internal/store"
)

// ErrStopped is returned by Do once Run has exited.
var ErrStopped = errors.New("engine stopped")

// Cycle reasons, also used as the metrics label.
const (
	ReasonStart  = "start"
	ReasonTimer  = "timer"
	ReasonAdd    = "add"
	ReasonRemove = "remove"
	ReasonManual = "manual"
)

type Config struct {
	Interval time.Duration
	// OnSettled runs on the loop after every fetch settles, err is nil on
	// success.
	OnSettled func(ticker string, rng market.Range, err error)
}

// SnapshotWriter receives every successful fetch. *store.Store satisfies it.
type SnapshotWriter interface {
	InsertMarketSnapshot(store.MarketSnapshot) error
}

type Engine struct {
	cfg      Config
	reg      *stock.Registry
	view     *stock.SortedView
	provider market.Provider
	agg      *status.Aggregate
	snaps    SnapshotWriter
	metrics  *metrics.Metrics
	log      zerolog.Logger

	calls  chan func()
	done   chan struct{}
	runCtx context.Context
}

// New wires an engine around reg. snaps and m may be nil.
func New(cfg Config, reg *stock.Registry, provider market.Provider, agg *status.Aggregate, snaps SnapshotWriter, m *metrics.Metrics, log zerolog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if agg == nil {
		agg = &status.Aggregate{}
	}
	return &Engine{
		cfg:      cfg,
		reg:      reg,
		view:     stock.NewSortedView(reg),
		provider: provider,
		agg:      agg,
		snaps:    snaps,
		metrics:  m,
		log:      log.With().Str("component", "engine").Logger(),
		calls:    make(chan func()),
		done:     make(chan struct{}),
	}
}

// Run refreshes immediately, then on every interval, until ctx is done.
// Results still in flight when it returns are dropped.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.runCtx = ctx

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.metrics.SetTracked(e.reg.Len())
	e.cycle(ReasonStart)
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopped")
			return nil
		case <-ticker.C:
			e.cycle(ReasonTimer)
		case fn := <-e.calls:
			fn()
		}
	}
}

// Do runs fn on the loop and waits for it to return.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	call := func() {
		defer close(ran)
		fn()
	}
	select {
	case e.calls <- call:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-e.done:
		// fn runs synchronously on the loop, so it may have finished first
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Add tracks a new stock, saves the list and starts a cycle.
func (e *Engine) Add(ctx context.Context, ticker, name string) (stock.Row, error) {
	var row stock.Row
	err := e.Do(ctx, func() {
		s := e.reg.Add(ticker, name)
		e.metrics.SetTracked(e.reg.Len())
		row = e.rowOf(s)
		e.log.Info().Str("ticker", ticker).Int("position", row.Position).Msg("stock added")
		e.cycle(ReasonAdd)
	})
	return row, err
}

// Remove untracks the stock at registry position. Fetches already in
// flight for it still settle on the detached stock.
func (e *Engine) Remove(ctx context.Context, position int) (stock.Row, error) {
	var (
		row    stock.Row
		remErr error
	)
	err := e.Do(ctx, func() {
		s, err := e.reg.Remove(position)
		if err != nil {
			remErr = err
			return
		}
		e.metrics.SetTracked(e.reg.Len())
		row = s.AsRow(-1, position)
		e.log.Info().Str("ticker", s.Ticker()).Int("position", position).Msg("stock removed")
		e.cycle(ReasonRemove)
	})
	if err != nil {
		return stock.Row{}, err
	}
	return row, remErr
}

// Refresh starts a cycle now.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.Do(ctx, func() { e.cycle(ReasonManual) })
}

// Rows returns the ranked view.
func (e *Engine) Rows(ctx context.Context) ([]stock.Row, error) {
	var rows []stock.Row
	err := e.Do(ctx, func() { rows = e.view.Rows() })
	return rows, err
}

// Entries returns the tracked (ticker, name) pairs in registry order.
func (e *Engine) Entries(ctx context.Context) ([]store.TickerEntry, error) {
	var entries []store.TickerEntry
	err := e.Do(ctx, func() { entries = e.reg.Entries() })
	return entries, err
}

func (e *Engine) rowOf(s *stock.Stock) stock.Row {
	pos := e.reg.Position(s)
	for rank, cur := range e.view.Stocks() {
		if cur == s {
			return s.AsRow(rank, pos)
		}
	}
	return s.AsRow(-1, pos)
}

// cycle fans out one weekly and one daily fetch per tracked stock. It runs
// on the loop; overlapping cycles are not deduplicated.
func (e *Engine) cycle(reason string) {
	stocks := e.reg.Snapshot()
	e.metrics.CycleStarted(reason)
	e.log.Debug().Str("reason", reason).Int("count", len(stocks)).Msg("refresh cycle")
	for _, s := range stocks {
		go e.fetch(s, s.Ticker(), market.RangeWeekly)
		go e.fetch(s, s.Ticker(), market.RangeDaily)
	}
}

// fetch runs off the loop and must not touch s beyond passing it back.
func (e *Engine) fetch(s *stock.Stock, ticker string, rng market.Range) {
	ctx := e.runCtx
	start := time.Now()
	var (
		q   market.RangeQuote
		err error
	)
	if rng == market.RangeWeekly {
		q, err = e.provider.WeeklyRange(ctx, ticker)
	} else {
		q, err = e.provider.DailyRange(ctx, ticker)
	}
	elapsed := time.Since(start)
	e.metrics.ObserveFetch(string(rng), elapsed, err)
	if err == nil {
		e.record(q, rng)
	}

	select {
	case e.calls <- func() { e.settle(s, rng, q, err, elapsed) }:
	case <-ctx.Done():
	}
}

func (e *Engine) record(q market.RangeQuote, rng market.Range) {
	if e.snaps == nil {
		return
	}
	err := e.snaps.InsertMarketSnapshot(store.MarketSnapshot{
		TS:        q.TS,
		Symbol:    q.Symbol,
		Range:     string(rng),
		Name:      q.Name,
		PrevClose: q.PrevClose,
		LastClose: q.LastClose,
		ChangePct: q.PctChange,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", q.Symbol).Msg("insert snapshot failed")
	}
}

// settle applies a fetch result on the loop.
func (e *Engine) settle(s *stock.Stock, rng market.Range, q market.RangeQuote, err error, elapsed time.Duration) {
	if err != nil {
		e.log.Debug().Err(err).
			Str("ticker", s.Ticker()).
			Str("range", string(rng)).
			Dur("elapsed", elapsed).
			Msg("fetch failed")
	} else {
		switch rng {
		case market.RangeWeekly:
			if q.Name != "" {
				s.SetName(q.Name)
			}
			s.SetPctChange1W(q.PctChange)
			s.SetPrice(q.LastClose)
		case market.RangeDaily:
			s.SetPctChange1D(q.PctChange)
			s.SetPrice(q.LastClose)
			if e.reg.Contains(s) {
				e.agg.Store(q.PctChange)
				e.metrics.SetAvgChange(q.PctChange)
			}
		}
	}
	if rng == market.RangeDaily {
		e.view.Invalidate()
	}
	if e.cfg.OnSettled != nil {
		e.cfg.OnSettled(s.Ticker(), rng, err)
	}
}
