package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidQuote = errors.New("invalid quote")
	ErrNoData       = errors.New("no data")
)

// Range names the window a RangeQuote covers. The values double as the
// period column of the snapshot log.
type Range string

const (
	RangeDaily  Range = "1d"
	RangeWeekly Range = "5d"
)

// RangeQuote is the first and last close of a range.
type RangeQuote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	PrevClose float64 `json:"prev_close"`
	LastClose float64 `json:"last_close"`
	PctChange float64 `json:"pct_change"`
	TS        int64   `json:"ts"`
}

// NewRangeQuote computes PctChange as a signed fraction of prevClose.
func NewRangeQuote(symbol, name string, prevClose, lastClose float64) (RangeQuote, error) {
	if !finite(prevClose) || !finite(lastClose) || prevClose <= 0 || lastClose <= 0 {
		return RangeQuote{}, fmt.Errorf("%w for %s: prev_close=%v last_close=%v", ErrInvalidQuote, symbol, prevClose, lastClose)
	}
	return RangeQuote{
		Symbol:    symbol,
		Name:      name,
		PrevClose: prevClose,
		LastClose: lastClose,
		PctChange: (lastClose - prevClose) / prevClose,
		TS:        time.Now().Unix(),
	}, nil
}

// SearchResult carries the symbol and display name of a search hit.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Provider is the market data source. Range failures mean "no update this
// cycle"; Search never fails and returns an empty slice instead.
type Provider interface {
	WeeklyRange(ctx context.Context, ticker string) (RangeQuote, error)
	DailyRange(ctx context.Context, ticker string) (RangeQuote, error)
	Search(ctx context.Context, query string) []SearchResult
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
