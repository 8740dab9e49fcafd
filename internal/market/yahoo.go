package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/rs/zerolog"
)

type YahooConfig struct {
	ChartURL  string
	SearchURL string
	UserAgent string
	Timeout   time.Duration
}

// YahooProvider reads both ranges from the v8 chart endpoint and instrument
// names from search.
type YahooProvider struct {
	chartURL  string
	searchURL string
	userAgent string
	client    *http.Client
	log       zerolog.Logger
}

type chartResp struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *yahooError   `json:"error"`
	} `json:"chart"`
}

// chartMeta adds the display names the chart meta carries on top of the
// fields finance-go models.
type chartMeta struct {
	finance.ChartMeta
	ShortName string `json:"shortName"`
	LongName  string `json:"longName"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type searchResp struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
	} `json:"quotes"`
}

func NewYahooProvider(cfg YahooConfig, log zerolog.Logger) *YahooProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ChartURL == "" {
		cfg.ChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://query2.finance.yahoo.com/v1/finance/search"
	}
	return &YahooProvider{
		chartURL:  strings.TrimRight(cfg.ChartURL, "/") + "/",
		searchURL: cfg.SearchURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		log:       log.With().Str("component", "yahoo").Logger(),
	}
}

func (p *YahooProvider) WeeklyRange(ctx context.Context, ticker string) (RangeQuote, error) {
	return p.chartRange(ctx, ticker, RangeWeekly)
}

func (p *YahooProvider) DailyRange(ctx context.Context, ticker string) (RangeQuote, error) {
	return p.chartRange(ctx, ticker, RangeDaily)
}

func (p *YahooProvider) chartRange(ctx context.Context, ticker string, rng Range) (RangeQuote, error) {
	u, err := url.Parse(p.chartURL + url.PathEscape(ticker))
	if err != nil {
		return RangeQuote{}, fmt.Errorf("invalid chart url: %w", err)
	}
	q := u.Query()
	q.Set("range", string(rng))
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()

	var payload chartResp
	if err := p.getJSON(ctx, u.String(), &payload); err != nil {
		return RangeQuote{}, fmt.Errorf("chart %s: %w", ticker, err)
	}
	if e := payload.Chart.Error; e != nil {
		return RangeQuote{}, fmt.Errorf("chart %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return RangeQuote{}, fmt.Errorf("chart %s: %w", ticker, ErrNoData)
	}
	res := payload.Chart.Result[0]
	last, ok := lastClose(res)
	if !ok {
		return RangeQuote{}, fmt.Errorf("chart %s: no close: %w", ticker, ErrNoData)
	}
	name := res.Meta.ShortName
	if name == "" {
		name = res.Meta.LongName
	}
	return NewRangeQuote(ticker, name, res.Meta.ChartPreviousClose, last)
}

// Search never fails; errors are logged and produce no results.
func (p *YahooProvider) Search(ctx context.Context, query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}
	}
	u, err := url.Parse(p.searchURL)
	if err != nil {
		p.log.Debug().Err(err).Msg("invalid search url")
		return []SearchResult{}
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("quotesCount", "10")
	q.Set("newsCount", "0")
	u.RawQuery = q.Encode()

	var payload searchResp
	if err := p.getJSON(ctx, u.String(), &payload); err != nil {
		p.log.Debug().Err(err).Str("query", query).Msg("search failed")
		return []SearchResult{}
	}
	out := make([]SearchResult, 0, len(payload.Quotes))
	for _, item := range payload.Quotes {
		if item.Symbol == "" {
			continue
		}
		name := item.ShortName
		if name == "" {
			name = item.LongName
		}
		out = append(out, SearchResult{Symbol: item.Symbol, Name: name})
	}
	return out
}

func (p *YahooProvider) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request yahoo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo returned status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode yahoo: %w", err)
	}
	return nil
}

func lastClose(res chartResult) (float64, bool) {
	if len(res.Indicators.Quote) == 0 {
		return 0, false
	}
	closes := res.Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil {
			return *closes[i], true
		}
	}
	return 0, false
}
