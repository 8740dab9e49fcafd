package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockfin/internal/market"
	"stockfin/internal/status"
	"stockfin/internal/stock"
)

// Client talks to the HTTP API of a running instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Stocks(ctx context.Context) ([]stock.Row, error) {
	var out struct {
		envelope
		Stocks []stock.Row `json:"stocks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/stocks", nil, &out, &out.envelope); err != nil {
		return nil, err
	}
	return out.Stocks, nil
}

func (c *Client) Add(ctx context.Context, ticker, name string) (stock.Row, error) {
	var out struct {
		envelope
		Stock stock.Row `json:"stock"`
	}
	req := AddStockRequest{Ticker: ticker, Name: name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/stocks", req, &out, &out.envelope); err != nil {
		return stock.Row{}, err
	}
	return out.Stock, nil
}

func (c *Client) Remove(ctx context.Context, position int) (stock.Row, error) {
	var out struct {
		envelope
		Removed stock.Row `json:"removed"`
	}
	path := "/api/v1/stocks/" + strconv.Itoa(position)
	if err := c.do(ctx, http.MethodDelete, path, nil, &out, &out.envelope); err != nil {
		return stock.Row{}, err
	}
	return out.Removed, nil
}

func (c *Client) Refresh(ctx context.Context) error {
	var out envelope
	return c.do(ctx, http.MethodPost, "/api/v1/refresh", nil, &out, &out)
}

func (c *Client) Search(ctx context.Context, query string) ([]market.SearchResult, error) {
	var out struct {
		envelope
		Results []market.SearchResult `json:"results"`
	}
	path := "/api/v1/search?" + url.Values{"q": {query}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out, &out.envelope); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) Activate(ctx context.Context) error {
	var out envelope
	return c.do(ctx, http.MethodPost, "/api/v1/activate", nil, &out, &out)
}

// Status reads the payload over HTTP, for hosts without a session bus.
func (c *Client) Status(ctx context.Context) (status.Payload, error) {
	var out status.Payload
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out, nil); err != nil {
		return status.Payload{}, err
	}
	return out, nil
}

// do sends body as JSON and decodes the response into out. When env is
// set it must point into out and a false ok becomes an error.
func (c *Client) do(ctx context.Context, method, path string, body, out any, env *envelope) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if env != nil && !env.OK {
		if env.Error == "" {
			env.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, env.Error)
	}
	if env == nil && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
