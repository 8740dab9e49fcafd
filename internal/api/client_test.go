package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockfin/internal/market"
	"stockfin/internal/stock"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientStocks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/stocks", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"stocks": []stock.Row{{Ticker: "AAPL", Name: "Apple", Price: 190}},
		})
	})

	rows, err := c.Stocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []stock.Row{{Ticker: "AAPL", Name: "Apple", Price: 190}}, rows)
}

func TestClientAddSendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ticker":"NVDA","name":""}`, string(body))
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":    true,
			"stock": stock.Row{Position: 2, Ticker: "NVDA", Name: "?"},
		})
	})

	row, err := c.Add(context.Background(), "NVDA", "")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Position)
}

func TestClientSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/stocks/4", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]any{
			"ok":    false,
			"error": "remove 4 of 2: position out of range",
		})
	})

	_, err := c.Remove(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position out of range")
}

func TestClientSearchEncodesQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s&p 500", r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"results": []market.SearchResult{{Symbol: "^GSPC", Name: "S&P 500"}},
		})
	})

	results, err := c.Search(context.Background(), "s&p 500")
	require.NoError(t, err)
	assert.Equal(t, []market.SearchResult{{Symbol: "^GSPC", Name: "S&P 500"}}, results)
}

func TestClientStatusAndActivate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/status":
			writeJSON(w, http.StatusOK, map[string]string{
				"text": "-1.00%", "alt": "bearish", "class": "bearish", "tooltip": "Daily average: -1.00%",
			})
		case "/api/v1/activate", "/api/v1/refresh":
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			http.NotFound(w, r)
		}
	})

	p, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bearish", p.Class)
	assert.NoError(t, c.Activate(context.Background()))
	assert.NoError(t, c.Refresh(context.Background()))
}

func TestClientConnectionError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Stocks(context.Background())
	assert.Error(t, err)
}
