package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockfin/internal/engine"
	"stockfin/internal/market"
	"stockfin/internal/status"
	"stockfin/internal/stock"
	"stockfin/internal/store"
)

// Tracker is the view of the refresh engine the routes need.
type Tracker interface {
	Rows(ctx context.Context) ([]stock.Row, error)
	Add(ctx context.Context, ticker, name string) (stock.Row, error)
	Remove(ctx context.Context, position int) (stock.Row, error)
	Refresh(ctx context.Context) error
}

type StatusSource interface {
	Status() status.Payload
	Activate(ctx context.Context) error
}

type Searcher interface {
	Search(ctx context.Context, query string) []market.SearchResult
}

type SnapshotReader interface {
	QueryMarketSnapshots(symbol, rng string, limit, offset int) ([]store.MarketSnapshot, error)
}

type AddStockRequest struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// RegisterRoutes mounts the HTTP API. snaps and gatherer may be nil.
func RegisterRoutes(h *server.Hertz, tracker Tracker, pub StatusSource, searcher Searcher, snaps SnapshotReader, gatherer prometheus.Gatherer) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/status", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, pub.Status())
	})

	h.GET("/api/v1/stocks", func(ctx context.Context, c *app.RequestContext) {
		rows, err := tracker.Rows(ctx)
		if err != nil {
			fail(c, trackerStatus(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":     true,
			"stocks": rows,
		})
	})

	h.POST("/api/v1/stocks", func(ctx context.Context, c *app.RequestContext) {
		var req AddStockRequest
		if err := c.BindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid json body")
			return
		}
		ticker := strings.TrimSpace(req.Ticker)
		if ticker == "" {
			fail(c, http.StatusBadRequest, "ticker is required")
			return
		}
		row, err := tracker.Add(ctx, ticker, strings.TrimSpace(req.Name))
		if err != nil {
			fail(c, trackerStatus(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"stock": row,
		})
	})

	h.DELETE("/api/v1/stocks/:position", func(ctx context.Context, c *app.RequestContext) {
		position, err := strconv.Atoi(c.Param("position"))
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid position")
			return
		}
		row, err := tracker.Remove(ctx, position)
		if err != nil {
			fail(c, trackerStatus(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"removed": row,
		})
	})

	h.POST("/api/v1/refresh", func(ctx context.Context, c *app.RequestContext) {
		if err := tracker.Refresh(ctx); err != nil {
			fail(c, trackerStatus(err), err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})

	h.GET("/api/v1/search", func(ctx context.Context, c *app.RequestContext) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			fail(c, http.StatusBadRequest, "q is required")
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"results": searcher.Search(ctx, query),
		})
	})

	h.POST("/api/v1/activate", func(ctx context.Context, c *app.RequestContext) {
		if err := pub.Activate(ctx); err != nil {
			fail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]any{"ok": true})
	})

	h.GET("/api/v1/snapshots", func(_ context.Context, c *app.RequestContext) {
		if snaps == nil {
			fail(c, http.StatusInternalServerError, "store not configured")
			return
		}
		symbol := c.Query("symbol")
		if symbol == "" {
			fail(c, http.StatusBadRequest, "symbol is required")
			return
		}
		limit, err := parseLimit(c.Query("limit"))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := parseOffset(c.Query("offset"))
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		items, err := snaps.QueryMarketSnapshots(symbol, c.Query("range"), limit, offset)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		if items == nil {
			items = []store.MarketSnapshot{}
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	if gatherer != nil {
		h.GET("/metrics", adaptor.HertzHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

func fail(c *app.RequestContext, code int, msg string) {
	c.JSON(code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

func trackerStatus(err error) int {
	switch {
	case errors.Is(err, stock.ErrPositionOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if v > 1000 {
		return 1000, nil
	}
	return v, nil
}

func parseOffset(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid offset")
	}
	return v, nil
}
