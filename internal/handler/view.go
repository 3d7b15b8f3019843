package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetAggregatedView godoc
// @Summary      Get the hourly aggregated sentiment/price view for a ticker
// @Description  Returns ordered 1-hour buckets joining mean sentiment score, dominant label, last close, and volume. Components with no data in a bucket are null.
// @Tags         view
// @Produce      json
// @Param        ticker  path   string  true   "Ticker symbol (e.g., AMZN)"
// @Param        hours   query  int     false  "Window in hours (default: full retention window)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/view/{ticker} [get]
func (h *Handler) GetAggregatedView(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-aggregated-view")
	defer span.End()

	ticker := strings.ToUpper(c.Param("ticker"))
	span.SetAttributes(attribute.String("ticker", ticker))

	tc, ok := h.cfg.TickerConfigFor(ticker)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "untracked ticker: " + ticker,
			"tracked_tickers": h.trackedTickers(),
		})
		return
	}

	hours := 0
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}

	buckets, err := h.viewService.GetAggregatedView(ctx, ticker, hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":  tc.Ticker,
		"alias":   tc.Alias,
		"buckets": buckets,
	})
}

// GetTickers godoc
// @Summary      List tracked tickers
// @Description  Returns the configured tickers with aliases and feed URLs
// @Tags         view
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/tickers [get]
func (h *Handler) GetTickers(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-tickers")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"tickers": h.cfg.Tickers})
}

func (h *Handler) trackedTickers() []string {
	out := make([]string, 0, len(h.cfg.Tickers))
	for _, tc := range h.cfg.Tickers {
		out = append(out, tc.Ticker)
	}
	return out
}
