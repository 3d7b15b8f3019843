package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetHeadlines godoc
// @Summary      Get recent classified headlines for a ticker
// @Description  Returns classified headlines within the retention window, oldest first
// @Tags         records
// @Produce      json
// @Param        ticker  path   string  true   "Ticker symbol (e.g., AMZN)"
// @Param        limit   query  int     false  "Max rows (default 100, max 500)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/headlines/{ticker} [get]
func (h *Handler) GetHeadlines(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-headlines")
	defer span.End()

	ticker := strings.ToUpper(c.Param("ticker"))
	span.SetAttributes(attribute.String("ticker", ticker))

	if _, ok := h.cfg.TickerConfigFor(ticker); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "untracked ticker: " + ticker,
			"tracked_tickers": h.trackedTickers(),
		})
		return
	}

	headlines, err := h.viewService.RecentHeadlines(ctx, ticker, parseLimit(c, 100, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "headlines": headlines})
}

// GetPrices godoc
// @Summary      Get recent intraday price bars for a ticker
// @Description  Returns close/volume bars within the retention window, oldest first
// @Tags         records
// @Produce      json
// @Param        ticker  path   string  true   "Ticker symbol (e.g., AMZN)"
// @Param        limit   query  int     false  "Max rows (default 500, max 2000)"  default(500)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/prices/{ticker} [get]
func (h *Handler) GetPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prices")
	defer span.End()

	ticker := strings.ToUpper(c.Param("ticker"))
	span.SetAttributes(attribute.String("ticker", ticker))

	if _, ok := h.cfg.TickerConfigFor(ticker); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "untracked ticker: " + ticker,
			"tracked_tickers": h.trackedTickers(),
		})
		return
	}

	bars, err := h.viewService.RecentPrices(ctx, ticker, parseLimit(c, 500, 2000))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "prices": bars})
}

func parseLimit(c *gin.Context, def, max int) int {
	limit := def
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}
