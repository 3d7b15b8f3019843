package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ticker-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChartProvider fetches intraday close/volume bars from a Yahoo-style chart
// API: GET {base}/v8/finance/chart/{ticker}?interval=5m&range=1d.
type ChartProvider struct {
	client   *http.Client
	baseURL  string
	interval string
	lookback string
	tracer   trace.Tracer
	limiter  *RateLimiter
}

func NewChartProvider(tracer trace.Tracer, baseURL, interval, lookback string) *ChartProvider {
	if interval == "" {
		interval = "5m"
	}
	if lookback == "" {
		lookback = "1d"
	}
	return &ChartProvider{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		interval: interval,
		lookback: lookback,
		tracer:   tracer,
		limiter:  NewRateLimiter(4, time.Second),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices returns intraday bars for the given tickers over the configured
// interval and lookback window. A ticker whose fetch fails transiently is
// skipped and counted; the remaining tickers still return bars. Bars with a
// null close or a missing timestamp are dropped and counted as malformed.
func (p *ChartProvider) FetchPrices(ctx context.Context, tickers []string) ([]domain.PriceBar, FetchStats, int) {
	_, span := p.tracer.Start(ctx, "chart.fetch-prices")
	defer span.End()
	span.SetAttributes(attribute.Int("tickers", len(tickers)))

	stats := FetchStats{}
	sourcesFailed := 0
	bars := make([]domain.PriceBar, 0, len(tickers)*64)
	for _, ticker := range tickers {
		tickerBars, tickerStats, err := p.fetchTicker(ctx, ticker)
		if err != nil {
			sourcesFailed++
			continue
		}
		stats.Malformed += tickerStats.Malformed
		bars = append(bars, tickerBars...)
	}
	return bars, stats, sourcesFailed
}

func (p *ChartProvider) fetchTicker(ctx context.Context, ticker string) ([]domain.PriceBar, FetchStats, error) {
	_, span := p.tracer.Start(ctx, "chart.fetch-ticker")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker))

	stats := FetchStats{}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, stats, err
	}

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.baseURL, url.PathEscape(ticker), p.interval, p.lookback)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, stats, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: chart fetch for %s: %v", ErrSourceUnavailable, ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, stats, fmt.Errorf("%w: chart API error %d for %s: %s",
			ErrSourceUnavailable, resp.StatusCode, ticker, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: read chart body for %s: %v", ErrSourceUnavailable, ticker, err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, stats, fmt.Errorf("parse chart payload for %s: %w", ticker, err)
	}
	if parsed.Chart.Error != nil {
		return nil, stats, fmt.Errorf("%w: chart API %s for %s: %s",
			ErrSourceUnavailable, parsed.Chart.Error.Code, ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, stats, nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]domain.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if ts <= 0 || i >= len(quote.Close) || quote.Close[i] == nil {
			stats.Malformed++
			continue
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		if volume < 0 {
			stats.Malformed++
			continue
		}
		bars = append(bars, domain.PriceBar{
			Ticker:     ticker,
			BucketTime: time.Unix(ts, 0).UTC(),
			ClosePrice: *quote.Close[i],
			Volume:     volume,
		})
	}
	return bars, stats, nil
}
