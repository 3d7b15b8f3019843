package service

import (
	"context"
	"log"
	"time"

	"ticker-pulse/internal/domain"
	"ticker-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

// PriceSource is the price source adapter contract.
type PriceSource interface {
	FetchPrices(ctx context.Context, tickers []string) ([]domain.PriceBar, provider.FetchStats, int)
}

// PriceStore is the persistence contract for intraday bars.
type PriceStore interface {
	UpsertPrices(ctx context.Context, bars []domain.PriceBar) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PricePipeline is the price data kind's cycle. There is no dedup gate:
// (ticker, bucket_time) is naturally idempotent and the upsert resolves
// overlapping fetches. Implements job.Pipeline.
type PricePipeline struct {
	tracer    trace.Tracer
	source    PriceSource
	store     PriceStore
	tickers   []string
	retention time.Duration

	result domain.CycleResult
}

func NewPricePipeline(
	tracer trace.Tracer,
	source PriceSource,
	store PriceStore,
	tickers []domain.TickerConfig,
	retention time.Duration,
) *PricePipeline {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	symbols := make([]string, 0, len(tickers))
	for _, tc := range tickers {
		symbols = append(symbols, tc.Ticker)
	}
	return &PricePipeline{
		tracer:    tracer,
		source:    source,
		store:     store,
		tickers:   symbols,
		retention: retention,
	}
}

func (p *PricePipeline) Kind() string { return "price" }

// Fetch pulls intraday bars for all tickers; failed tickers are counted by
// the adapter and skipped, never aborting the cycle.
func (p *PricePipeline) Fetch(ctx context.Context) ([]domain.PriceBar, error) {
	_, span := p.tracer.Start(ctx, "price-pipeline.fetch")
	defer span.End()

	p.result = domain.CycleResult{}
	bars, stats, sourcesFailed := p.source.FetchPrices(ctx, p.tickers)
	p.result.Fetched = len(bars)
	p.result.Malformed = stats.Malformed
	p.result.SourcesFailed = sourcesFailed
	return bars, nil
}

// Process collapses in-batch duplicates per (ticker, bucket_time), keeping
// the last observation, so a single upsert batch never contends with itself.
func (p *PricePipeline) Process(_ context.Context, bars []domain.PriceBar) ([]domain.PriceBar, error) {
	if len(bars) == 0 {
		return nil, nil
	}

	type key struct {
		ticker string
		bucket time.Time
	}
	index := make(map[key]int, len(bars))
	out := make([]domain.PriceBar, 0, len(bars))
	for _, bar := range bars {
		k := key{ticker: bar.Ticker, bucket: bar.BucketTime}
		if at, ok := index[k]; ok {
			out[at] = bar
			p.result.Duplicates++
			continue
		}
		index[k] = len(out)
		out = append(out, bar)
	}
	return out, nil
}

func (p *PricePipeline) Persist(ctx context.Context, bars []domain.PriceBar) (int, error) {
	_, span := p.tracer.Start(ctx, "price-pipeline.persist")
	defer span.End()

	written, err := p.store.UpsertPrices(ctx, bars)
	if err != nil {
		return written, err
	}
	p.result.Written = written
	return written, nil
}

func (p *PricePipeline) Prune(ctx context.Context) (int64, error) {
	_, span := p.tracer.Start(ctx, "price-pipeline.prune")
	defer span.End()

	pruned, err := p.store.DeleteOlderThan(ctx, time.Now().UTC().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	p.result.Pruned = pruned

	r := p.result
	log.Printf("price cycle complete fetched=%d malformed=%d sources_failed=%d in_batch_dups=%d written=%d pruned=%d",
		r.Fetched, r.Malformed, r.SourcesFailed, r.Duplicates, r.Written, r.Pruned)
	return pruned, nil
}
