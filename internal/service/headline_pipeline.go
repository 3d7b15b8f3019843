package service

import (
	"context"
	"errors"
	"log"
	"time"

	"ticker-pulse/internal/classify"
	"ticker-pulse/internal/dedup"
	"ticker-pulse/internal/domain"
	"ticker-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

// HeadlineSource is the headline source adapter contract.
type HeadlineSource interface {
	FetchHeadlines(ctx context.Context, tc domain.TickerConfig) ([]domain.Headline, provider.FetchStats, error)
}

// HeadlineStore is the persistence contract for classified headlines.
type HeadlineStore interface {
	KnownLinkHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)
	InsertHeadlines(ctx context.Context, batch []domain.ClassifiedHeadline) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HeadlineBridge hands a batch to the external classifier.
type HeadlineBridge interface {
	Classify(ctx context.Context, batch []domain.Headline) ([]domain.ClassifiedHeadline, int)
}

// HeadlinePipeline is the headline data kind's cycle: fetch per ticker with
// failure isolation, dedup against persisted state, classify, insert-ignore,
// prune. Implements job.Pipeline.
type HeadlinePipeline struct {
	tracer    trace.Tracer
	source    HeadlineSource
	store     HeadlineStore
	bridge    HeadlineBridge
	tickers   []domain.TickerConfig
	retention time.Duration

	// result accumulates counts across the stages of the current cycle.
	// Cycles for one data kind never overlap; the runner is single-threaded.
	result domain.CycleResult
}

func NewHeadlinePipeline(
	tracer trace.Tracer,
	source HeadlineSource,
	store HeadlineStore,
	bridge HeadlineBridge,
	tickers []domain.TickerConfig,
	retention time.Duration,
) *HeadlinePipeline {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &HeadlinePipeline{
		tracer:    tracer,
		source:    source,
		store:     store,
		bridge:    bridge,
		tickers:   tickers,
		retention: retention,
	}
}

func (p *HeadlinePipeline) Kind() string { return "headline" }

// Fetch pulls each ticker's feed. A ticker whose source is unavailable is
// skipped and counted; its headlines were never marked seen, so the next
// cycle retries them for free. Fetch itself never fails the cycle.
func (p *HeadlinePipeline) Fetch(ctx context.Context) ([]domain.Headline, error) {
	_, span := p.tracer.Start(ctx, "headline-pipeline.fetch")
	defer span.End()

	p.result = domain.CycleResult{}
	batch := make([]domain.Headline, 0, len(p.tickers)*16)
	for _, tc := range p.tickers {
		headlines, stats, err := p.source.FetchHeadlines(ctx, tc)
		p.result.Malformed += stats.Malformed
		if err != nil {
			p.result.SourcesFailed++
			if errors.Is(err, provider.ErrSourceUnavailable) {
				log.Printf("headline source unavailable for %s: %v", tc.Ticker, err)
			} else {
				log.Printf("headline fetch error for %s: %v", tc.Ticker, err)
			}
			continue
		}
		batch = append(batch, headlines...)
	}
	p.result.Fetched = len(batch)
	return batch, nil
}

// Process filters the batch against persisted link hashes plus in-batch
// duplicates, then classifies the survivors. The known-hash set is queried
// fresh each cycle; a failing query fails the cycle (stale dedup state would
// waste classifier work, and the write-side constraint still needs storage).
func (p *HeadlinePipeline) Process(ctx context.Context, batch []domain.Headline) ([]domain.ClassifiedHeadline, error) {
	_, span := p.tracer.Start(ctx, "headline-pipeline.process")
	defer span.End()

	if len(batch) == 0 {
		return nil, nil
	}

	known, err := p.store.KnownLinkHashes(ctx, dedup.Hashes(batch))
	if err != nil {
		return nil, err
	}

	fresh := dedup.FilterNew(batch, known)
	p.result.Duplicates = len(batch) - len(fresh)

	classified, dropped := p.bridge.Classify(ctx, fresh)
	p.result.ClassifyDropped = dropped
	return classified, nil
}

// Persist inserts the classified batch. Conflicts from a concurrent cycle
// racing on the same link are silently ignored by the constraint and show up
// as written < len(batch).
func (p *HeadlinePipeline) Persist(ctx context.Context, batch []domain.ClassifiedHeadline) (int, error) {
	_, span := p.tracer.Start(ctx, "headline-pipeline.persist")
	defer span.End()

	written, err := p.store.InsertHeadlines(ctx, batch)
	if err != nil {
		return written, err
	}
	p.result.Written = written
	p.result.Duplicates += len(batch) - written
	return written, nil
}

// Prune removes headlines older than the retention window. Runs after writes
// so a record is never pruned before it could be written in the same cycle.
func (p *HeadlinePipeline) Prune(ctx context.Context) (int64, error) {
	_, span := p.tracer.Start(ctx, "headline-pipeline.prune")
	defer span.End()

	pruned, err := p.store.DeleteOlderThan(ctx, time.Now().UTC().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	p.result.Pruned = pruned

	r := p.result
	log.Printf("headline cycle complete fetched=%d malformed=%d sources_failed=%d duplicates=%d classify_dropped=%d written=%d pruned=%d",
		r.Fetched, r.Malformed, r.SourcesFailed, r.Duplicates, r.ClassifyDropped, r.Written, r.Pruned)
	return pruned, nil
}

var _ HeadlineBridge = (*classify.Bridge)(nil)
