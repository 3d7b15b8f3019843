package service

import (
	"context"
	"testing"
	"time"

	"ticker-pulse/internal/domain"
	"ticker-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type stubPriceSource struct {
	bars          []domain.PriceBar
	stats         provider.FetchStats
	sourcesFailed int
	seenTickers   []string
}

func (s *stubPriceSource) FetchPrices(_ context.Context, tickers []string) ([]domain.PriceBar, provider.FetchStats, int) {
	s.seenTickers = tickers
	return s.bars, s.stats, s.sourcesFailed
}

type stubPriceStore struct {
	upserted  []domain.PriceBar
	deleted   int64
	deleteCut time.Time
}

func (s *stubPriceStore) UpsertPrices(_ context.Context, bars []domain.PriceBar) (int, error) {
	s.upserted = append(s.upserted, bars...)
	return len(bars), nil
}

func (s *stubPriceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.deleteCut = cutoff
	return s.deleted, nil
}

func testBar(ticker string, at time.Time, closePrice float64) domain.PriceBar {
	return domain.PriceBar{Ticker: ticker, BucketTime: at, ClosePrice: closePrice, Volume: 100}
}

func TestPricePipelineFetch(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	now := time.Now().UTC().Truncate(5 * time.Minute)
	source := &stubPriceSource{
		bars:          []domain.PriceBar{testBar("AMZN", now, 180)},
		stats:         provider.FetchStats{Malformed: 2},
		sourcesFailed: 1,
	}
	pipeline := NewPricePipeline(tracer, source, &stubPriceStore{}, testTickers(), 0)

	bars, err := pipeline.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if len(source.seenTickers) != 2 || source.seenTickers[0] != "AMZN" {
		t.Fatalf("expected configured symbols passed through, got %v", source.seenTickers)
	}
	if pipeline.result.Malformed != 2 || pipeline.result.SourcesFailed != 1 {
		t.Fatalf("counters not carried: %+v", pipeline.result)
	}
}

func TestPricePipelineProcessLastWins(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	now := time.Now().UTC().Truncate(5 * time.Minute)
	pipeline := NewPricePipeline(tracer, &stubPriceSource{}, &stubPriceStore{}, testTickers(), 0)

	out, err := pipeline.Process(context.Background(), []domain.PriceBar{
		testBar("AMZN", now, 180),
		testBar("1155.KL", now, 9.8),
		testBar("AMZN", now, 181),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 bars after in-batch dedupe, got %d", len(out))
	}
	if out[0].Ticker != "AMZN" || out[0].ClosePrice != 181 {
		t.Fatalf("last observation should win in place, got %+v", out[0])
	}
	if pipeline.result.Duplicates != 1 {
		t.Fatalf("expected 1 in-batch duplicate counted, got %d", pipeline.result.Duplicates)
	}
}

func TestPricePipelinePersistAndPrune(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	now := time.Now().UTC().Truncate(5 * time.Minute)
	store := &stubPriceStore{deleted: 4}
	pipeline := NewPricePipeline(tracer, &stubPriceSource{}, store, testTickers(), 14*24*time.Hour)

	written, err := pipeline.Persist(context.Background(), []domain.PriceBar{testBar("AMZN", now, 180)})
	if err != nil || written != 1 {
		t.Fatalf("expected 1 written, got %d err %v", written, err)
	}

	pruned, err := pipeline.Prune(context.Background())
	if err != nil || pruned != 4 {
		t.Fatalf("expected 4 pruned, got %d err %v", pruned, err)
	}
	expected := time.Now().UTC().Add(-14 * 24 * time.Hour)
	if store.deleteCut.Before(expected.Add(-time.Minute)) || store.deleteCut.After(expected.Add(time.Minute)) {
		t.Fatalf("cutoff should be now minus retention, got %v", store.deleteCut)
	}
}
