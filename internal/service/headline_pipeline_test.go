package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticker-pulse/internal/dedup"
	"ticker-pulse/internal/domain"
	"ticker-pulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type stubHeadlineSource struct {
	byTicker map[string][]domain.Headline
	errs     map[string]error
	stats    map[string]provider.FetchStats
}

func (s *stubHeadlineSource) FetchHeadlines(_ context.Context, tc domain.TickerConfig) ([]domain.Headline, provider.FetchStats, error) {
	return s.byTicker[tc.Ticker], s.stats[tc.Ticker], s.errs[tc.Ticker]
}

type stubHeadlineStore struct {
	known       map[string]struct{}
	knownErr    error
	inserted    []domain.ClassifiedHeadline
	insertErr   error
	written     int
	deleted     int64
	deleteCut   time.Time
	deleteCalls int
}

func (s *stubHeadlineStore) KnownLinkHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	if s.knownErr != nil {
		return nil, s.knownErr
	}
	out := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := s.known[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

func (s *stubHeadlineStore) InsertHeadlines(_ context.Context, batch []domain.ClassifiedHeadline) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, batch...)
	if s.written == 0 {
		return len(batch), nil
	}
	return s.written, nil
}

func (s *stubHeadlineStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.deleteCalls++
	s.deleteCut = cutoff
	return s.deleted, nil
}

type passthroughBridge struct{}

func (passthroughBridge) Classify(_ context.Context, batch []domain.Headline) ([]domain.ClassifiedHeadline, int) {
	out := make([]domain.ClassifiedHeadline, len(batch))
	for i, h := range batch {
		out[i] = domain.ClassifiedHeadline{
			Headline:       h,
			SentimentScore: 0.5,
			SentimentLabel: domain.LabelNeutral,
		}
	}
	return out, 0
}

func testHeadline(ticker, link string) domain.Headline {
	return domain.Headline{
		Ticker:      ticker,
		Alias:       ticker,
		Headline:    "headline for " + link,
		Link:        link,
		LinkHash:    dedup.HashLink(link),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
}

func testTickers() []domain.TickerConfig {
	return []domain.TickerConfig{
		{Ticker: "AMZN", Alias: "Amazon", FeedURL: "https://news.example/amzn"},
		{Ticker: "1155.KL", Alias: "Maybank", FeedURL: "https://news.example/maybank"},
	}
}

func TestHeadlinePipelineDedupAgainstStore(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	a := testHeadline("AMZN", "https://news.example/a")
	b := testHeadline("AMZN", "https://news.example/b")
	c := testHeadline("1155.KL", "https://news.example/c")

	source := &stubHeadlineSource{byTicker: map[string][]domain.Headline{
		"AMZN":    {a, b},
		"1155.KL": {c},
	}}
	store := &stubHeadlineStore{known: map[string]struct{}{b.LinkHash: {}}}
	pipeline := NewHeadlinePipeline(tracer, source, store, passthroughBridge{}, testTickers(), 0)

	ctx := context.Background()
	raw, err := pipeline.Fetch(ctx)
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 fetched, got %d", len(raw))
	}

	classified, err := pipeline.Process(ctx, raw)
	if err != nil {
		t.Fatalf("unexpected process error: %v", err)
	}
	if len(classified) != 2 {
		t.Fatalf("known headline should be filtered, got %d", len(classified))
	}

	written, err := pipeline.Persist(ctx, classified)
	if err != nil || written != 2 {
		t.Fatalf("expected 2 written, got %d err %v", written, err)
	}
	if len(store.inserted) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(store.inserted))
	}
	if pipeline.result.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate counted, got %d", pipeline.result.Duplicates)
	}
}

func TestHeadlinePipelineSourceFailureIsolation(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	c := testHeadline("1155.KL", "https://news.example/c")

	source := &stubHeadlineSource{
		byTicker: map[string][]domain.Headline{"1155.KL": {c}},
		errs:     map[string]error{"AMZN": provider.ErrSourceUnavailable},
	}
	store := &stubHeadlineStore{}
	pipeline := NewHeadlinePipeline(tracer, source, store, passthroughBridge{}, testTickers(), 0)

	raw, err := pipeline.Fetch(context.Background())
	if err != nil {
		t.Fatalf("one unavailable source must not fail the cycle: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("surviving ticker should still fetch, got %d", len(raw))
	}
	if pipeline.result.SourcesFailed != 1 {
		t.Fatalf("expected 1 failed source, got %d", pipeline.result.SourcesFailed)
	}
}

func TestHeadlinePipelineKnownHashQueryErrorFailsCycle(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	store := &stubHeadlineStore{knownErr: errors.New("pool closed")}
	pipeline := NewHeadlinePipeline(tracer, &stubHeadlineSource{}, store, passthroughBridge{}, testTickers(), 0)

	_, err := pipeline.Process(context.Background(), []domain.Headline{testHeadline("AMZN", "https://news.example/a")})
	if err == nil {
		t.Fatal("dedup state query failure must fail the cycle")
	}
}

func TestHeadlinePipelineConflictCountsAsDuplicate(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	store := &stubHeadlineStore{written: 1}
	pipeline := NewHeadlinePipeline(tracer, &stubHeadlineSource{}, store, passthroughBridge{}, testTickers(), 0)

	batch, _ := passthroughBridge{}.Classify(context.Background(), []domain.Headline{
		testHeadline("AMZN", "https://news.example/a"),
		testHeadline("AMZN", "https://news.example/b"),
	})
	written, err := pipeline.Persist(context.Background(), batch)
	if err != nil {
		t.Fatalf("conflict must not error: %v", err)
	}
	if written != 1 || pipeline.result.Duplicates != 1 {
		t.Fatalf("expected conflict counted as duplicate, got written=%d dups=%d", written, pipeline.result.Duplicates)
	}
}

func TestHeadlinePipelinePruneUsesRetentionCutoff(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	store := &stubHeadlineStore{deleted: 3}
	pipeline := NewHeadlinePipeline(tracer, &stubHeadlineSource{}, store, passthroughBridge{}, testTickers(), 7*24*time.Hour)

	pruned, err := pipeline.Prune(context.Background())
	if err != nil || pruned != 3 {
		t.Fatalf("expected 3 pruned, got %d err %v", pruned, err)
	}
	expected := time.Now().UTC().Add(-7 * 24 * time.Hour)
	if store.deleteCut.Before(expected.Add(-time.Minute)) || store.deleteCut.After(expected.Add(time.Minute)) {
		t.Fatalf("cutoff should be now minus retention, got %v", store.deleteCut)
	}
}
