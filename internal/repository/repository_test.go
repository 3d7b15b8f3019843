package repository

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestInsertHeadlinesEmptyBatch(t *testing.T) {
	repo := NewHeadlineRepository(nil, trace.NewNoopTracerProvider().Tracer("test"))

	written, err := repo.InsertHeadlines(context.Background(), nil)
	if err != nil || written != 0 {
		t.Fatalf("empty batch should be a no-op, got %d err %v", written, err)
	}
}

func TestKnownLinkHashesEmptyInput(t *testing.T) {
	repo := NewHeadlineRepository(nil, trace.NewNoopTracerProvider().Tracer("test"))

	known, err := repo.KnownLinkHashes(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(known) != 0 {
		t.Fatalf("expected empty known set, got %v", known)
	}
}

func TestUpsertPricesEmptyBatch(t *testing.T) {
	repo := NewPriceRepository(nil, trace.NewNoopTracerProvider().Tracer("test"))

	written, err := repo.UpsertPrices(context.Background(), nil)
	if err != nil || written != 0 {
		t.Fatalf("empty batch should be a no-op, got %d err %v", written, err)
	}
}
