package repository

import (
	"context"
	"time"

	"ticker-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createHeadlinesTable = `
CREATE TABLE IF NOT EXISTS headlines (
    id              BIGSERIAL PRIMARY KEY,
    ticker          TEXT             NOT NULL,
    alias           TEXT             NOT NULL,
    headline        TEXT             NOT NULL,
    link            TEXT             NOT NULL,
    link_hash       TEXT             NOT NULL UNIQUE,
    published_at    TIMESTAMPTZ      NOT NULL,
    sentiment_score DOUBLE PRECISION NOT NULL,
    sentiment_label TEXT             NOT NULL,
    fetched_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_headlines_ticker_published
    ON headlines (ticker, published_at DESC);

CREATE INDEX IF NOT EXISTS idx_headlines_published
    ON headlines (published_at);
`

// PgxPool is the subset of pgxpool.Pool the repositories use.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// HeadlineRepository persists classified headlines under the link_hash
// uniqueness constraint. The constraint, not the application, is the
// authoritative dedup point: concurrent writers racing on the same link see
// exactly one insert succeed and the rest ignored.
type HeadlineRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewHeadlineRepository(pool PgxPool, tracer trace.Tracer) *HeadlineRepository {
	return &HeadlineRepository{pool: pool, tracer: tracer}
}

func (r *HeadlineRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "headline-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createHeadlinesTable)
	return err
}

// KnownLinkHashes returns which of the given hashes already exist in storage.
// Queried fresh at the start of each cycle; never cached across cycles.
func (r *HeadlineRepository) KnownLinkHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	_, span := r.tracer.Start(ctx, "headline-repo.known-link-hashes")
	defer span.End()

	known := make(map[string]struct{}, len(hashes))
	if len(hashes) == 0 {
		return known, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT link_hash FROM headlines WHERE link_hash = ANY($1)`, hashes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		known[hash] = struct{}{}
	}
	return known, rows.Err()
}

// InsertHeadlines writes classified headlines with insert-ignore semantics on
// link_hash and returns the count actually written. A conflict is the
// expected outcome of a duplicate race, not an error.
func (r *HeadlineRepository) InsertHeadlines(ctx context.Context, batch []domain.ClassifiedHeadline) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	_, span := r.tracer.Start(ctx, "headline-repo.insert-headlines")
	defer span.End()

	pgBatch := &pgx.Batch{}
	for _, h := range batch {
		pgBatch.Queue(`
INSERT INTO headlines (ticker, alias, headline, link, link_hash, published_at, sentiment_score, sentiment_label)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (link_hash) DO NOTHING`,
			h.Ticker, h.Alias, h.Headline, h.Link, h.LinkHash,
			h.PublishedAt.UTC(), h.SentimentScore, string(h.SentimentLabel),
		)
	}

	br := r.pool.SendBatch(ctx, pgBatch)
	defer br.Close()

	written := 0
	for range batch {
		tag, err := br.Exec()
		if err != nil {
			return written, err
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// ListByTickerSince returns classified headlines for a ticker published at or
// after the cutoff, oldest first.
func (r *HeadlineRepository) ListByTickerSince(ctx context.Context, ticker string, since time.Time, limit int) ([]domain.ClassifiedHeadline, error) {
	_, span := r.tracer.Start(ctx, "headline-repo.list-by-ticker-since")
	defer span.End()

	if limit <= 0 {
		limit = 500
	}

	rows, err := r.pool.Query(ctx, `
SELECT ticker, alias, headline, link, link_hash, published_at, sentiment_score, sentiment_label
FROM headlines
WHERE ticker = $1 AND published_at >= $2
ORDER BY published_at ASC
LIMIT $3`, ticker, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ClassifiedHeadline, 0, limit)
	for rows.Next() {
		var h domain.ClassifiedHeadline
		var label string
		if err := rows.Scan(&h.Ticker, &h.Alias, &h.Headline.Headline, &h.Link, &h.LinkHash,
			&h.PublishedAt, &h.SentimentScore, &label); err != nil {
			return nil, err
		}
		h.SentimentLabel = domain.SentimentLabel(label)
		h.PublishedAt = h.PublishedAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// CountByLinkHash reports how many rows share a link hash. The uniqueness
// constraint keeps this at most 1; exposed for integrity checks.
func (r *HeadlineRepository) CountByLinkHash(ctx context.Context, hash string) (int, error) {
	_, span := r.tracer.Start(ctx, "headline-repo.count-by-link-hash")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM headlines WHERE link_hash = $1`, hash).Scan(&count)
	return count, err
}

// DeleteOlderThan prunes headlines published strictly before the cutoff and
// returns the number of rows removed.
func (r *HeadlineRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "headline-repo.delete-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM headlines WHERE published_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
