package repository

import (
	"context"
	"time"

	"ticker-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createPricesTable = `
CREATE TABLE IF NOT EXISTS prices (
    ticker      TEXT             NOT NULL,
    bucket_time TIMESTAMPTZ      NOT NULL,
    close_price DOUBLE PRECISION NOT NULL,
    volume      BIGINT           NOT NULL,
    PRIMARY KEY (ticker, bucket_time)
);

CREATE INDEX IF NOT EXISTS idx_prices_bucket_time
    ON prices (bucket_time);
`

// PriceRepository persists intraday bars keyed by (ticker, bucket_time).
// Writes are upserts: re-fetching an overlapping window overwrites close and
// volume with the latest observation instead of duplicating rows.
type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

func (r *PriceRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "price-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPricesTable)
	return err
}

// UpsertPrices writes bars with last-write-wins semantics per compound key
// and returns the number of statements applied.
func (r *PriceRepository) UpsertPrices(ctx context.Context, bars []domain.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	_, span := r.tracer.Start(ctx, "price-repo.upsert-prices")
	defer span.End()

	pgBatch := &pgx.Batch{}
	for _, bar := range bars {
		pgBatch.Queue(`
INSERT INTO prices (ticker, bucket_time, close_price, volume)
VALUES ($1, $2, $3, $4)
ON CONFLICT (ticker, bucket_time) DO UPDATE SET
    close_price = EXCLUDED.close_price,
    volume = EXCLUDED.volume`,
			bar.Ticker, bar.BucketTime.UTC(), bar.ClosePrice, bar.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, pgBatch)
	defer br.Close()

	written := 0
	for range bars {
		tag, err := br.Exec()
		if err != nil {
			return written, err
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}

// ListByTickerSince returns bars for a ticker at or after the cutoff,
// oldest first.
func (r *PriceRepository) ListByTickerSince(ctx context.Context, ticker string, since time.Time, limit int) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "price-repo.list-by-ticker-since")
	defer span.End()

	if limit <= 0 {
		limit = 2000
	}

	rows, err := r.pool.Query(ctx, `
SELECT ticker, bucket_time, close_price, volume
FROM prices
WHERE ticker = $1 AND bucket_time >= $2
ORDER BY bucket_time ASC
LIMIT $3`, ticker, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PriceBar, 0, 256)
	for rows.Next() {
		var bar domain.PriceBar
		if err := rows.Scan(&bar.Ticker, &bar.BucketTime, &bar.ClosePrice, &bar.Volume); err != nil {
			return nil, err
		}
		bar.BucketTime = bar.BucketTime.UTC()
		out = append(out, bar)
	}
	return out, rows.Err()
}

// DeleteOlderThan prunes bars strictly before the cutoff and returns the
// number of rows removed.
func (r *PriceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "price-repo.delete-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM prices WHERE bucket_time < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
