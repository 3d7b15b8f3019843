package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ticker-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HeadlineReader is the read side of headline storage.
type HeadlineReader interface {
	ListByTickerSince(ctx context.Context, ticker string, since time.Time, limit int) ([]domain.ClassifiedHeadline, error)
}

// PriceReader is the read side of price storage.
type PriceReader interface {
	ListByTickerSince(ctx context.Context, ticker string, since time.Time, limit int) ([]domain.PriceBar, error)
}

// RedisClient is the subset of redis.Client the view service uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// ViewService builds the read-only aggregated sentiment/price view: both
// series queried independently and merged onto an hourly grid. It never
// mutates persisted state.
type ViewService struct {
	tracer    trace.Tracer
	headlines HeadlineReader
	prices    PriceReader
	redis     RedisClient
	retention time.Duration
	cacheTTL  time.Duration
}

func NewViewService(
	tracer trace.Tracer,
	headlines HeadlineReader,
	prices PriceReader,
	redisClient RedisClient,
	retention time.Duration,
	cacheTTL time.Duration,
) *ViewService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &ViewService{
		tracer:    tracer,
		headlines: headlines,
		prices:    prices,
		redis:     redisClient,
		retention: retention,
		cacheTTL:  cacheTTL,
	}
}

// GetAggregatedView returns the hourly joined view for a ticker. hours bounds
// the window and is clamped to the retention window; pass 0 for the full
// retained range. Results are cached briefly in redis; staleness within one
// cycle interval is acceptable for a visualization client.
func (s *ViewService) GetAggregatedView(ctx context.Context, ticker string, hours int) ([]domain.AggregatedBucket, error) {
	_, span := s.tracer.Start(ctx, "view-service.get-aggregated-view")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", ticker), attribute.Int("hours", hours))

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	maxHours := int(s.retention / time.Hour)
	if hours <= 0 || hours > maxHours {
		hours = maxHours
	}

	cacheKey := fmt.Sprintf("view:%s:%d", ticker, hours)
	if s.redis != nil {
		if cached, err := s.getViewCache(ctx, cacheKey); err != nil {
			log.Printf("view cache read error: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	now := time.Now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	headlines, err := s.headlines.ListByTickerSince(ctx, ticker, since, 0)
	if err != nil {
		return nil, fmt.Errorf("query headlines for %s: %w", ticker, err)
	}
	bars, err := s.prices.ListByTickerSince(ctx, ticker, since, 0)
	if err != nil {
		return nil, fmt.Errorf("query prices for %s: %w", ticker, err)
	}

	buckets := BuildBuckets(headlines, bars, now)

	if s.redis != nil && s.cacheTTL > 0 {
		if err := s.setViewCache(ctx, cacheKey, buckets); err != nil {
			log.Printf("view cache write error: %v", err)
		}
	}
	return buckets, nil
}

// RecentHeadlines returns classified headlines for a ticker, newest last,
// capped at limit.
func (s *ViewService) RecentHeadlines(ctx context.Context, ticker string, limit int) ([]domain.ClassifiedHeadline, error) {
	_, span := s.tracer.Start(ctx, "view-service.recent-headlines")
	defer span.End()

	return s.headlines.ListByTickerSince(ctx, strings.ToUpper(strings.TrimSpace(ticker)),
		time.Now().UTC().Add(-s.retention), limit)
}

// RecentPrices returns price bars for a ticker, oldest first, capped at limit.
func (s *ViewService) RecentPrices(ctx context.Context, ticker string, limit int) ([]domain.PriceBar, error) {
	_, span := s.tracer.Start(ctx, "view-service.recent-prices")
	defer span.End()

	return s.prices.ListByTickerSince(ctx, strings.ToUpper(strings.TrimSpace(ticker)),
		time.Now().UTC().Add(-s.retention), limit)
}

// BuildBuckets merges two ascending series onto a uniform hourly grid from
// the first observation to now. Sentiment aggregates as mean score plus a
// dominant label; price as the last observed close and volume in the bucket.
// A bucket missing a component carries nil, never zero: silence is not
// neutral sentiment.
func BuildBuckets(headlines []domain.ClassifiedHeadline, bars []domain.PriceBar, now time.Time) []domain.AggregatedBucket {
	if len(headlines) == 0 && len(bars) == 0 {
		return nil
	}

	start := now
	if len(headlines) > 0 && headlines[0].PublishedAt.Before(start) {
		start = headlines[0].PublishedAt
	}
	if len(bars) > 0 && bars[0].BucketTime.Before(start) {
		start = bars[0].BucketTime
	}
	start = start.UTC().Truncate(time.Hour)
	end := now.UTC().Truncate(time.Hour)

	buckets := make([]domain.AggregatedBucket, 0, int(end.Sub(start)/time.Hour)+1)
	hi, pi := 0, 0
	for bucketTime := start; !bucketTime.After(end); bucketTime = bucketTime.Add(time.Hour) {
		bucketEnd := bucketTime.Add(time.Hour)
		bucket := domain.AggregatedBucket{BucketTime: bucketTime}

		sum := 0.0
		labelCounts := map[domain.SentimentLabel]int{}
		for hi < len(headlines) && headlines[hi].PublishedAt.Before(bucketEnd) {
			if !headlines[hi].PublishedAt.Before(bucketTime) {
				sum += headlines[hi].SentimentScore
				labelCounts[headlines[hi].SentimentLabel]++
				bucket.HeadlineCount++
			}
			hi++
		}
		if bucket.HeadlineCount > 0 {
			mean := sum / float64(bucket.HeadlineCount)
			bucket.MeanSentiment = &mean
			bucket.DominantLabel = dominantLabel(labelCounts)
		}

		for pi < len(bars) && bars[pi].BucketTime.Before(bucketEnd) {
			if !bars[pi].BucketTime.Before(bucketTime) {
				closePrice := bars[pi].ClosePrice
				volume := bars[pi].Volume
				bucket.ClosePrice = &closePrice
				bucket.Volume = &volume
			}
			pi++
		}

		buckets = append(buckets, bucket)
	}
	return buckets
}

// dominantLabel picks the most frequent label; ties resolve by fixed
// precedence so the result is deterministic.
func dominantLabel(counts map[domain.SentimentLabel]int) domain.SentimentLabel {
	precedence := []domain.SentimentLabel{domain.LabelPositive, domain.LabelNegative, domain.LabelNeutral}
	best := domain.LabelNeutral
	bestCount := -1
	for _, label := range precedence {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

func (s *ViewService) setViewCache(ctx context.Context, key string, buckets []domain.AggregatedBucket) error {
	data, err := json.Marshal(buckets)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *ViewService) getViewCache(ctx context.Context, key string) ([]domain.AggregatedBucket, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var buckets []domain.AggregatedBucket
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}
