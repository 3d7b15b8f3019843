package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ticker-pulse/internal/dedup"
	"ticker-pulse/internal/domain"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxHeadlineLen = 300

// RSSProvider fetches headline records from a ticker's configured RSS feed.
type RSSProvider struct {
	parser   *gofeed.Parser
	tracer   trace.Tracer
	limiter  *RateLimiter
	maxItems int
}

func NewRSSProvider(tracer trace.Tracer, maxItems int) *RSSProvider {
	if maxItems <= 0 {
		maxItems = 40
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: 20 * time.Second}
	return &RSSProvider{
		parser:   parser,
		tracer:   tracer,
		limiter:  NewRateLimiter(4, time.Second),
		maxItems: maxItems,
	}
}

// FetchHeadlines returns the feed's current headline records for one ticker.
// Transient fetch failures return ErrSourceUnavailable with an empty batch.
// Entries missing a link or a parseable publish date are dropped and counted
// in stats, never failing the batch.
func (p *RSSProvider) FetchHeadlines(ctx context.Context, tc domain.TickerConfig) ([]domain.Headline, FetchStats, error) {
	_, span := p.tracer.Start(ctx, "rss.fetch-headlines")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", tc.Ticker))

	stats := FetchStats{}
	if strings.TrimSpace(tc.FeedURL) == "" {
		return nil, stats, fmt.Errorf("feed url is required for %s", tc.Ticker)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, stats, err
	}

	feed, err := p.parser.ParseURLWithContext(tc.FeedURL, ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: fetch feed for %s: %v", ErrSourceUnavailable, tc.Ticker, err)
	}

	headlines := make([]domain.Headline, 0, min(p.maxItems, len(feed.Items)))
	for i, item := range feed.Items {
		if i >= p.maxItems {
			break
		}
		title := sanitizeText(item.Title, maxHeadlineLen)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			stats.Malformed++
			continue
		}
		publishedAt := itemPublishedAt(item)
		if publishedAt.IsZero() {
			stats.Malformed++
			continue
		}
		headlines = append(headlines, domain.Headline{
			Ticker:      tc.Ticker,
			Alias:       tc.Alias,
			Headline:    title,
			Link:        link,
			LinkHash:    dedup.HashLink(link),
			PublishedAt: publishedAt,
		})
	}

	return headlines, stats, nil
}

func itemPublishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func sanitizeText(v string, maxLen int) string {
	v = strings.Join(strings.Fields(v), " ")
	if len(v) <= maxLen {
		return v
	}
	// Cut on a rune boundary; a byte slice can split a multibyte rune and
	// produce invalid UTF-8, which Postgres rejects on TEXT columns.
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}
