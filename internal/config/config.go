package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"ticker-pulse/internal/domain"
)

const defaultFeedTemplate = "https://news.google.com/rss/search?q=%s"

// defaultTickers mirrors the pipeline's original watchlist.
const defaultTickers = "AMZN:Amazon;1155.KL:Maybank;1066.KL:RHB;6947.KL:Celcomdigi"

type Config struct {
	DatabaseURL string
	RedisURL    string
	APIKey      string

	Tickers         []domain.TickerConfig
	FeedURLTemplate string
	FeedMaxItems    int

	HeadlinePollSecs int
	PricePollSecs    int
	PriceInterval    string
	PriceLookback    string
	PriceAPIBase     string
	RetentionDays    int

	OpenAIAPIKey        string
	OpenAIModel         string
	ClassifierBatchSize int

	ViewCacheTTLSecs int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		APIKey:       strings.TrimSpace(os.Getenv("API_KEY")),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.FeedURLTemplate = strings.TrimSpace(os.Getenv("FEED_URL_TEMPLATE"))
	if cfg.FeedURLTemplate == "" {
		cfg.FeedURLTemplate = defaultFeedTemplate
	}

	tickerSpec := strings.TrimSpace(os.Getenv("TICKERS"))
	if tickerSpec == "" {
		tickerSpec = defaultTickers
	}
	cfg.Tickers = parseTickers(tickerSpec, cfg.FeedURLTemplate)
	if len(cfg.Tickers) == 0 {
		log.Printf("Warning: no valid entries in TICKERS=%q", tickerSpec)
	}

	cfg.FeedMaxItems = 40
	if v := strings.TrimSpace(os.Getenv("FEED_MAX_ITEMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FeedMaxItems = n
		}
	}

	cfg.HeadlinePollSecs = 300
	if v := os.Getenv("HEADLINE_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HeadlinePollSecs = n
		}
	}

	cfg.PricePollSecs = 300
	if v := os.Getenv("PRICE_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PricePollSecs = n
		}
	}

	cfg.PriceInterval = strings.TrimSpace(os.Getenv("PRICE_INTERVAL"))
	if cfg.PriceInterval == "" {
		cfg.PriceInterval = "5m"
	}

	cfg.PriceLookback = strings.TrimSpace(os.Getenv("PRICE_LOOKBACK"))
	if cfg.PriceLookback == "" {
		cfg.PriceLookback = "1d"
	}

	cfg.PriceAPIBase = strings.TrimSpace(os.Getenv("PRICE_API_BASE"))
	if cfg.PriceAPIBase == "" {
		cfg.PriceAPIBase = "https://query1.finance.yahoo.com"
	}

	cfg.RetentionDays = 30
	if v := strings.TrimSpace(os.Getenv("RETENTION_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, falling back to keyword classifier")
	}

	cfg.ClassifierBatchSize = 16
	if v := strings.TrimSpace(os.Getenv("CLASSIFIER_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClassifierBatchSize = n
		}
	}

	cfg.ViewCacheTTLSecs = 60
	if v := strings.TrimSpace(os.Getenv("VIEW_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ViewCacheTTLSecs = n
		}
	}

	return cfg
}

// TickerConfigFor returns the configuration for a ticker, matching
// case-insensitively, or false if the ticker is not tracked.
func (c *Config) TickerConfigFor(ticker string) (domain.TickerConfig, bool) {
	for _, tc := range c.Tickers {
		if strings.EqualFold(tc.Ticker, ticker) {
			return tc, true
		}
	}
	return domain.TickerConfig{}, false
}

// parseTickers parses "TICKER:Alias;TICKER:Alias" pairs and resolves each
// alias against the feed URL template. Entries without an alias use the
// ticker itself as the search term.
func parseTickers(spec, template string) []domain.TickerConfig {
	entries := strings.Split(spec, ";")
	out := make([]domain.TickerConfig, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ticker, alias, _ := strings.Cut(entry, ":")
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		alias = strings.TrimSpace(alias)
		if ticker == "" {
			continue
		}
		if alias == "" {
			alias = ticker
		}
		if _, ok := seen[ticker]; ok {
			continue
		}
		seen[ticker] = struct{}{}
		out = append(out, domain.TickerConfig{
			Ticker:  ticker,
			Alias:   alias,
			FeedURL: fmt.Sprintf(template, url.QueryEscape(alias)),
		})
	}
	return out
}
