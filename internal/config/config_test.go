package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "API_KEY", "TICKERS", "FEED_URL_TEMPLATE",
		"FEED_MAX_ITEMS", "HEADLINE_POLL_SECS", "PRICE_POLL_SECS", "PRICE_INTERVAL",
		"PRICE_LOOKBACK", "PRICE_API_BASE", "RETENTION_DAYS", "OPENAI_API_KEY",
		"OPENAI_MODEL", "CLASSIFIER_BATCH_SIZE", "VIEW_CACHE_TTL_SECS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.HeadlinePollSecs != 300 || cfg.PricePollSecs != 300 {
		t.Fatalf("expected default poll secs 300, got %d/%d", cfg.HeadlinePollSecs, cfg.PricePollSecs)
	}
	if cfg.PriceInterval != "5m" || cfg.PriceLookback != "1d" {
		t.Fatalf("unexpected price window defaults: %s %s", cfg.PriceInterval, cfg.PriceLookback)
	}
	if cfg.RetentionDays != 30 {
		t.Fatalf("expected default retention 30 days, got %d", cfg.RetentionDays)
	}
	if len(cfg.Tickers) != 4 {
		t.Fatalf("expected 4 default tickers, got %d", len(cfg.Tickers))
	}
	if cfg.Tickers[0].Ticker != "AMZN" || cfg.Tickers[0].Alias != "Amazon" {
		t.Fatalf("unexpected first default ticker: %+v", cfg.Tickers[0])
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TICKERS", "tsla:Tesla;NVDA:Nvidia")
	t.Setenv("HEADLINE_POLL_SECS", "60")
	t.Setenv("RETENTION_DAYS", "7")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("unexpected database url: %s", cfg.DatabaseURL)
	}
	if cfg.HeadlinePollSecs != 60 || cfg.RetentionDays != 7 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.Tickers) != 2 || cfg.Tickers[0].Ticker != "TSLA" {
		t.Fatalf("expected uppercased parsed tickers, got %+v", cfg.Tickers)
	}

	t.Setenv("HEADLINE_POLL_SECS", "bad")
	cfg = Load()
	if cfg.HeadlinePollSecs != 300 {
		t.Fatalf("invalid poll secs should fall back to default, got %d", cfg.HeadlinePollSecs)
	}
}

func TestParseTickers(t *testing.T) {
	tickers := parseTickers("AMZN:Amazon; 1155.KL : Maybank ;;:orphan alias;AMZN:Amazon Again", "https://news.example/rss?q=%s")
	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers after dedupe and validation, got %+v", tickers)
	}
	if tickers[0].FeedURL != "https://news.example/rss?q=Amazon" {
		t.Fatalf("unexpected feed url: %s", tickers[0].FeedURL)
	}
	if tickers[1].Ticker != "1155.KL" || tickers[1].Alias != "Maybank" {
		t.Fatalf("unexpected second ticker: %+v", tickers[1])
	}
}

func TestParseTickersAliasDefaultsToTicker(t *testing.T) {
	tickers := parseTickers("NVDA", "https://news.example/rss?q=%s")
	if len(tickers) != 1 || tickers[0].Alias != "NVDA" {
		t.Fatalf("expected alias to default to the ticker, got %+v", tickers)
	}
}

func TestTickerConfigFor(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if _, ok := cfg.TickerConfigFor("amzn"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if _, ok := cfg.TickerConfigFor("UNKNOWN"); ok {
		t.Fatal("unknown tickers must not resolve")
	}
}
