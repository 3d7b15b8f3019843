package domain

import "time"

// TickerConfig is the static per-ticker configuration supplied at process
// start: the exchange ticker, a human-readable alias used for feed searches,
// and the resolved RSS feed URL.
type TickerConfig struct {
	Ticker  string `json:"ticker"`
	Alias   string `json:"alias"`
	FeedURL string `json:"feed_url"`
}

// Headline is a raw headline record as returned by a source adapter, before
// classification. LinkHash is the stable identity used for deduplication.
type Headline struct {
	Ticker      string    `json:"ticker"`
	Alias       string    `json:"alias"`
	Headline    string    `json:"headline"`
	Link        string    `json:"link"`
	LinkHash    string    `json:"link_hash"`
	PublishedAt time.Time `json:"published_at"`
}

type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNegative SentimentLabel = "negative"
	LabelNeutral  SentimentLabel = "neutral"
)

func (l SentimentLabel) IsValid() bool {
	return l == LabelPositive || l == LabelNegative || l == LabelNeutral
}

// ClassifiedHeadline is a Headline augmented with classifier output.
// SentimentScore is the classifier confidence in [0,1]; direction is carried
// by the label.
type ClassifiedHeadline struct {
	Headline
	SentimentScore float64        `json:"sentiment_score"`
	SentimentLabel SentimentLabel `json:"sentiment_label"`
}

// PriceBar is one intraday close/volume observation. Identity is
// (Ticker, BucketTime); re-fetching the same bar upserts, never duplicates.
type PriceBar struct {
	Ticker     string    `json:"ticker"`
	BucketTime time.Time `json:"bucket_time"`
	ClosePrice float64   `json:"close_price"`
	Volume     int64     `json:"volume"`
}

// AggregatedBucket is one hourly bucket of the joined sentiment/price view.
// Nil pointers mean no data for that component in the bucket, which is
// distinct from a zero value.
type AggregatedBucket struct {
	BucketTime    time.Time      `json:"bucket_time"`
	MeanSentiment *float64       `json:"mean_sentiment_score"`
	DominantLabel SentimentLabel `json:"dominant_label,omitempty"`
	HeadlineCount int            `json:"headline_count"`
	ClosePrice    *float64       `json:"close_price"`
	Volume        *int64         `json:"volume"`
}

// CycleResult summarizes one scheduler cycle for logging.
type CycleResult struct {
	Fetched         int
	Malformed       int
	SourcesFailed   int
	Duplicates      int
	ClassifyDropped int
	Written         int
	Pruned          int64
}
