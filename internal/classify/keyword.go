package classify

import (
	"context"
	"strings"

	"ticker-pulse/internal/domain"
)

var positiveTokens = []string{
	"beat", "surge", "rally", "record", "growth", "profit", "upgrade",
	"dividend", "expansion", "buyback", "soar", "gain", "strong",
}

var negativeTokens = []string{
	"miss", "plunge", "lawsuit", "fraud", "recall", "downgrade", "layoff",
	"loss", "decline", "probe", "slump", "default", "weak", "cut",
}

// KeywordClassifier is the offline fallback when no LLM key is configured.
// Confidence scales with the keyword margin and stays deliberately modest.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

func (c *KeywordClassifier) Model() string { return "keyword:v1" }

func (c *KeywordClassifier) ClassifyBatch(_ context.Context, texts []string) ([]Prediction, error) {
	out := make([]Prediction, len(texts))
	for i, text := range texts {
		out[i] = scoreText(text)
	}
	return out, nil
}

func scoreText(text string) Prediction {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return Prediction{Label: domain.LabelNeutral, Score: 0.25}
	}

	pos := countMatches(lowered, positiveTokens)
	neg := countMatches(lowered, negativeTokens)
	margin := pos - neg

	label := domain.LabelNeutral
	if margin > 0 {
		label = domain.LabelPositive
	} else if margin < 0 {
		label = domain.LabelNegative
	}
	if margin < 0 {
		margin = -margin
	}
	score := clamp(0.35+0.1*float64(margin), 0.25, 0.7)
	return Prediction{Label: label, Score: score}
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}
