package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ticker-pulse/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIClassifier scores headline sentiment through the OpenAI chat API.
// One request per chunk; the model returns a JSON array aligned by index.
type OpenAIClassifier struct {
	client openAIChatClient
	model  string
}

// NewOpenAIClassifier returns nil when no API key is configured so callers
// can fall back to the keyword classifier.
func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClassifier{
		client: &openAIClient{client: client},
		model:  model,
	}
}

func (c *OpenAIClassifier) Model() string { return "llm:" + c.model }

func (c *OpenAIClassifier) ClassifyBatch(ctx context.Context, texts []string) ([]Prediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, text := range texts {
		sb.WriteString(fmt.Sprintf("index=%d\nheadline=%s\n\n", i, strings.TrimSpace(text)))
	}

	systemPrompt := "You classify financial news headline sentiment. Return ONLY a JSON array. " +
		"Each object requires: index (int), label (positive|negative|neutral), score (confidence 0..1). " +
		"One object per input index. No markdown."
	userPrompt := "Headlines:\n" + sb.String()

	completion, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty classifier completion")
	}

	raw := trimCodeFence(completion.Choices[0].Message.Content)

	var parsed []struct {
		Index int     `json:"index"`
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse classifier json: %w", err)
	}

	out := make([]Prediction, len(texts))
	filled := make([]bool, len(texts))
	for _, row := range parsed {
		if row.Index < 0 || row.Index >= len(texts) {
			continue
		}
		out[row.Index] = Prediction{Label: normalizeLabel(row.Label), Score: clamp(row.Score, 0, 1)}
		filled[row.Index] = true
	}
	for i, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("classifier response missing index %d", i)
		}
	}
	return out, nil
}

func normalizeLabel(label string) domain.SentimentLabel {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "bullish":
		return domain.LabelPositive
	case "negative", "bearish":
		return domain.LabelNegative
	default:
		return domain.LabelNeutral
	}
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
