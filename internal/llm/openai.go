package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig carries connection settings. Token limits travel with each
// call's Decoding.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient talks to any OpenAI compatible chat completions endpoint,
// Gemini's included.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(cfg OpenAIConfig, apiKey string) (*OpenAIClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInit)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrInit)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(timeout),
			option.WithMaxRetries(0),
		),
		model: model,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, decoding Decoding) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(decoding.Temperature),
	}
	if decoding.TopP > 0 {
		params.TopP = openai.Float(decoding.TopP)
	}
	if decoding.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(decoding.MaxOutputTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// OpenAIFactory creates one client per API key.
type OpenAIFactory struct {
	Config OpenAIConfig
}

func (f OpenAIFactory) New(apiKey string) (Generator, error) {
	return NewOpenAIClient(f.Config, apiKey)
}
