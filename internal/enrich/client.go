package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
)

// ModelAPI is the slice of the OpenAI-compatible API the enrichment stage
// uses. Tests substitute fakes.
type ModelAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds model API settings for the enrichment stage.
type Config struct {
	APIKey         string
	BaseURL        string // OpenAI-compatible endpoint override
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int

	ChatConcurrency      int64
	EmbeddingConcurrency int64

	ChatRetries int
	ChatBackoff time.Duration

	EmbeddingBatchSize int
	BatchInterval      time.Duration
}

// DefaultConfig returns the defaults used when the environment provides none.
func DefaultConfig() Config {
	return Config{
		APIKey:               os.Getenv("FOUNDATION_API_KEY"),
		BaseURL:              os.Getenv("FOUNDATION_API_BASE_URL"),
		ChatModel:            "gpt-4o-mini",
		EmbeddingModel:       "text-embedding-3-small",
		Temperature:          0.3,
		MaxTokens:            500,
		ChatConcurrency:      3,
		EmbeddingConcurrency: 5,
		ChatRetries:          3,
		ChatBackoff:          2 * time.Second,
		EmbeddingBatchSize:   16,
		BatchInterval:        500 * time.Millisecond,
	}
}

func (c Config) normalized() Config {
	if c.ChatConcurrency < 1 {
		c.ChatConcurrency = 1
	}
	if c.EmbeddingConcurrency < 1 {
		c.EmbeddingConcurrency = 1
	}
	if c.ChatRetries < 1 {
		c.ChatRetries = 1
	}
	if c.EmbeddingBatchSize < 1 {
		c.EmbeddingBatchSize = 1
	}
	return c
}

// Client wraps the model API with independent concurrency caps for the chat
// and embedding endpoints. These semaphores are the only points where
// multiple enrichment calls are in flight simultaneously.
type Client struct {
	api      ModelAPI
	cfg      Config
	chatSem  *semaphore.Weighted
	embedSem *semaphore.Weighted
	logger   *slog.Logger
}

// NewClient builds a client from configuration. Without an API key the
// client is unavailable and the analyzer stays in fallback-only mode.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.normalized()

	var api ModelAPI
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		api = openai.NewClientWithConfig(oc)
	}
	return newClient(api, cfg, logger)
}

// NewClientWithAPI wires an explicit API implementation, used in tests.
func NewClientWithAPI(api ModelAPI, cfg Config, logger *slog.Logger) *Client {
	return newClient(api, cfg.normalized(), logger)
}

func newClient(api ModelAPI, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		api:      api,
		cfg:      cfg,
		chatSem:  semaphore.NewWeighted(cfg.ChatConcurrency),
		embedSem: semaphore.NewWeighted(cfg.EmbeddingConcurrency),
		logger:   logger,
	}
}

// Available reports whether the remote model API can be called at all.
func (c *Client) Available() bool {
	return c.api != nil
}

// Config returns the client's effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// ChatJSON sends one user prompt with a JSON-object response format hint and
// returns the raw completion content.
func (c *Client) ChatJSON(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt, true)
}

// Complete sends one user prompt without a response format constraint.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, prompt, false)
}

func (c *Client) chat(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("model api not configured")
	}
	if err := c.chatSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.chatSem.Release(1)

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned from model %s", c.cfg.ChatModel)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed requests vectors for a batch of texts. The API may return items out
// of submission order; results are re-aligned by the declared per-item index
// so the output is positionally aligned with texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.api == nil {
		return nil, fmt.Errorf("model api not configured")
	}
	if err := c.embedSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.embedSem.Release(1)

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			c.logger.Warn("embedding item index out of range",
				"index", item.Index,
				"batch", len(texts))
			continue
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// IsTransient classifies connection failures, timeouts, rate limits and
// server errors as retryable. Malformed output is handled separately and is
// never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Unclassified transport-level failure.
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0
	}
	return false
}
