package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"supportbot/internal/embedding"
	supporterr "supportbot/pkg/errors"
)

// Client is an OpenAI-compatible embeddings client implementing the
// Embedder interface. It also works against Ollama's /v1 endpoint.
type Client struct {
	client     *goopenai.Client
	model      string
	dimension  int
	batchSize  int
	maxRetries int
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

var _ embedding.Embedder = (*Client)(nil)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimension  int
	Timeout    time.Duration
	BatchSize  int
	MaxRetries int
	Logger     *slog.Logger
}

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"all-minilm":             384,
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, supporterr.New(supporterr.CodeConfigValidate,
			fmt.Sprintf("missing API key in env %s", cfg.APIKeyEnv))
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = knownDimensions[cfg.Model]
	}
	if cfg.Dimension <= 0 {
		return nil, supporterr.New(supporterr.CodeConfigValidate,
			fmt.Sprintf("unknown dimension for model %s; set embedder.openai.dimension", cfg.Model))
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
		sleep:      sleepContext,
	}, nil
}

// Name returns the model identifier recorded with built indexes.
func (c *Client) Name() string { return "openai-" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed embeds texts in batches of at most batchSize inputs.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	for i, text := range batch {
		if text == "" {
			return nil, supporterr.New(supporterr.CodeEmbeddingInputEmpty, "cannot embed empty text",
				supporterr.Field("position", i))
		}
	}
	req := goopenai.EmbeddingRequest{
		Input: batch,
		Model: goopenai.EmbeddingModel(c.model),
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}
		resp, err := c.client.CreateEmbeddings(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if !retryable(err) {
				break
			}
			c.logger.Warn("embedding request failed, retrying", "attempt", attempt+1, "error", err)
			continue
		}
		return c.collect(resp, len(batch))
	}
	return nil, supporterr.Wrap(lastErr, supporterr.CodeEmbeddingUpstream, "openai embeddings failed",
		supporterr.Field("model", c.model))
}

// collect reorders response items by their index field and checks shape.
func (c *Client) collect(resp goopenai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, supporterr.New(supporterr.CodeEmbeddingResponse, "embedding count mismatch",
			supporterr.Field("expected", want), supporterr.Field("got", len(resp.Data)))
	}
	out := make([][]float32, want)
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= want || out[item.Index] != nil {
			return nil, supporterr.New(supporterr.CodeEmbeddingResponse, "invalid embedding index",
				supporterr.Field("index", item.Index))
		}
		if len(item.Embedding) != c.dimension {
			return nil, supporterr.New(supporterr.CodeEmbeddingResponse, "embedding dimension mismatch",
				supporterr.Field("expected", c.dimension), supporterr.Field("got", len(item.Embedding)))
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// transport failures
	return true
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
