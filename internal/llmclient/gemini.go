// File: internal/llmclient/gemini.go
// Description: Gemini client built on the official GenAI SDK. Outbound calls
// are paced by a client-side rate limiter and retried with exponential backoff
// on transient failures; API errors other than 429 and 5xx fail immediately.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Firstp1ck/android-agent/internal/config"
)

const embeddingModel = "text-embedding-004"

// GeminiClient implements schemas.LLMClient on top of google.golang.org/genai.
type GeminiClient struct {
	logger  *zap.Logger
	cfg     config.LLMConfig
	client  *genai.Client
	limiter *rate.Limiter
}

// NewGeminiClient builds a client from configuration. The API timeout bounds
// each individual attempt, not the whole retry loop; the caller's context
// bounds that.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.Endpoint
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		logger:  logger.Named("gemini"),
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Generate produces free text for the prompt, bounded by maxTokens.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	temperature := float32(c.cfg.Temperature)
	genCfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}

	var reply string
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), genCfg)
		if err != nil {
			return err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return backoff.Permanent(fmt.Errorf("gemini returned no candidates"))
		}
		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		reply = strings.TrimSpace(sb.String())
		if reply == "" {
			return backoff.Permanent(fmt.Errorf("gemini returned an empty reply"))
		}
		return nil
	})
	return reply, err
}

// Embed returns the embedding vector for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.withRetry(ctx, func() error {
		resp, err := c.client.Models.EmbedContent(ctx, embeddingModel, genai.Text(text), nil)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini returned an empty embedding"))
		}
		vec = resp.Embeddings[0].Values
		return nil
	})
	return vec, err
}

// withRetry paces and retries a single SDK call. Rate limiting (429) and
// server errors back off exponentially; other API errors abort the loop.
func (c *GeminiClient) withRetry(ctx context.Context, call func() error) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := call()
		if err == nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
				c.logger.Warn("Retryable API failure", zap.Int("status", apiErr.Code))
				return err
			}
			return backoff.Permanent(err)
		}
		// Transport-level failures are worth another attempt.
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
