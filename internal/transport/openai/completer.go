package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

var _ domain.Completer = (*Completer)(nil)

// Completer sends single-turn prompts to an OpenAI-compatible chat endpoint.
type Completer struct {
	client   *openai.Client
	provider string
	logger   *zap.Logger
}

// NewCompleter creates a chat completion adapter. Model is chosen per request.
func NewCompleter(cfg *Config) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:   newClient(cfg),
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if req.Model == "" {
		return domain.CompletionResult{}, fmt.Errorf("model is required: %w", domain.ErrCompletionProvider)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		c.fail(req.Model, errorType(err))
		return domain.CompletionResult{}, parseAPIError("completion", err, domain.ErrCompletionProvider)
	}
	if len(resp.Choices) == 0 {
		c.fail(req.Model, "empty_response")
		return domain.CompletionResult{}, fmt.Errorf("no choices in response: %w", domain.ErrCompletionProvider)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)

	metrics.ProviderRequestsTotal.WithLabelValues(metrics.KindCompletion, c.provider, req.Model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(metrics.KindCompletion, c.provider, req.Model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(metrics.KindCompletion, c.provider, req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ProviderTokensTotal.WithLabelValues(metrics.KindCompletion, c.provider, req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("completion created",
		zap.String("model", req.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	return domain.CompletionResult{
		Text:             text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *Completer) fail(model, errType string) {
	metrics.ProviderRequestsTotal.WithLabelValues(metrics.KindCompletion, c.provider, model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(metrics.KindCompletion, c.provider, model, errType).Inc()
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
