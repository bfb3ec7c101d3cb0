// Package openai adapts OpenAI-compatible completion and embedding APIs.
// Each call maps to exactly one HTTP request; retries belong to the caller.
package openai

import (
	"context"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger
}

// Config holds provider connection settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	Logger     *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with a single request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.create(ctx, texts)
}

func (e *Embedder) create(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	model := string(e.model)
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		e.fail(model, errorType(err))
		return domain.BatchEmbeddingResult{}, parseAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Data) != len(texts) {
		e.fail(model, "count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	// providers may return items out of order
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, len(resp.Data)),
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			e.fail(model, "empty_vector")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty embedding at %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			e.fail(model, "dimension_mismatch")
			return domain.BatchEmbeddingResult{}, fmt.Errorf("embedding %d has %d dimensions, want %d: %w",
				i, len(d.Embedding), e.dimensions, domain.ErrEmbeddingProviderError)
		}
		out.Embeddings[i] = d.Embedding
	}

	metrics.ProviderRequestsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(metrics.KindEmbedding, e.provider, model).Observe(duration.Seconds())
	if out.TotalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "prompt").Add(float64(out.PromptTokens))
		metrics.ProviderTokensTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "total").Add(float64(out.TotalTokens))
	}

	e.logger.Debug("embeddings created",
		zap.String("model", model),
		zap.Int("inputs", len(texts)),
		zap.Duration("duration", duration),
	)
	return out, nil
}

func (e *Embedder) fail(model, errType string) {
	metrics.ProviderRequestsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(metrics.KindEmbedding, e.provider, model, errType).Inc()
}

// HealthCheck verifies API availability via ListModels.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
