package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one embedding call.
const DefaultMaxAPIBatchSize = 256

// Embedder wraps an embedding adapter with a timeout, a budget and logging.
type Embedder struct {
	inner    domain.Embedder
	provider string
	model    string
	timeout  time.Duration
	budget   BudgetChecker
	logger   *zap.Logger
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
)

// NewEmbedder wraps inner. budget may be nil.
func NewEmbedder(
	inner domain.Embedder, provider, model string, timeout time.Duration,
	budget BudgetChecker, logger *zap.Logger,
) *Embedder {
	return &Embedder{
		inner:    inner,
		provider: provider,
		model:    model,
		timeout:  timeout,
		budget:   budget,
		logger:   logger,
	}
}

// Embed checks the budget, delegates under the timeout and records usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContextOr(ctx, e.logger)

	if err := e.checkBudget(ctx, log); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := withTimeout(ctx, e.timeout, "embedding", func(ctx context.Context) (domain.EmbeddingResult, error) {
		return e.inner.Embed(ctx, text)
	})
	if err != nil {
		log.Warn("Embedding request failed",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	e.record(res.TotalTokens)
	log.Debug("Embedding request completed",
		zap.String("provider", e.provider),
		zap.String("model", e.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed splits texts into API-sized chunks, re-checking the budget between them.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	log := logger.FromContextOr(ctx, e.logger)

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	start := time.Now()

	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if err := e.checkBudget(ctx, log); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		chunk := texts[offset:min(offset+DefaultMaxAPIBatchSize, len(texts))]
		res, err := withTimeout(ctx, e.timeout, "batch embedding", func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
			return domain.EmbedAll(ctx, e.inner, chunk)
		})
		if err != nil {
			log.Warn("Batch embedding request failed",
				zap.String("provider", e.provider),
				zap.String("model", e.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		e.record(res.TotalTokens)
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	log.Debug("Batch embedding completed",
		zap.String("provider", e.provider),
		zap.String("model", e.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck forwards to the inner adapter when it supports it.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (e *Embedder) checkBudget(ctx context.Context, log *zap.Logger) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		log.Error("Embedding budget exceeded",
			zap.String("provider", e.provider),
			zap.String("model", e.model),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (e *Embedder) record(tokens int) {
	if e.budget != nil {
		e.budget.Record(int64(tokens))
	}
}
