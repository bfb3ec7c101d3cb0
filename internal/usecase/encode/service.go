// Package encode turns the question and its sub-questions into query vectors.
package encode

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

// Service is the query encoder.
type Service struct {
	embed  domain.Embedder
	logger *zap.Logger
}

// New creates an encoder. embed may also implement domain.BatchEmbedder.
func New(embed domain.Embedder, logger *zap.Logger) *Service {
	return &Service{embed: embed, logger: logger}
}

// Encode embeds one text.
func (s *Service) Encode(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	res, err := s.embed.Embed(ctx, text)
	if err == nil && len(res.Embedding) == 0 {
		err = fmt.Errorf("%w: empty vector", domain.ErrEmbeddingProviderError)
	}
	if err != nil {
		return nil, s.fail(ctx, start, err)
	}
	metrics.StageDuration.WithLabelValues(domain.StageEncode, "ok").Observe(time.Since(start).Seconds())
	return res.Embedding, nil
}

// EncodeMany embeds every sub-question in key order, one vector each.
func (s *Service) EncodeMany(ctx context.Context, subs *domain.SubqueryMap) ([][]float32, error) {
	texts := subs.Texts()
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()

	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err == nil && len(res.Embeddings) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d sub-questions",
			domain.ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	if err != nil {
		return nil, s.fail(ctx, start, err)
	}
	for i, v := range res.Embeddings {
		if len(v) == 0 {
			return nil, s.fail(ctx, start, fmt.Errorf("%w: empty vector for sub-question %d",
				domain.ErrEmbeddingProviderError, i))
		}
	}

	metrics.StageDuration.WithLabelValues(domain.StageEncode, "ok").Observe(time.Since(start).Seconds())
	return res.Embeddings, nil
}

func (s *Service) fail(ctx context.Context, start time.Time, err error) error {
	metrics.StageDuration.WithLabelValues(domain.StageEncode, "error").Observe(time.Since(start).Seconds())
	logger.FromContextOr(ctx, s.logger).Error("Unable to encode query", zap.Error(err))
	return domain.NewStageError(domain.StageEncode, domain.ErrEncoding, err)
}
