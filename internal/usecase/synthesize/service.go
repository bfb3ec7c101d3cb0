// Package synthesize produces the final answer from the question and its context.
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
	"github.com/kailas-cloud/ragq/internal/usecase/retry"
)

const answerPrompt = `Answer the following question, prioritising information from the context below:

Question - %s

Context - %s`

// Config selects the model and retry policy.
type Config struct {
	Model     string
	MaxTokens int
	Retry     retry.Policy
}

// Service is the answer synthesizer.
type Service struct {
	llm    domain.Completer
	cfg    Config
	logger *zap.Logger
}

// New creates a synthesizer.
func New(llm domain.Completer, cfg Config, logger *zap.Logger) *Service {
	return &Service{llm: llm, cfg: cfg, logger: logger}
}

// BuildPrompt renders the question and the context list as a JSON array.
// The same inputs always render the same prompt.
func BuildPrompt(q domain.Query, cl domain.ContextList) string {
	if cl == nil {
		cl = domain.ContextList{}
	}
	ctxJSON, _ := json.Marshal(cl)
	return fmt.Sprintf(answerPrompt, q, ctxJSON)
}

// Synthesize asks the model for the answer. An empty reply counts as a failure;
// exhausting the retry policy returns ErrGeneration.
func (s *Service) Synthesize(ctx context.Context, q domain.Query, cl domain.ContextList) (string, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()
	prompt := BuildPrompt(q, cl)

	answer, err := retry.Do(ctx, s.cfg.Retry, log, domain.StageSynthesize,
		func(ctx context.Context) (string, error) {
			res, err := s.llm.Complete(ctx, domain.CompletionRequest{
				Model:     s.cfg.Model,
				Prompt:    prompt,
				MaxTokens: s.cfg.MaxTokens,
			})
			if err != nil {
				return "", err
			}
			text := strings.TrimSpace(res.Text)
			if text == "" {
				return "", fmt.Errorf("%w: empty answer", domain.ErrMalformedResponse)
			}
			return text, nil
		})
	if err != nil {
		metrics.StageDuration.WithLabelValues(domain.StageSynthesize, "error").Observe(time.Since(start).Seconds())
		log.Error("Unable to generate final answer", zap.Error(err))
		return "", domain.NewStageError(domain.StageSynthesize, domain.ErrGeneration, err)
	}

	metrics.StageDuration.WithLabelValues(domain.StageSynthesize, "ok").Observe(time.Since(start).Seconds())
	return answer, nil
}
