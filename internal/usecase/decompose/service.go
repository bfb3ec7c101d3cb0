// Package decompose splits a user question into retrieval sub-questions.
package decompose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
	"github.com/kailas-cloud/ragq/internal/usecase/reply"
	"github.com/kailas-cloud/ragq/internal/usecase/retry"
)

const instructions = `You are an expert at converting user questions into sub-queries for retrieving relevant information from a vector database, taking context from your training data. Perform query decomposition. Given a user question, break it down into distinct sub questions that you need to answer in order to answer the original question. If there are acronyms or words you are not familiar with, do not try to rephrase them.
%s
Output only the requested results in the following format:
{"1" : "question", "2" : "question", "3" : "question"}`

// Config selects the model and retry policy.
type Config struct {
	Model     string
	MaxTokens int
	Retry     retry.Policy
}

// Service is the query decomposer.
type Service struct {
	llm    domain.Completer
	cfg    Config
	logger *zap.Logger
}

// New creates a decomposer.
func New(llm domain.Completer, cfg Config, logger *zap.Logger) *Service {
	return &Service{llm: llm, cfg: cfg, logger: logger}
}

// BuildPrompt renders the decomposition prompt for q.
func BuildPrompt(q domain.Query) string {
	return fmt.Sprintf(instructions, q)
}

// Decompose asks the model for sub-questions. The call and its parse are retried
// together; exhausting the policy returns ErrDecomposition.
func (s *Service) Decompose(ctx context.Context, q domain.Query) (*domain.SubqueryMap, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()
	prompt := BuildPrompt(q)

	subs, err := retry.Do(ctx, s.cfg.Retry, log, domain.StageDecompose,
		func(ctx context.Context) (*domain.SubqueryMap, error) {
			res, err := s.llm.Complete(ctx, domain.CompletionRequest{
				Model:     s.cfg.Model,
				Prompt:    prompt,
				MaxTokens: s.cfg.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
			return Parse(res.Text)
		})
	if err != nil {
		metrics.StageDuration.WithLabelValues(domain.StageDecompose, "error").Observe(time.Since(start).Seconds())
		log.Error("Unable to generate sub-questions", zap.Error(err))
		return nil, domain.NewStageError(domain.StageDecompose, domain.ErrDecomposition, err)
	}

	metrics.StageDuration.WithLabelValues(domain.StageDecompose, "ok").Observe(time.Since(start).Seconds())
	log.Debug("Question decomposed", zap.Int("subqueries", subs.Len()))
	return subs, nil
}

// Parse reads a flat JSON object of numeric keys to non-empty strings, keeping document order.
func Parse(text string) (*domain.SubqueryMap, error) {
	body := reply.StripFences(text)
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: not valid JSON", domain.ErrMalformedResponse)
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object", domain.ErrMalformedResponse)
	}

	subs := domain.NewSubqueryMap()
	var perr error
	doc.ForEach(func(k, v gjson.Result) bool {
		key := strings.TrimSpace(k.String())
		if !isIndex(key) {
			perr = fmt.Errorf("%w: non-numeric key %q", domain.ErrMalformedResponse, key)
			return false
		}
		if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
			perr = fmt.Errorf("%w: key %q has no question", domain.ErrMalformedResponse, key)
			return false
		}
		subs.Add(key, strings.TrimSpace(v.String()))
		return true
	})
	if perr != nil {
		return nil, perr
	}
	if subs.Len() == 0 {
		return nil, fmt.Errorf("%w: no sub-questions", domain.ErrMalformedResponse)
	}
	return subs, nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
