// Package entity fetches the published entity list and matches questions against it.
package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
	"github.com/kailas-cloud/ragq/internal/usecase/reply"
)

const matchPrompt = `Match any entities from this question that appear in the list below:

Question - %s

List - %s

Output should only be entities as a comma separated list and no other preamble. If no entities found, output None`

// Config selects the matching model.
type Config struct {
	Model     string
	MaxTokens int
}

// Service is the entity matcher.
type Service struct {
	store  domain.LookupFetcher
	llm    domain.Completer
	cfg    Config
	logger *zap.Logger
}

// New creates an entity matcher.
func New(store domain.LookupFetcher, llm domain.Completer, cfg Config, logger *zap.Logger) *Service {
	return &Service{store: store, llm: llm, cfg: cfg, logger: logger}
}

// FetchLookup loads and parses the lookup document. Any failure is ErrLookupRetrieval.
func (s *Service) FetchLookup(ctx context.Context, bucket, key string) (domain.EntityLookup, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()

	data, err := s.store.FetchObject(ctx, bucket, key)
	if err == nil {
		var lookup domain.EntityLookup
		lookup, err = ParseLookup(data)
		if err == nil {
			metrics.StageDuration.WithLabelValues(domain.StageLookup, "ok").Observe(time.Since(start).Seconds())
			log.Debug("Entity lookup fetched",
				zap.String("bucket", bucket),
				zap.String("key", key),
				zap.Int("entities", lookup.Len()),
				zap.String("version", lookup.Version()),
			)
			return lookup, nil
		}
	}

	metrics.StageDuration.WithLabelValues(domain.StageLookup, "error").Observe(time.Since(start).Seconds())
	log.Error("Unable to retrieve entity list",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Error(err),
	)
	return domain.EntityLookup{}, domain.NewStageError(domain.StageLookup, domain.ErrLookupRetrieval,
		fmt.Errorf("%s/%s: %w", bucket, key, err))
}

// BuildPrompt renders the matching prompt. The list is a JSON array in published order.
func BuildPrompt(q domain.Query, lookup domain.EntityLookup) string {
	list, _ := json.Marshal(lookup.Names())
	return fmt.Sprintf(matchPrompt, q, list)
}

// Match returns the lookup entities named in the question, in canonical spelling.
// Names the model invents are dropped. Failures return ErrEntityMatch and absent.
func (s *Service) Match(ctx context.Context, q domain.Query, lookup domain.EntityLookup) (domain.Attribute, error) {
	log := logger.FromContextOr(ctx, s.logger)
	if lookup.Len() == 0 {
		log.Debug("Entity lookup is empty, skipping match")
		return domain.Absent(), nil
	}
	start := time.Now()

	res, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:     s.cfg.Model,
		Prompt:    BuildPrompt(q, lookup),
		MaxTokens: s.cfg.MaxTokens,
	})
	var items []string
	if err == nil {
		items, err = reply.Names(res.Text)
	}
	if err != nil {
		metrics.StageDuration.WithLabelValues(domain.StageEntities, "degraded").Observe(time.Since(start).Seconds())
		metrics.DegradedTotal.WithLabelValues(domain.FieldEntities).Inc()
		log.Warn("Entity matching failed, continuing without filter",
			zap.String("stage", domain.StageEntities),
			zap.Error(err),
		)
		return domain.Absent(), domain.NewStageError(domain.StageEntities, domain.ErrEntityMatch, err)
	}

	matched := make([]string, 0, len(items))
	for _, it := range items {
		if name, ok := lookup.Canonical(it); ok {
			matched = append(matched, name)
			continue
		}
		log.Debug("Dropping entity not in lookup", zap.String("entity", it))
	}

	metrics.StageDuration.WithLabelValues(domain.StageEntities, "ok").Observe(time.Since(start).Seconds())
	return domain.NewAttribute(matched...), nil
}
