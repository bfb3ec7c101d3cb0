// Package metadata extracts optional year and club constraints from a question.
package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/domain/club"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
	"github.com/kailas-cloud/ragq/internal/usecase/reply"
)

const (
	yearPrompt = `Extract the year from this question:

%s

Output should only be years as a comma separated list. If no year found, output None`

	clubPrompt = `Extract the club from this question:

%s

Output should only be clubs as a comma separated list. If no club found, output None`
)

const (
	maxClubChars = 64
	maxClubWords = 6
)

// Config selects the extraction model.
type Config struct {
	Model     string
	MaxTokens int
}

// Service is the metadata extractor.
type Service struct {
	llm    domain.Completer
	clubs  *club.Resolver
	cfg    Config
	logger *zap.Logger
}

// New creates an extractor. A nil resolver uses the default alias table.
func New(llm domain.Completer, clubs *club.Resolver, cfg Config, logger *zap.Logger) *Service {
	if clubs == nil {
		clubs = club.NewResolver(nil)
	}
	return &Service{llm: llm, clubs: clubs, cfg: cfg, logger: logger}
}

// ExtractYears returns the four-digit years the question refers to, or absent.
// Failures return ErrMetadataExtraction together with an absent attribute.
func (s *Service) ExtractYears(ctx context.Context, q domain.Query) (domain.Attribute, error) {
	years, err := s.extract(ctx, domain.StageYears, domain.FieldYear, fmt.Sprintf(yearPrompt, q), isYear)
	if err != nil {
		return domain.Absent(), err
	}
	return domain.NewAttribute(years...), nil
}

// ExtractClubs returns canonical club identifiers, or absent.
func (s *Service) ExtractClubs(ctx context.Context, q domain.Query) (domain.Attribute, error) {
	clubs, err := s.extract(ctx, domain.StageClubs, domain.FieldClub, fmt.Sprintf(clubPrompt, q), isClubName)
	if err != nil {
		return domain.Absent(), err
	}
	return domain.NewAttribute(s.clubs.ResolveAll(clubs)...), nil
}

func (s *Service) extract(
	ctx context.Context, stage, field, prompt string, valid func(string) bool,
) ([]string, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()

	res, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:     s.cfg.Model,
		Prompt:    prompt,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err == nil {
		var items []string
		items, err = reply.List(res.Text, valid)
		if err == nil {
			metrics.StageDuration.WithLabelValues(stage, "ok").Observe(time.Since(start).Seconds())
			return items, nil
		}
	}

	metrics.StageDuration.WithLabelValues(stage, "degraded").Observe(time.Since(start).Seconds())
	metrics.DegradedTotal.WithLabelValues(field).Inc()
	log.Warn("Metadata extraction failed, continuing without filter",
		zap.String("stage", stage),
		zap.String("field", field),
		zap.Error(err),
	)
	return nil, domain.NewStageError(stage, domain.ErrMetadataExtraction, err)
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isClubName(s string) bool {
	return utf8.RuneCountInString(s) <= maxClubChars && len(strings.Fields(s)) <= maxClubWords
}
