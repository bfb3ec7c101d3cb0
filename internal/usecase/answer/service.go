// Package answer sequences the retrieval pipeline for one question.
package answer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
	"github.com/kailas-cloud/ragq/internal/usecase/retrieve"
)

// Config locates the entity lookup and bounds requests.
type Config struct {
	LookupBucket   string
	LookupKey      string
	MaxQueryChars  int
	RequestTimeout time.Duration // 0 = no overall deadline
}

// Deps bundles the pipeline stages.
type Deps struct {
	Decomposer Decomposer
	Metadata   MetadataExtractor
	Lookup     LookupSource
	Entities   EntityMatcher
	Encoder    Encoder
	Retriever  Retriever
	Synth      Synthesizer
}

// Service is the orchestrator.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	return &Service{deps: deps, cfg: cfg, logger: logger}
}

// Answer runs decompose, extract, match, encode, retrieve and synthesize in order.
// Only metadata extraction and entity matching may fail without failing the call.
func (s *Service) Answer(ctx context.Context, raw string) (domain.Answer, error) {
	ctx = s.withRequestLogger(ctx)
	log := logger.FromContext(ctx)

	q, err := domain.NewQuery(raw, s.cfg.MaxQueryChars)
	if err != nil {
		return domain.Answer{}, domain.NewStageError(domain.StageValidate, domain.ErrInvalidQuery, err)
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	res := domain.Answer{}

	subs, err := s.deps.Decomposer.Decompose(ctx, q)
	if err != nil {
		return domain.Answer{}, err
	}
	res.Subqueries = subs.Texts()

	if res.Metadata.Years, err = s.deps.Metadata.ExtractYears(ctx, q); err != nil {
		res.Degraded = append(res.Degraded, domain.FieldYear)
	}
	if res.Metadata.Clubs, err = s.deps.Metadata.ExtractClubs(ctx, q); err != nil {
		res.Degraded = append(res.Degraded, domain.FieldClub)
	}

	lookup, err := s.deps.Lookup.FetchLookup(ctx, s.cfg.LookupBucket, s.cfg.LookupKey)
	if err != nil {
		return domain.Answer{}, err
	}
	if res.Entities, err = s.deps.Entities.Match(ctx, q, lookup); err != nil {
		res.Degraded = append(res.Degraded, domain.FieldEntities)
	}

	qv, err := s.deps.Encoder.Encode(ctx, q.String())
	if err != nil {
		return domain.Answer{}, err
	}
	subVecs, err := s.deps.Encoder.EncodeMany(ctx, subs)
	if err != nil {
		return domain.Answer{}, err
	}

	cl, report, err := s.deps.Retriever.Retrieve(ctx, retrieve.Input{
		Query:      qv,
		Subqueries: subVecs,
		Metadata:   res.Metadata,
		Entities:   res.Entities,
	})
	if err != nil {
		return domain.Answer{}, err
	}
	res.Skipped = report.Skipped
	res.Passages = len(cl)

	if res.Text, err = s.deps.Synth.Synthesize(ctx, q, cl); err != nil {
		return domain.Answer{}, err
	}

	log.Info("Question answered",
		zap.Int("subqueries", len(res.Subqueries)),
		zap.Stringer("years", res.Metadata.Years),
		zap.Stringer("clubs", res.Metadata.Clubs),
		zap.Stringer("entities", res.Entities),
		zap.Int("passages", res.Passages),
		zap.Strings("degraded", res.Degraded),
		zap.Strings("skipped", res.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// Handle answers one request event and shapes the envelope. It never returns a partial answer.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	ctx = s.withRequestLogger(ctx)

	ans, err := s.Answer(ctx, req.UserQuery)
	if err != nil {
		f := Classify(err)
		metrics.AnswersTotal.WithLabelValues(f.Code).Inc()
		logFailure(logger.FromContext(ctx), f, err)
		return failureResponse(f)
	}

	outcome := "ok"
	if ans.IsDegraded() {
		outcome = "degraded"
	}
	metrics.AnswersTotal.WithLabelValues(outcome).Inc()
	return successResponse(ans)
}

// withRequestLogger attaches a logger with a fresh request_id unless the caller did already.
func (s *Service) withRequestLogger(ctx context.Context) context.Context {
	if _, ok := logger.Lookup(ctx); ok {
		return ctx
	}
	return logger.ContextWithLogger(ctx, s.logger.With(zap.String("request_id", uuid.NewString())))
}

func logFailure(log *zap.Logger, f Failure, err error) {
	if f.Status < 500 {
		log.Warn("Request rejected", zap.String("error", f.Code), zap.Error(err))
		return
	}
	log.Error("Request failed", zap.String("error", f.Code), zap.Error(err))
}
