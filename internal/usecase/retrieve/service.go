// Package retrieve runs the ordered similarity-search passes and builds the context list.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

// DefaultWorkers sizes the pass pool when unset.
const DefaultWorkers = 5

// Config sizes the pool and the searches.
type Config struct {
	Workers int
	TopK    int
}

// Report describes which passes contributed to the context.
type Report struct {
	Executed []string
	Skipped  []string // optional passes that failed
	Passages int
}

type passResult struct {
	texts []string
	err   error
}

// Service is the context retriever.
type Service struct {
	index  domain.VectorIndex
	pool   *ants.Pool
	topK   int
	logger *zap.Logger
}

// New creates a retriever with its own worker pool. Call Release when done.
func New(index domain.VectorIndex, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create retrieval pool: %w", err)
	}
	return &Service{index: index, pool: pool, topK: cfg.TopK, logger: logger}, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Retrieve runs every planned pass concurrently and concatenates their texts
// in pass order. A failed mandatory pass fails the call with ErrRetrieval;
// a failed optional pass is logged and left out.
func (s *Service) Retrieve(ctx context.Context, in Input) (domain.ContextList, Report, error) {
	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()

	if len(in.Query) == 0 {
		return nil, Report{}, domain.NewStageError(domain.StageRetrieve, domain.ErrRetrieval,
			errors.New("query vector is required"))
	}

	passes := Plan(in)
	results := make([]passResult, len(passes))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the first mandatory failure cancels the rest; the passes it cancelled
	// must not be reported in its place
	var (
		failOnce sync.Once
		failed   = -1
	)
	fail := func(i int) {
		failOnce.Do(func() {
			failed = i
			cancel()
		})
	}

	var wg sync.WaitGroup
	for i, p := range passes {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			results[i] = s.run(ctx, p)
			if results[i].err != nil && !p.Optional {
				fail(i)
			}
		})
		if err != nil {
			wg.Done()
			results[i] = passResult{err: fmt.Errorf("submit pass: %w", err)}
			if !p.Optional {
				fail(i)
			}
		}
	}
	wg.Wait()

	if failed >= 0 {
		p, r := passes[failed], results[failed]
		metrics.StageDuration.WithLabelValues(domain.StageRetrieve, "error").Observe(time.Since(start).Seconds())
		log.Error("Mandatory retrieval pass failed", zap.String("pass", p.Name), zap.Error(r.err))
		return nil, Report{}, domain.NewStageError(domain.StageRetrieve, domain.ErrRetrieval,
			fmt.Errorf("pass %s: %w", p.Name, r.err))
	}

	var (
		out    domain.ContextList
		report Report
	)
	for i, p := range passes {
		r := results[i]
		if r.err != nil {
			metrics.DegradedTotal.WithLabelValues("retrieve_" + p.Kind).Inc()
			log.Warn("Optional retrieval pass failed, skipping",
				zap.String("stage", domain.StageRetrieve),
				zap.String("pass", p.Name),
				zap.Error(r.err),
			)
			report.Skipped = append(report.Skipped, p.Name)
			continue
		}
		out = append(out, r.texts...)
		report.Executed = append(report.Executed, p.Name)
	}
	report.Passages = len(out)

	metrics.StageDuration.WithLabelValues(domain.StageRetrieve, "ok").Observe(time.Since(start).Seconds())
	log.Debug("Context retrieved",
		zap.Strings("executed", report.Executed),
		zap.Strings("skipped", report.Skipped),
		zap.Int("passages", report.Passages),
	)
	return out, report, nil
}

func (s *Service) run(ctx context.Context, p Pass) passResult {
	start := time.Now()
	defer func() {
		metrics.RetrievalPassDuration.WithLabelValues(p.Kind).Observe(time.Since(start).Seconds())
	}()

	q, err := p.query(s.topK)
	if err == nil {
		var passages []domain.Passage
		passages, err = s.index.Query(ctx, q)
		if err == nil {
			metrics.RetrievalPassesTotal.WithLabelValues(p.Kind, "ok").Inc()
			texts := make([]string, 0, len(passages))
			for _, ps := range passages {
				texts = append(texts, ps.Text)
			}
			return passResult{texts: texts}
		}
	}

	status := "error"
	if p.Optional {
		status = "skipped"
	}
	metrics.RetrievalPassesTotal.WithLabelValues(p.Kind, status).Inc()
	return passResult{err: err}
}
