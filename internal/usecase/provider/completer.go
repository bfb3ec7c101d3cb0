package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/logger"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Completer wraps a completion adapter with a timeout, a budget and logging.
// Request metrics are recorded by the transport adapter.
type Completer struct {
	inner    domain.Completer
	provider string
	timeout  time.Duration
	budget   BudgetChecker
	logger   *zap.Logger
}

var _ domain.Completer = (*Completer)(nil)

// NewCompleter wraps inner. budget may be nil.
func NewCompleter(
	inner domain.Completer, provider string, timeout time.Duration,
	budget BudgetChecker, logger *zap.Logger,
) *Completer {
	return &Completer{
		inner:    inner,
		provider: provider,
		timeout:  timeout,
		budget:   budget,
		logger:   logger,
	}
}

// Complete checks the budget, calls the model under the timeout and records usage.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	log := logger.FromContextOr(ctx, c.logger)

	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			log.Error("Completion budget exceeded",
				zap.String("provider", c.provider),
				zap.String("model", req.Model),
				zap.Error(err),
			)
			return domain.CompletionResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()
	res, err := withTimeout(ctx, c.timeout, "completion", func(ctx context.Context) (domain.CompletionResult, error) {
		return c.inner.Complete(ctx, req)
	})
	duration := time.Since(start)

	if err != nil {
		log.Warn("Completion request failed",
			zap.String("provider", c.provider),
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, err
	}

	if c.budget != nil {
		c.budget.Record(int64(res.TotalTokens))
	}

	log.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return res, nil
}

// HealthCheck forwards to the inner adapter when it supports it.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
