// Package app is the composition root shared by the server, the CLI and the SDK.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/config"
	"github.com/kailas-cloud/ragq/internal/db"
	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/domain/club"
	"github.com/kailas-cloud/ragq/internal/metrics"
	budgetrepo "github.com/kailas-cloud/ragq/internal/repository/budget"
	"github.com/kailas-cloud/ragq/internal/repository/embcache"
	lookuprepo "github.com/kailas-cloud/ragq/internal/repository/lookup"
	searchrepo "github.com/kailas-cloud/ragq/internal/repository/search"
	"github.com/kailas-cloud/ragq/internal/transport/kafka"
	openaiTransport "github.com/kailas-cloud/ragq/internal/transport/openai"
	s3Transport "github.com/kailas-cloud/ragq/internal/transport/s3"
	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
	"github.com/kailas-cloud/ragq/internal/usecase/decompose"
	"github.com/kailas-cloud/ragq/internal/usecase/encode"
	"github.com/kailas-cloud/ragq/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/ragq/internal/usecase/health"
	"github.com/kailas-cloud/ragq/internal/usecase/metadata"
	"github.com/kailas-cloud/ragq/internal/usecase/provider"
	"github.com/kailas-cloud/ragq/internal/usecase/retrieve"
	"github.com/kailas-cloud/ragq/internal/usecase/retry"
	"github.com/kailas-cloud/ragq/internal/usecase/synthesize"
	"github.com/kailas-cloud/ragq/internal/usecase/usage"
)

const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// Overrides replaces adapters that would otherwise be built from config.
// Nil fields are built as usual.
type Overrides struct {
	Completer domain.Completer
	Embedder  domain.Embedder
	Lookup    domain.LookupFetcher
}

// App holds the wired pipeline.
type App struct {
	Answers  *answeruc.Service
	Health   *healthuc.Service
	Usage    *usage.Service
	Lookups  *entity.Cache // nil when caching is disabled
	Listener *kafka.Listener

	retriever *retrieve.Service
	logger    *zap.Logger
}

// Build wires every stage from cfg over store. cfg must have defaults applied.
func Build(ctx context.Context, cfg config.Config, store db.Store, ov Overrides, logger *zap.Logger) (*App, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	metrics.Register()

	prefix := cfg.Database.KeyPrefix
	budgets := budgetrepo.New(store, prefix, budgetDailyTTL, budgetMonthlyTTL)

	completer := ov.Completer
	if completer == nil {
		completer = openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:   cfg.Completion.APIKey,
			BaseURL:  cfg.Completion.BaseURL,
			Provider: cfg.Completion.Provider,
			Logger:   logger,
		})
	}
	completionBudget := buildBudget(ctx, "completion", cfg.Completion.Provider, cfg.Completion.Budget, budgets, logger)
	embeddingBudget := buildBudget(ctx, "embedding", cfg.Embedding.Provider, cfg.Embedding.Budget, budgets, logger)

	completer = provider.NewCompleter(
		completer, cfg.Completion.Provider, config.Seconds(cfg.Timeouts.CompletionSec),
		asChecker(completionBudget), logger,
	)

	embedder, embedderHealth := buildEmbedder(cfg, store, ov.Embedder, asChecker(embeddingBudget), logger)

	search := searchrepo.New(store, searchrepo.Config{
		Index:       cfg.Vector.Index,
		VectorField: cfg.Vector.VectorField,
		TextField:   cfg.Vector.TextField,
		KeyPrefix:   prefix,
	})
	index := provider.NewVectorIndex(search, config.Seconds(cfg.Timeouts.VectorSec))

	fetcher := ov.Lookup
	if fetcher == nil {
		var err error
		if fetcher, err = buildFetcher(ctx, cfg, store); err != nil {
			return nil, err
		}
	}
	fetcher = provider.NewLookupFetcher(fetcher, config.Seconds(cfg.Timeouts.LookupSec))

	models := cfg.Completion.Models
	maxTokens := cfg.Completion.MaxTokens

	entities := entity.New(fetcher, completer, entity.Config{Model: models.Match, MaxTokens: maxTokens}, logger)
	var lookups answeruc.LookupSource = entities
	a := &App{logger: logger}
	if cfg.Lookup.CacheTTLSec > 0 || cfg.Lookup.Events.Enabled() {
		a.Lookups = entity.NewCache(entities, config.Seconds(cfg.Lookup.CacheTTLSec), logger)
		lookups = a.Lookups
		if cfg.Lookup.Events.Enabled() {
			a.Listener = kafka.NewListener(kafka.Config{
				Brokers: cfg.Lookup.Events.Brokers,
				Topic:   cfg.Lookup.Events.Topic,
				GroupID: cfg.Lookup.Events.GroupID,
			}, a.Lookups, logger)
		}
	}

	retriever, err := retrieve.New(index, retrieve.Config{
		Workers: cfg.Retrieval.Workers,
		TopK:    cfg.Vector.TopK,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create retriever: %w", err)
	}
	a.retriever = retriever

	a.Answers = answeruc.New(answeruc.Deps{
		Decomposer: decompose.New(completer, decompose.Config{
			Model:     models.Decompose,
			MaxTokens: maxTokens,
			Retry:     retryPolicy(cfg.Decompose),
		}, logger),
		Metadata: metadata.New(completer, club.NewResolver(cfg.Clubs.Aliases), metadata.Config{
			Model:     models.Extract,
			MaxTokens: maxTokens,
		}, logger),
		Lookup:    lookups,
		Entities:  entities,
		Encoder:   encode.New(embedder, logger),
		Retriever: retriever,
		Synth: synthesize.New(completer, synthesize.Config{
			Model:     models.Synthesize,
			MaxTokens: maxTokens,
			Retry:     retryPolicy(cfg.Synthesize),
		}, logger),
	}, answeruc.Config{
		LookupBucket:   cfg.Lookup.Bucket,
		LookupKey:      cfg.Lookup.Key,
		MaxQueryChars:  cfg.Pipeline.MaxQueryChars,
		RequestTimeout: config.Seconds(cfg.Timeouts.RequestSec),
	}, logger)

	a.Health = healthuc.New(healthuc.Deps{
		DB:         store,
		Index:      search,
		Completion: checker(completer),
		Embedding:  embedderHealth,
	}, 0)

	a.Usage = usage.New(map[string]usage.BudgetReader{
		"completion": asReader(completionBudget),
		"embedding":  asReader(embeddingBudget),
	})

	return a, nil
}

// Run starts background workers and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.Listener == nil {
		<-ctx.Done()
		return nil
	}
	if err := a.Listener.Run(ctx); err != nil {
		return fmt.Errorf("lookup listener: %w", err)
	}
	return nil
}

// Close releases the retrieval pool.
func (a *App) Close() {
	a.retriever.Release()
}

func retryPolicy(c config.RetryConfig) retry.Policy {
	return retry.Policy{Attempts: c.Attempts, Delay: c.Delay()}
}

// buildBudget returns nil when no limit is set.
func buildBudget(
	ctx context.Context, kind, prov string, bc config.BudgetConfig,
	store provider.BudgetStore, logger *zap.Logger,
) *provider.BudgetTracker {
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}
	return provider.NewBudgetTracker(
		kind, prov, bc.DailyTokenLimit, bc.MonthlyTokenLimit, provider.ParseBudgetAction(bc.Action), logger,
	).WithStore(ctx, store)
}

// asChecker and asReader keep a nil tracker from becoming a typed nil interface.
func asChecker(t *provider.BudgetTracker) provider.BudgetChecker {
	if t == nil {
		return nil
	}
	return t
}

func asReader(t *provider.BudgetTracker) usage.BudgetReader {
	if t == nil {
		return nil
	}
	return t
}

// checker returns nil (not a typed nil) when v cannot report health.
func checker(v any) healthuc.ProviderChecker {
	if hc, ok := v.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}

// buildEmbedder assembles the chain: OpenAI -> Cached -> Provider (timeout, budget) -> Query instruction.
// The second result is the provider layer, used for health checks.
func buildEmbedder(
	cfg config.Config, store db.KVStore, base domain.Embedder,
	budget provider.BudgetChecker, logger *zap.Logger,
) (domain.Embedder, healthuc.ProviderChecker) {
	ec := cfg.Embedding
	if base == nil {
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Provider:   ec.Provider,
			Logger:     logger,
		})
	}

	embedder := base
	if ec.CacheTTLSec > 0 {
		embedder = embcache.New(base, store, embcache.Config{
			KeyPrefix: cfg.Database.KeyPrefix,
			Model:     ec.Model + ":" + ec.QueryInstruction,
			TTL:       config.Seconds(ec.CacheTTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	instrumented := provider.NewEmbedder(
		embedder, ec.Provider, ec.Model, config.Seconds(cfg.Timeouts.EmbeddingSec), budget, logger,
	)

	if ec.QueryInstruction != "" {
		return domain.NewQueryInstructionEmbedder(instrumented, ec.QueryInstruction), instrumented
	}
	return instrumented, instrumented
}

func buildFetcher(ctx context.Context, cfg config.Config, store db.KVStore) (domain.LookupFetcher, error) {
	switch cfg.Lookup.Driver {
	case "kv":
		return lookuprepo.New(store, cfg.Database.KeyPrefix), nil
	case "s3":
		f, err := s3Transport.NewFetcher(ctx, s3Transport.Config{
			Region:   cfg.Lookup.Region,
			Endpoint: cfg.Lookup.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 fetcher: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown lookup driver %q", cfg.Lookup.Driver)
	}
}
