package ragq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/app"
	"github.com/kailas-cloud/ragq/internal/config"
	"github.com/kailas-cloud/ragq/internal/db"
	dbRedis "github.com/kailas-cloud/ragq/internal/db/redis"
	"github.com/kailas-cloud/ragq/internal/domain"
	healthuc "github.com/kailas-cloud/ragq/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// answerUseCase is the internal interface for the question pipeline.
type answerUseCase interface {
	Answer(ctx context.Context, raw string) (domain.Answer, error)
}

// Answer is the synthesized reply together with what shaped it.
type Answer struct {
	Text          string
	Subqueries    []string
	Years         []string // nil when the question carries no year
	Clubs         []string
	Entities      []string
	Passages      int
	Degraded      []string // optional fields dropped after a failure: year, club, entities
	SkippedPasses []string // optional retrieval passes dropped after a failure
}

// Client is the ragq SDK entry point.
type Client struct {
	store     db.Store
	pipeline  *app.App
	answerSvc answerUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a ragq Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("ragq: database address required (use WithValkey or WithRedis)")
	}
	if cfg.fetcher == nil && cfg.lookupDriver == "" {
		return nil, errors.New("ragq: lookup source required (use WithLookupS3, WithLookupKV or WithLookupFetcher)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragq: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			ClientName: "ragq-sdk",
		})
		if err != nil {
			return nil, fmt.Errorf("ragq: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("ragq: unknown driver %q", cfg.driver)
	}
}

// buildConfig maps options onto the service configuration.
func buildConfig(opts *clientConfig) config.Config {
	var cfg config.Config
	cfg.Database.Driver = opts.driver
	cfg.Database.Addrs = opts.addrs
	cfg.Database.Password = opts.password
	cfg.Database.KeyPrefix = opts.keyPrefix

	cfg.Vector.Index = opts.index
	cfg.Vector.TopK = opts.topK

	cfg.Completion.APIKey = opts.apiKey
	cfg.Completion.BaseURL = opts.baseURL
	cfg.Completion.Models = config.ModelsConfig{
		Decompose:  opts.models.Decompose,
		Extract:    opts.models.Extract,
		Match:      opts.models.Match,
		Synthesize: opts.models.Synthesize,
	}
	cfg.Embedding.APIKey = opts.apiKey
	cfg.Embedding.BaseURL = opts.baseURL
	cfg.Embedding.Model = opts.embeddingModel
	cfg.Embedding.Dimensions = opts.embeddingDimensions
	cfg.Embedding.QueryInstruction = opts.queryInstruction

	cfg.Lookup.Driver = opts.lookupDriver
	cfg.Lookup.Region = opts.region
	cfg.Lookup.Endpoint = opts.endpoint
	cfg.Lookup.Bucket = opts.bucket
	cfg.Lookup.Key = opts.key
	cfg.Lookup.CacheTTLSec = int(opts.lookupTTL / time.Second)

	cfg.Clubs.Aliases = opts.clubAliases
	cfg.Retrieval.Workers = opts.workers
	cfg.Timeouts.RequestSec = int(opts.timeout / time.Second)

	cfg.ApplyDefaults()
	return cfg
}

func wireClient(ctx context.Context, store db.Store, opts *clientConfig, obs *observer) (*Client, error) {
	var ov app.Overrides
	if opts.completer != nil {
		ov.Completer = &completerAdapter{inner: opts.completer}
	}
	if opts.embedder != nil {
		ov.Embedder = &embedderAdapter{inner: opts.embedder}
	}
	if opts.fetcher != nil {
		ov.Lookup = opts.fetcher
	}

	pipeline, err := app.Build(ctx, buildConfig(opts), store, ov, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("ragq: build pipeline: %w", err)
	}

	return &Client{
		store:     store,
		pipeline:  pipeline,
		answerSvc: pipeline.Answers,
		healthSvc: pipeline.Health,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.pipeline != nil {
		c.pipeline.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ask answers one question. Failures match the exported sentinels with errors.Is;
// no partial answer is ever returned.
func (c *Client) Ask(ctx context.Context, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observeAnswer(start, ans, err) }()

	res, err := c.answerSvc.Answer(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return answerFromDomain(res), nil
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func answerFromDomain(a domain.Answer) Answer {
	return Answer{
		Text:          a.Text,
		Subqueries:    a.Subqueries,
		Years:         a.Metadata.Years.Values(),
		Clubs:         a.Metadata.Clubs.Values(),
		Entities:      a.Entities.Values(),
		Passages:      a.Passages,
		Degraded:      a.Degraded,
		SkippedPasses: a.Skipped,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
