package ragq

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "valkey" or "redis"
	addrs     []string
	password  string
	keyPrefix string

	index string
	topK  int

	apiKey  string
	baseURL string
	models  Models

	embeddingModel      string
	embeddingDimensions int
	queryInstruction    string

	lookupDriver string // "s3" or "kv"
	region       string
	endpoint     string
	bucket       string
	key          string
	lookupTTL    time.Duration

	clubAliases map[string]string
	workers     int
	timeout     time.Duration

	completer Completer
	embedder  Embedder
	fetcher   LookupFetcher

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// Models selects a completion model per pipeline stage. Empty fields keep the defaults.
type Models struct {
	Decompose  string
	Extract    string
	Match      string
	Synthesize string
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key namespace shared with the indexing pipeline. Default: "ragq:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithIndex names the passage index and the number of passages per pass.
// A non-positive topK keeps the default of 30.
func WithIndex(name string, topK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.index = name
		c.topK = topK
	})
}

// WithOpenAI points completions and embeddings at an OpenAI-compatible endpoint.
// An empty baseURL uses api.openai.com.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
	})
}

// WithModels overrides the completion model used by each stage.
func WithModels(m Models) Option {
	return optionFunc(func(c *clientConfig) {
		c.models = m
	})
}

// WithEmbeddingModel sets the embedding model, its dimensions and the
// instruction prepended to queries. It must match the indexing pipeline.
func WithEmbeddingModel(model string, dimensions int, queryInstruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.embeddingDimensions = dimensions
		c.queryInstruction = queryInstruction
	})
}

// WithCompleter replaces the OpenAI completion adapter.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cm
	})
}

// WithEmbedder replaces the OpenAI embedding adapter.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLookupS3 reads the entity list from S3 (default credential chain).
func WithLookupS3(region, bucket, key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.lookupDriver = "s3"
		c.region = region
		c.bucket = bucket
		c.key = key
	})
}

// WithS3Endpoint overrides the S3 endpoint (MinIO, LocalStack).
func WithS3Endpoint(endpoint string) Option {
	return optionFunc(func(c *clientConfig) {
		c.endpoint = endpoint
	})
}

// WithLookupKV reads the entity list from the database key {prefix}lookup:{bucket}/{key}.
func WithLookupKV(bucket, key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.lookupDriver = "kv"
		c.bucket = bucket
		c.key = key
	})
}

// WithLookupFetcher replaces the lookup store entirely.
func WithLookupFetcher(f LookupFetcher) Option {
	return optionFunc(func(c *clientConfig) {
		c.fetcher = f
	})
}

// WithLookupCache keeps the parsed entity list for ttl instead of fetching it per question.
func WithLookupCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.lookupTTL = ttl
	})
}

// WithClubAliases replaces the club alias table (token -> stored identifier).
func WithClubAliases(aliases map[string]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.clubAliases = aliases
	})
}

// WithWorkers sizes the retrieval worker pool. Default: 5.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithTimeout bounds each question end to end. Zero disables the bound (default).
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
