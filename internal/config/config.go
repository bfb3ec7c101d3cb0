package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds the ragq configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Vector     VectorConfig     `yaml:"vector"`
	Completion CompletionConfig `yaml:"completion"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Lookup     LookupConfig     `yaml:"lookup"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Decompose  RetryConfig      `yaml:"decompose"`
	Synthesize RetryConfig      `yaml:"synthesize"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Clubs      ClubsConfig      `yaml:"clubs"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Valkey/Redis connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// VectorConfig describes the passage index written by the indexing pipeline.
type VectorConfig struct {
	Index       string `yaml:"index"`
	VectorField string `yaml:"vector_field"`
	TextField   string `yaml:"text_field"`
	TopK        int    `yaml:"top_k"`
}

// CompletionConfig holds the language model settings.
type CompletionConfig struct {
	APIKey    string       `yaml:"api_key"`
	BaseURL   string       `yaml:"base_url"`
	Provider  string       `yaml:"provider"` // label used in metrics
	Models    ModelsConfig `yaml:"models"`
	MaxTokens int          `yaml:"max_tokens"`
	Budget    BudgetConfig `yaml:"budget"`
}

// ModelsConfig selects a model per pipeline stage.
type ModelsConfig struct {
	Decompose  string `yaml:"decompose"`
	Extract    string `yaml:"extract"`
	Match      string `yaml:"match"`
	Synthesize string `yaml:"synthesize"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	Provider         string       `yaml:"provider"`
	Model            string       `yaml:"model"`
	Dimensions       int          `yaml:"dimensions"`
	QueryInstruction string       `yaml:"query_instruction"`
	CacheTTLSec      int          `yaml:"cache_ttl_sec"` // 0 disables the embedding cache
	Budget           BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// LookupConfig locates the published entity list.
type LookupConfig struct {
	Driver      string      `yaml:"driver"` // s3, kv (default: s3)
	Bucket      string      `yaml:"bucket"`
	Key         string      `yaml:"key"`
	Region      string      `yaml:"region"`
	Endpoint    string      `yaml:"endpoint"`
	CacheTTLSec int         `yaml:"cache_ttl_sec"` // 0 fetches on every request
	Events      EventConfig `yaml:"events"`
}

// EventConfig configures the lookup publish-event listener.
type EventConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// Enabled reports whether the listener should run.
func (e EventConfig) Enabled() bool {
	return len(e.Brokers) > 0 && e.Topic != ""
}

// RetrievalConfig sizes the retrieval worker pool.
type RetrievalConfig struct {
	Workers int `yaml:"workers"`
}

// RetryConfig bounds retries around a model call.
type RetryConfig struct {
	Attempts     int `yaml:"attempts"`
	RetryDelayMS int `yaml:"retry_delay_ms"`
}

// Delay returns the pause between attempts.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.RetryDelayMS) * time.Millisecond
}

// TimeoutsConfig bounds every external call.
type TimeoutsConfig struct {
	CompletionSec int `yaml:"completion_sec"`
	EmbeddingSec  int `yaml:"embedding_sec"`
	VectorSec     int `yaml:"vector_sec"`
	LookupSec     int `yaml:"lookup_sec"`
	RequestSec    int `yaml:"request_sec"`
}

// ClubsConfig holds the club alias table (token -> stored identifier).
type ClubsConfig struct {
	Aliases map[string]string `yaml:"aliases"`
}

// PipelineConfig holds request validation limits.
type PipelineConfig struct {
	MaxQueryChars int `yaml:"max_query_chars"`
}

// Seconds converts a seconds setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "ragq:"
	}
	if c.Vector.Index == "" {
		c.Vector.Index = c.Database.KeyPrefix + "passages:idx"
	}
	if c.Vector.VectorField == "" {
		c.Vector.VectorField = "vector"
	}
	if c.Vector.TextField == "" {
		c.Vector.TextField = "text"
	}
	if c.Vector.TopK <= 0 {
		c.Vector.TopK = 30
	}
	if c.Completion.Provider == "" {
		c.Completion.Provider = "openai"
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 1024
	}
	applyModelDefaults(&c.Completion.Models)
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Lookup.Driver == "" {
		c.Lookup.Driver = "s3"
	}
	if c.Lookup.Bucket == "" {
		c.Lookup.Bucket = "rag-training-lookup"
	}
	if c.Lookup.Key == "" {
		c.Lookup.Key = "entity-list.json"
	}
	if c.Lookup.Events.GroupID == "" {
		c.Lookup.Events.GroupID = "ragq-lookup"
	}
	if c.Retrieval.Workers <= 0 {
		c.Retrieval.Workers = 5
	}
	applyRetryDefaults(&c.Decompose)
	applyRetryDefaults(&c.Synthesize)
	if c.Timeouts.CompletionSec <= 0 {
		c.Timeouts.CompletionSec = 60
	}
	if c.Timeouts.EmbeddingSec <= 0 {
		c.Timeouts.EmbeddingSec = 15
	}
	if c.Timeouts.VectorSec <= 0 {
		c.Timeouts.VectorSec = 10
	}
	if c.Timeouts.LookupSec <= 0 {
		c.Timeouts.LookupSec = 10
	}
	if c.Pipeline.MaxQueryChars <= 0 {
		c.Pipeline.MaxQueryChars = 2000
	}
}

func applyModelDefaults(m *ModelsConfig) {
	const fast = "claude-3-haiku-20240307"
	if m.Decompose == "" {
		m.Decompose = fast
	}
	if m.Extract == "" {
		m.Extract = fast
	}
	if m.Match == "" {
		m.Match = fast
	}
	if m.Synthesize == "" {
		m.Synthesize = "claude-3-sonnet-20240229"
	}
}

func applyRetryDefaults(r *RetryConfig) {
	if r.Attempts <= 0 {
		r.Attempts = 2
	}
	if r.RetryDelayMS < 0 {
		r.RetryDelayMS = 0
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		result = multierror.Append(result, fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver))
	}
	if len(c.Database.Addrs) == 0 {
		result = multierror.Append(result, fmt.Errorf("database.addrs is required"))
	}
	if c.Embedding.Dimensions <= 0 {
		result = multierror.Append(result, fmt.Errorf("embedding.dimensions must be positive"))
	}
	switch c.Lookup.Driver {
	case "s3", "kv":
	default:
		result = multierror.Append(result, fmt.Errorf("lookup.driver must be \"s3\" or \"kv\", got %q", c.Lookup.Driver))
	}
	if c.Lookup.CacheTTLSec < 0 {
		result = multierror.Append(result, fmt.Errorf("lookup.cache_ttl_sec must not be negative"))
	}
	if c.Lookup.Events.Topic != "" && len(c.Lookup.Events.Brokers) == 0 {
		result = multierror.Append(result, fmt.Errorf("lookup.events.brokers is required when a topic is set"))
	}
	for name, b := range map[string]BudgetConfig{"completion": c.Completion.Budget, "embedding": c.Embedding.Budget} {
		switch b.Action {
		case "", "warn", "reject":
		default:
			result = multierror.Append(result, fmt.Errorf(
				"%s.budget.action must be \"warn\" or \"reject\", got %q", name, b.Action,
			))
		}
	}

	return result.ErrorOrNil()
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
