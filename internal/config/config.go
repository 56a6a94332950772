// Package config provides configuration management for the federated search service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the federated search service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Redis contains shared (L2) cache tier settings.
	Redis RedisConfig `mapstructure:"redis"`
	// Cache contains tiered cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Sources contains metadata provider configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Pipeline contains search pipeline tuning knobs.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Selection contains adaptive source selection settings.
	Selection SelectionConfig `mapstructure:"selection"`
	// Warmer contains cache warming settings.
	Warmer WarmerConfig `mapstructure:"warmer"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// RedisConfig holds shared (L2) cache tier settings.
type RedisConfig struct {
	// Enabled controls whether the shared tier is used. When disabled the
	// cache manager degrades to the in-process tiers.
	Enabled bool `mapstructure:"enabled"`
	// Address is the Redis server address (host:port).
	Address string `mapstructure:"address"`
	// Password is the Redis password (loaded from FEDSEARCH_REDIS_PASSWORD).
	Password string `mapstructure:"-"`
	// DB is the Redis database number.
	DB int `mapstructure:"db"`
	// DialTimeout is the timeout for establishing a connection.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// OpTimeout is the timeout applied to individual cache operations.
	OpTimeout time.Duration `mapstructure:"op_timeout"`
}

// CacheConfig holds tiered cache settings.
type CacheConfig struct {
	// L1Size is the per-strategy entry capacity of the in-process tier.
	L1Size int `mapstructure:"l1_size"`
	// L3Capacity is the entry capacity of the bounded tier (default 50000).
	L3Capacity int `mapstructure:"l3_capacity"`
	// TTLOverrides maps strategy names to L1 TTL overrides. L2 and L3 TTLs
	// scale from the L1 value with the same per-strategy ratios as the defaults.
	TTLOverrides map[string]time.Duration `mapstructure:"ttl_overrides"`
}

// SourcesConfig holds configuration for all metadata providers.
type SourcesConfig struct {
	// GatewayBaseURL is the base URL of the provider normalizer gateway.
	// Per-provider parsing lives behind this gateway; each provider is
	// reached at GatewayBaseURL/{source}/search.
	GatewayBaseURL string `mapstructure:"gateway_base_url"`

	// Crossref through DOAJ contain per-provider settings.
	Crossref        SourceConfig `mapstructure:"crossref"`
	OpenAlex        SourceConfig `mapstructure:"openalex"`
	Unpaywall       SourceConfig `mapstructure:"unpaywall"`
	EuropePMC       SourceConfig `mapstructure:"europepmc"`
	CORE            SourceConfig `mapstructure:"core"`
	OpenAIRE        SourceConfig `mapstructure:"openaire"`
	NCBI            SourceConfig `mapstructure:"ncbi"`
	OpenCitations   SourceConfig `mapstructure:"opencitations"`
	DataCite        SourceConfig `mapstructure:"datacite"`
	SemanticScholar SourceConfig `mapstructure:"semanticscholar"`
	ArXiv           SourceConfig `mapstructure:"arxiv"`
	DOAJ            SourceConfig `mapstructure:"doaj"`
}

// SourceConfig holds configuration for a single metadata provider.
type SourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment, e.g. FEDSEARCH_SOURCES_CORE_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL overrides the gateway-derived URL for this provider.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the hard timeout for calls to this provider.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// ByName returns the per-provider config for a source name, and whether the
// name is known.
func (s *SourcesConfig) ByName(name string) (SourceConfig, bool) {
	switch name {
	case "crossref":
		return s.Crossref, true
	case "openalex":
		return s.OpenAlex, true
	case "unpaywall":
		return s.Unpaywall, true
	case "europepmc":
		return s.EuropePMC, true
	case "core":
		return s.CORE, true
	case "openaire":
		return s.OpenAIRE, true
	case "ncbi":
		return s.NCBI, true
	case "opencitations":
		return s.OpenCitations, true
	case "datacite":
		return s.DataCite, true
	case "semanticscholar":
		return s.SemanticScholar, true
	case "arxiv":
		return s.ArXiv, true
	case "doaj":
		return s.DOAJ, true
	}
	return SourceConfig{}, false
}

// PipelineConfig holds search pipeline tuning knobs.
type PipelineConfig struct {
	// DefaultPageSize is the page size when the request does not set one.
	DefaultPageSize int `mapstructure:"default_page_size"`
	// MaxPageSize caps the requested page size.
	MaxPageSize int `mapstructure:"max_page_size"`
	// DiscoveryLimit bounds how many candidates the primary index returns.
	DiscoveryLimit int `mapstructure:"discovery_limit"`
	// EnrichmentBatchSize is the number of records enriched concurrently per batch.
	EnrichmentBatchSize int `mapstructure:"enrichment_batch_size"`
	// EnrichmentDelay is the politeness delay between enrichment batches.
	EnrichmentDelay time.Duration `mapstructure:"enrichment_delay"`
	// AggregatorTimeout is the hard per-provider timeout for aggregate searches.
	AggregatorTimeout time.Duration `mapstructure:"aggregator_timeout"`
	// RetryAttempts is the fixed retry count in fallback execution.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryDelay is the fixed delay between fallback retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// SelectionConfig holds adaptive source selection settings.
type SelectionConfig struct {
	// AdaptiveLearning re-ranks strategy tiers using live performance metrics.
	AdaptiveLearning bool `mapstructure:"adaptive_learning"`
	// LearningRate is the EMA coefficient for live metrics (0-1).
	LearningRate float64 `mapstructure:"learning_rate"`
	// DecayFactor is applied to sources untouched for the staleness window.
	DecayFactor float64 `mapstructure:"decay_factor"`
	// StalenessWindow is how long a source may go unobserved before decay.
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	// HistoryLimit caps the performance report history.
	HistoryLimit int `mapstructure:"history_limit"`
}

// WarmerConfig holds cache warming settings.
type WarmerConfig struct {
	// Enabled controls whether background warming runs.
	Enabled bool `mapstructure:"enabled"`
	// Interval is the period between warming runs.
	Interval time.Duration `mapstructure:"interval"`
	// TopQueries is how many popular queries to warm per run.
	TopQueries int `mapstructure:"top_queries"`
	// TopRecords is how many trending records to warm per run.
	TopRecords int `mapstructure:"top_records"`
	// QueryWindow is how long a popular query is retained without use.
	QueryWindow time.Duration `mapstructure:"query_window"`
	// RecordWindow is how long a trending record is retained without access.
	RecordWindow time.Duration `mapstructure:"record_window"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("FEDSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/federated-search-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Redis.Password = os.Getenv("FEDSEARCH_REDIS_PASSWORD")

	cfg.Sources.Crossref.APIKey = os.Getenv("FEDSEARCH_SOURCES_CROSSREF_API_KEY")
	cfg.Sources.OpenAlex.APIKey = os.Getenv("FEDSEARCH_SOURCES_OPENALEX_API_KEY")
	cfg.Sources.Unpaywall.APIKey = os.Getenv("FEDSEARCH_SOURCES_UNPAYWALL_API_KEY")
	cfg.Sources.EuropePMC.APIKey = os.Getenv("FEDSEARCH_SOURCES_EUROPEPMC_API_KEY")
	cfg.Sources.CORE.APIKey = os.Getenv("FEDSEARCH_SOURCES_CORE_API_KEY")
	cfg.Sources.OpenAIRE.APIKey = os.Getenv("FEDSEARCH_SOURCES_OPENAIRE_API_KEY")
	cfg.Sources.NCBI.APIKey = os.Getenv("FEDSEARCH_SOURCES_NCBI_API_KEY")
	cfg.Sources.OpenCitations.APIKey = os.Getenv("FEDSEARCH_SOURCES_OPENCITATIONS_API_KEY")
	cfg.Sources.DataCite.APIKey = os.Getenv("FEDSEARCH_SOURCES_DATACITE_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("FEDSEARCH_SOURCES_SEMANTICSCHOLAR_API_KEY")
	cfg.Sources.ArXiv.APIKey = os.Getenv("FEDSEARCH_SOURCES_ARXIV_API_KEY")
	cfg.Sources.DOAJ.APIKey = os.Getenv("FEDSEARCH_SOURCES_DOAJ_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.op_timeout", "500ms")

	// Cache defaults
	v.SetDefault("cache.l1_size", 2048)
	v.SetDefault("cache.l3_capacity", 50000)

	// Source defaults. Per-provider rate limits follow the published
	// politeness guidelines of each API.
	v.SetDefault("sources.gateway_base_url", "http://localhost:8090")
	for name, rps := range map[string]float64{
		"crossref":        10,
		"openalex":        10,
		"unpaywall":       10,
		"europepmc":       5,
		"core":            5,
		"openaire":        5,
		"ncbi":            3,
		"opencitations":   5,
		"datacite":        5,
		"semanticscholar": 10,
		"arxiv":           3,
		"doaj":            5,
	} {
		v.SetDefault("sources."+name+".enabled", true)
		v.SetDefault("sources."+name+".timeout", "10s")
		v.SetDefault("sources."+name+".rate_limit", rps)
		v.SetDefault("sources."+name+".max_results", 50)
	}

	// Pipeline defaults
	v.SetDefault("pipeline.default_page_size", 20)
	v.SetDefault("pipeline.max_page_size", 100)
	v.SetDefault("pipeline.discovery_limit", 100)
	v.SetDefault("pipeline.enrichment_batch_size", 8)
	v.SetDefault("pipeline.enrichment_delay", "200ms")
	v.SetDefault("pipeline.aggregator_timeout", "10s")
	v.SetDefault("pipeline.retry_attempts", 2)
	v.SetDefault("pipeline.retry_delay", "500ms")

	// Selection defaults
	v.SetDefault("selection.adaptive_learning", true)
	v.SetDefault("selection.learning_rate", 0.3)
	v.SetDefault("selection.decay_factor", 0.95)
	v.SetDefault("selection.staleness_window", "24h")
	v.SetDefault("selection.history_limit", 1000)

	// Warmer defaults
	v.SetDefault("warmer.enabled", true)
	v.SetDefault("warmer.interval", "15m")
	v.SetDefault("warmer.top_queries", 10)
	v.SetDefault("warmer.top_records", 20)
	v.SetDefault("warmer.query_window", "720h")  // 30 days
	v.SetDefault("warmer.record_window", "168h") // 7 days
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when the shared tier is enabled")
	}

	if c.Cache.L1Size <= 0 {
		return fmt.Errorf("cache l1_size must be positive")
	}
	if c.Cache.L3Capacity <= 0 {
		return fmt.Errorf("cache l3_capacity must be positive")
	}

	if c.Pipeline.DefaultPageSize <= 0 || c.Pipeline.DefaultPageSize > c.Pipeline.MaxPageSize {
		return fmt.Errorf("pipeline default_page_size must be in 1..max_page_size")
	}
	if c.Pipeline.EnrichmentBatchSize <= 0 {
		return fmt.Errorf("pipeline enrichment_batch_size must be positive")
	}

	if c.Selection.LearningRate <= 0 || c.Selection.LearningRate > 1 {
		return fmt.Errorf("selection learning_rate must be in (0, 1]")
	}
	if c.Selection.DecayFactor <= 0 || c.Selection.DecayFactor >= 1 {
		return fmt.Errorf("selection decay_factor must be in (0, 1)")
	}

	return nil
}
