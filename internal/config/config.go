package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the songrec service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Recommend RecommendConfig `yaml:"recommend"`
	Stats     StatsConfig     `yaml:"stats"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
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
	Port               int             `yaml:"port"`
	ReadTimeoutSec     int             `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int             `yaml:"write_timeout_sec"`
	ShutdownSec        int             `yaml:"shutdown_timeout_sec"`
	CORSAllowedOrigins []string        `yaml:"cors_allowed_origins"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"` // < 0 disables
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	URI              string   `yaml:"uri"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Name             string   `yaml:"name"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// UpstreamConfig holds the external music search API settings.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSec     int           `yaml:"timeout_sec"`
	SeedTimeoutSec int           `yaml:"seed_timeout_sec"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker thresholds for the upstream client.
type BreakerConfig struct {
	FailureThreshold    uint32 `yaml:"failure_threshold"`
	OpenTimeoutSec      int    `yaml:"open_timeout_sec"`
	MaxHalfOpenRequests uint32 `yaml:"max_half_open_requests"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	Cache         *bool  `yaml:"cache"`
	CacheTTLHours int    `yaml:"cache_ttl_hours"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// CacheEnabled reports whether the embedding cache is on (default true).
func (e EmbeddingConfig) CacheEnabled() bool {
	return e.Cache == nil || *e.Cache
}

// IngestConfig holds background ingestion queue settings.
type IngestConfig struct {
	Workers          int    `yaml:"workers"`
	QueueSize        int    `yaml:"queue_size"`
	OverloadPolicy   string `yaml:"overload_policy"` // drop_newest, drop_oldest, block
	EnqueueTimeoutMs int    `yaml:"enqueue_timeout_ms"`
	ItemTimeoutSec   int    `yaml:"item_timeout_sec"`
}

// RecommendConfig holds recommendation limits.
type RecommendConfig struct {
	DefaultLimit        int `yaml:"default_limit"`
	MaxLimit            int `yaml:"max_limit"`
	CandidateMultiplier int `yaml:"candidate_multiplier"`
}

// StatsConfig holds statistics settings.
type StatsConfig struct {
	TopLanguages int `yaml:"top_languages"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.CORSAllowedOrigins == nil {
		c.HTTP.CORSAllowedOrigins = []string{"*"}
	}
	if c.HTTP.RateLimit.RequestsPerMinute == 0 {
		c.HTTP.RateLimit.RequestsPerMinute = 300
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.Name == "" {
		c.Database.Name = "songrec"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}
	c.Database.URI = NormalizeURI(c.Database.URI)

	if c.Upstream.TimeoutSec <= 0 {
		c.Upstream.TimeoutSec = 10
	}
	if c.Upstream.SeedTimeoutSec <= 0 {
		c.Upstream.SeedTimeoutSec = 15
	}
	if c.Upstream.Breaker.FailureThreshold == 0 {
		c.Upstream.Breaker.FailureThreshold = 5
	}
	if c.Upstream.Breaker.OpenTimeoutSec <= 0 {
		c.Upstream.Breaker.OpenTimeoutSec = 30
	}
	if c.Upstream.Breaker.MaxHalfOpenRequests == 0 {
		c.Upstream.Breaker.MaxHalfOpenRequests = 1
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 720
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.QueueSize <= 0 {
		c.Ingest.QueueSize = 256
	}
	if c.Ingest.OverloadPolicy == "" {
		c.Ingest.OverloadPolicy = "drop_newest"
	}
	if c.Ingest.EnqueueTimeoutMs <= 0 {
		c.Ingest.EnqueueTimeoutMs = 500
	}
	if c.Ingest.ItemTimeoutSec <= 0 {
		c.Ingest.ItemTimeoutSec = 30
	}

	if c.Recommend.DefaultLimit <= 0 {
		c.Recommend.DefaultLimit = 10
	}
	if c.Recommend.MaxLimit <= 0 {
		c.Recommend.MaxLimit = 50
	}
	if c.Recommend.CandidateMultiplier <= 0 {
		c.Recommend.CandidateMultiplier = 10
	}

	if c.Stats.TopLanguages <= 0 {
		c.Stats.TopLanguages = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}
	if c.Database.URI == "" && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.uri or database.addrs is required")
	}
	if c.Database.URI != "" {
		if err := ValidateURI(c.Database.URI); err != nil {
			return fmt.Errorf("database.uri: %w", err)
		}
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	switch c.Ingest.OverloadPolicy {
	case "drop_newest", "drop_oldest", "block":
	default:
		return fmt.Errorf(
			"ingest.overload_policy must be \"drop_newest\", \"drop_oldest\" or \"block\", got %q",
			c.Ingest.OverloadPolicy,
		)
	}
	if c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend.default_limit %d exceeds recommend.max_limit %d",
			c.Recommend.DefaultLimit, c.Recommend.MaxLimit)
	}
	return nil
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
