// Package config loads the YAML configuration shared by the docindex
// services and applies DI_* environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Builder  BuilderConfig  `yaml:"builder"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists the sites whose pages may call the API. Empty allows
	// any origin.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimit is the number of requests per minute allowed per client
	// address. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the build catalog.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ContentChanged string `yaml:"contentChanged"`
	IndexComplete  string `yaml:"indexComplete"`
	SearchEvents   string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// BuilderConfig controls where content is read from, where the generated
// index is written, and how it is built.
type BuilderConfig struct {
	SourceDir       string        `yaml:"sourceDir"`
	OutputDir       string        `yaml:"outputDir"`
	OutputFile      string        `yaml:"outputFile"`
	Include         []string      `yaml:"include"`
	Exclude         []string      `yaml:"exclude"`
	Weighted        bool          `yaml:"weighted"`
	LoadConcurrency int           `yaml:"loadConcurrency"`
	RebuildInterval time.Duration `yaml:"rebuildInterval"`
}

// OutputPath joins OutputDir and OutputFile.
func (b BuilderConfig) OutputPath() string {
	if b.OutputDir == "" {
		return b.OutputFile
	}
	return strings.TrimRight(b.OutputDir, "/") + "/" + b.OutputFile
}

// SearchConfig controls query execution limits and the ranking mode.
type SearchConfig struct {
	IndexPath    string `yaml:"indexPath"`
	MaxResults   int    `yaml:"maxResults"`
	DefaultLimit int    `yaml:"defaultLimit"`
	Ranking      string `yaml:"ranking"`
}

// AnalyticsConfig controls how often the analytics service snapshots its
// aggregates to Postgres and how many snapshots it keeps.
type AnalyticsConfig struct {
	SnapshotInterval  time.Duration `yaml:"snapshotInterval"`
	SnapshotRetention int           `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Builder.OutputFile == "" {
		return fmt.Errorf("builder.outputFile must not be empty")
	}
	if c.Builder.LoadConcurrency < 1 {
		return fmt.Errorf("builder.loadConcurrency must be positive, got %d", c.Builder.LoadConcurrency)
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	switch c.Search.Ranking {
	case "widget", "bm25":
	default:
		return fmt.Errorf("search.ranking must be widget or bm25, got %q", c.Search.Ranking)
	}
	if c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive, got %v", c.Analytics.SnapshotInterval)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docindex",
			User:            "docindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docindex-group",
			Topics: KafkaTopics{
				ContentChanged: "content-changed",
				IndexComplete:  "index.complete",
				SearchEvents:   "search.analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Builder: BuilderConfig{
			SourceDir:       "content",
			OutputDir:       "_build/html",
			OutputFile:      "searchindex.js",
			Include:         []string{"*.ipynb", "*.md", "*.txt"},
			LoadConcurrency: 8,
		},
		Search: SearchConfig{
			IndexPath:    "_build/html/searchindex.js",
			MaxResults:   100,
			DefaultLimit: 10,
			Ranking:      "widget",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 1440,
		},
	}
}

// envBinding maps one DI_* variable onto a config field. Values that do not
// parse leave the field untouched.
type envBinding struct {
	name  string
	apply func(cfg *Config, v string)
}

var envBindings = []envBinding{
	{"DI_SERVER_PORT", func(c *Config, v string) { setInt(&c.Server.Port, v) }},
	{"DI_SERVER_RATE_LIMIT", func(c *Config, v string) { setInt(&c.Server.RateLimit, v) }},
	{"DI_SERVER_CORS_ORIGINS", func(c *Config, v string) { c.Server.CORSOrigins = splitList(v) }},
	{"DI_POSTGRES_ENABLED", func(c *Config, v string) { setBool(&c.Postgres.Enabled, v) }},
	{"DI_POSTGRES_HOST", func(c *Config, v string) { c.Postgres.Host = v }},
	{"DI_POSTGRES_PORT", func(c *Config, v string) { setInt(&c.Postgres.Port, v) }},
	{"DI_POSTGRES_DATABASE", func(c *Config, v string) { c.Postgres.Database = v }},
	{"DI_POSTGRES_USER", func(c *Config, v string) { c.Postgres.User = v }},
	{"DI_POSTGRES_PASSWORD", func(c *Config, v string) { c.Postgres.Password = v }},
	{"DI_KAFKA_ENABLED", func(c *Config, v string) { setBool(&c.Kafka.Enabled, v) }},
	{"DI_KAFKA_BROKERS", func(c *Config, v string) { c.Kafka.Brokers = splitList(v) }},
	{"DI_REDIS_ENABLED", func(c *Config, v string) { setBool(&c.Redis.Enabled, v) }},
	{"DI_REDIS_ADDR", func(c *Config, v string) { c.Redis.Addr = v }},
	{"DI_REDIS_PASSWORD", func(c *Config, v string) { c.Redis.Password = v }},
	{"DI_SOURCE_DIR", func(c *Config, v string) { c.Builder.SourceDir = v }},
	{"DI_OUTPUT_DIR", func(c *Config, v string) { c.Builder.OutputDir = v }},
	{"DI_INDEX_PATH", func(c *Config, v string) { c.Search.IndexPath = v }},
	{"DI_SEARCH_RANKING", func(c *Config, v string) { c.Search.Ranking = v }},
	{"DI_ANALYTICS_SNAPSHOT_INTERVAL", func(c *Config, v string) { setDuration(&c.Analytics.SnapshotInterval, v) }},
	{"DI_LOGGING_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"DI_LOGGING_FORMAT", func(c *Config, v string) { c.Logging.Format = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, b := range envBindings {
		if v, ok := os.LookupEnv(b.name); ok && v != "" {
			b.apply(cfg, v)
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func setDuration(dst *time.Duration, v string) {
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
