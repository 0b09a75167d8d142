// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Indexer, Tokenizer, Search, Server, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
)

// Match policies for exact-mode retrieval.
const (
	MatchAny = "any"
	MatchAll = "all"
)

// Document source kinds.
const (
	SourceFS       = "fs"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RPC       RPCConfig       `yaml:"rpc"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Search    SearchConfig    `yaml:"search"`
	Source    SourceConfig    `yaml:"source"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// AdminKeyHashes are hex SHA-256 digests of keys accepted on the admin
	// endpoints. Empty leaves them open.
	AdminKeyHashes []string `yaml:"adminKeyHashes"`
}

// RPCConfig controls the JSON-over-TCP RPC listener. An empty Addr disables it.
type RPCConfig struct {
	Addr string `yaml:"addr"`
}

// IndexerConfig controls how documents are discovered and how a built index
// is persisted and refreshed.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	Extensions     []string      `yaml:"extensions"`
	MaxFileSize    int64         `yaml:"maxFileSize"`
	Workers        int           `yaml:"workers"`
	SnapshotPath   string        `yaml:"snapshotPath"`
	Watch          bool          `yaml:"watch"`
	WatchDebounce  time.Duration `yaml:"watchDebounce"`
	RebuildTimeout time.Duration `yaml:"rebuildTimeout"`
}

// TokenizerConfig controls term normalisation. The same settings are used
// for indexing and querying.
type TokenizerConfig struct {
	MinLength   int  `yaml:"minLength"`
	MaxLength   int  `yaml:"maxLength"`
	StopWords   bool `yaml:"stopWords"`
	DropNumeric bool `yaml:"dropNumeric"`
}

// SearchConfig controls scoring, request limits and snippet extraction.
type SearchConfig struct {
	TitleBonus         float64 `yaml:"titleBonus"`
	MatchPolicy        string  `yaml:"matchPolicy"`
	DefaultTopK        int     `yaml:"defaultTopK"`
	MaxPageSize        int     `yaml:"maxPageSize"`
	DefaultExpandLimit int     `yaml:"defaultExpandLimit"`
	DefaultSuggest     int     `yaml:"defaultSuggest"`
	SnippetContext     int     `yaml:"snippetContext"`
	SnippetFallback    int     `yaml:"snippetFallback"`
}

// SourceConfig selects where documents are loaded from.
type SourceConfig struct {
	Kind  string `yaml:"kind"`
	Query string `yaml:"query"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
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
	SearchEvents   string `yaml:"searchEvents"`
	RebuildRequest string `yaml:"rebuildRequest"`
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

// RateLimitConfig controls the per-client token bucket in serve mode.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
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
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		RPC: RPCConfig{
			Addr: ":9000",
		},
		Indexer: IndexerConfig{
			DataDir:        "./Data",
			Extensions:     []string{".txt", ".md", ".html", ".htm"},
			MaxFileSize:    100 * 1024 * 1024,
			Workers:        4,
			WatchDebounce:  500 * time.Millisecond,
			RebuildTimeout: 5 * time.Minute,
		},
		Tokenizer: TokenizerConfig{
			MinLength: 1,
		},
		Search: SearchConfig{
			TitleBonus:         2.0,
			MatchPolicy:        MatchAny,
			DefaultTopK:        10,
			MaxPageSize:        1000,
			DefaultExpandLimit: 100,
			DefaultSuggest:     10,
			SnippetContext:     200,
			SnippetFallback:    300,
		},
		Source: SourceConfig{
			Kind:  SourceFS,
			Query: "SELECT id, title, body FROM documents ORDER BY id",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "minisearch",
			User:            "minisearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "minisearch",
			Topics: KafkaTopics{
				SearchEvents:   "search-events",
				RebuildRequest: "index-rebuild",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Indexer.DataDir == "" && c.Source.Kind == SourceFS {
		return fmt.Errorf("indexer.dataDir must be set for the filesystem source")
	}
	if c.Indexer.Workers < 1 {
		return fmt.Errorf("indexer.workers must be >= 1, got %d", c.Indexer.Workers)
	}
	if c.Tokenizer.MinLength < 1 {
		return fmt.Errorf("tokenizer.minLength must be >= 1, got %d", c.Tokenizer.MinLength)
	}
	if c.Tokenizer.MaxLength != 0 && c.Tokenizer.MaxLength < c.Tokenizer.MinLength {
		return fmt.Errorf("tokenizer.maxLength %d is below minLength %d", c.Tokenizer.MaxLength, c.Tokenizer.MinLength)
	}
	if c.Search.TitleBonus <= 0 {
		return fmt.Errorf("search.titleBonus must be positive, got %v", c.Search.TitleBonus)
	}
	if c.Search.MatchPolicy != MatchAny && c.Search.MatchPolicy != MatchAll {
		return fmt.Errorf("search.matchPolicy must be %q or %q, got %q", MatchAny, MatchAll, c.Search.MatchPolicy)
	}
	if c.Search.MaxPageSize < 1 {
		return fmt.Errorf("search.maxPageSize must be >= 1, got %d", c.Search.MaxPageSize)
	}
	if c.Source.Kind != SourceFS && c.Source.Kind != SourcePostgres {
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceFS, SourcePostgres, c.Source.Kind)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// applyEnvOverrides reads MS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MS_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("MS_SNAPSHOT_PATH"); v != "" {
		cfg.Indexer.SnapshotPath = v
	}
	if v := os.Getenv("MS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MS_ADMIN_KEY_HASHES"); v != "" {
		cfg.Server.AdminKeyHashes = strings.Split(v, ",")
	}
	if v := os.Getenv("MS_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("MS_MATCH_POLICY"); v != "" {
		cfg.Search.MatchPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("MS_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("MS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("MS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("MS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
