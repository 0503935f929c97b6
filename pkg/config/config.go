// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Index, Search, Concepts, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Postgres        PostgresConfig        `yaml:"postgres"`
	Kafka           KafkaConfig           `yaml:"kafka"`
	Redis           RedisConfig           `yaml:"redis"`
	Index           IndexConfig           `yaml:"index"`
	Search          SearchConfig          `yaml:"search"`
	Concepts        ConceptsConfig        `yaml:"concepts"`
	Personalization PersonalizationConfig `yaml:"personalization"`
	Auth            AuthConfig            `yaml:"auth"`
	Logging         LoggingConfig         `yaml:"logging"`
	Metrics         MetricsConfig         `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document store.
type PostgresConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Database        string        `yaml:"database" validate:"required"`
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
	DocumentChanges string `yaml:"documentChanges"`
	SearchEvents    string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig controls the corpus index build.
type IndexConfig struct {
	// BuildLimit caps how many documents a full build reads from the
	// document source. Documents past the cap are not indexed.
	BuildLimit   int `yaml:"buildLimit" validate:"min=1"`
	BuildWorkers int `yaml:"buildWorkers" validate:"min=1"`
	BuildRetries int `yaml:"buildRetries" validate:"min=1"`
}

// SearchConfig controls query execution limits and scoring.
type SearchConfig struct {
	DefaultLimit      int           `yaml:"defaultLimit" validate:"min=1"`
	MaxResults        int           `yaml:"maxResults" validate:"min=1"`
	SemanticThreshold float64       `yaml:"semanticThreshold" validate:"min=0,max=1"`
	SemanticLimit     int           `yaml:"semanticLimit" validate:"min=1"`
	SnippetLength     int           `yaml:"snippetLength" validate:"min=16"`
	MaxSuggestions    int           `yaml:"maxSuggestions" validate:"min=0"`
	QueryTimeout      time.Duration `yaml:"queryTimeout"`
	Boosts            BoostConfig   `yaml:"boosts"`
}

// BoostConfig holds the per-match coefficients and caps of the additive
// relevance boosts.
type BoostConfig struct {
	TitlePerMatch   float64       `yaml:"titlePerMatch"`
	TitleCap        float64       `yaml:"titleCap"`
	KeywordPerMatch float64       `yaml:"keywordPerMatch"`
	KeywordCap      float64       `yaml:"keywordCap"`
	EntityPerMatch  float64       `yaml:"entityPerMatch"`
	EntityCap       float64       `yaml:"entityCap"`
	FreshnessMax    float64       `yaml:"freshnessMax"`
	FreshnessWindow time.Duration `yaml:"freshnessWindow"`
	PersonalPerHit  float64       `yaml:"personalPerHit"`
	PersonalCap     float64       `yaml:"personalCap"`
}

// ConceptsConfig configures the external concept-extraction collaborator.
type ConceptsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"baseURL"`
	Model            string        `yaml:"model"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// PersonalizationConfig controls per-user search history.
type PersonalizationConfig struct {
	HistorySize int `yaml:"historySize" validate:"min=1"`
	BiasTerms   int `yaml:"biasTerms" validate:"min=0"`
	BiasWindow  int `yaml:"biasWindow" validate:"min=1"`
}

// AuthConfig controls caller identity and per-caller rate limits.
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwtSecret"`
	RateLimitPerWindow int           `yaml:"rateLimitPerWindow"`
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
	// Admins may call the index rebuild and cache invalidation routes.
	// Empty admits any authenticated caller.
	Admins []string `yaml:"admins"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
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
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct-level constraints on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: field %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Search.DefaultLimit > cfg.Search.MaxResults {
		return fmt.Errorf("invalid config: search.defaultLimit %d exceeds search.maxResults %d",
			cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	}
	return nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
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
			Database:        "documents",
			User:            "search",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "hybrid-search",
			Topics: KafkaTopics{
				DocumentChanges: "document-changes",
				SearchEvents:    "search-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			BuildLimit:   1000,
			BuildWorkers: 4,
			BuildRetries: 5,
		},
		Search: SearchConfig{
			DefaultLimit:      20,
			MaxResults:        100,
			SemanticThreshold: 0.3,
			SemanticLimit:     20,
			SnippetLength:     160,
			MaxSuggestions:    5,
			QueryTimeout:      5 * time.Second,
			Boosts:            DefaultBoosts(),
		},
		Concepts: ConceptsConfig{
			Enabled:          false,
			BaseURL:          "http://localhost:11434/v1",
			Model:            "llama3.1",
			Timeout:          2 * time.Second,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Personalization: PersonalizationConfig{
			HistorySize: 100,
			BiasTerms:   3,
			BiasWindow:  20,
		},
		Auth: AuthConfig{
			RateLimitPerWindow: 120,
			RateLimitWindow:    time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// DefaultBoosts returns the standard relevance boost coefficients.
func DefaultBoosts() BoostConfig {
	return BoostConfig{
		TitlePerMatch:   0.3,
		TitleCap:        0.6,
		KeywordPerMatch: 0.2,
		KeywordCap:      0.4,
		EntityPerMatch:  0.25,
		EntityCap:       0.5,
		FreshnessMax:    0.1,
		FreshnessWindow: 365 * 24 * time.Hour,
		PersonalPerHit:  0.05,
		PersonalCap:     0.1,
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SP_INDEX_BUILD_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.BuildLimit = n
		}
	}
	if v := os.Getenv("SP_CONCEPTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Concepts.Enabled = b
		}
	}
	if v := os.Getenv("SP_CONCEPTS_BASE_URL"); v != "" {
		cfg.Concepts.BaseURL = v
	}
	if v := os.Getenv("SP_CONCEPTS_MODEL"); v != "" {
		cfg.Concepts.Model = v
	}
	if v := os.Getenv("SP_CONCEPTS_TOKEN"); v != "" {
		cfg.Concepts.Token = v
	}
	if v := os.Getenv("SP_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
