package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the chat-insight tools.
type Config struct {
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	DataDir   string `envconfig:"DATA_DIR" default:"."`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	LLM       LLMConfig
	Analysis  AnalysisConfig
	Flatten   FlattenConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host      string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port      string `envconfig:"SERVER_PORT" default:"8000"`
	StaticDir string `envconfig:"STATIC_DIR" default:"."`
	JWTSecret string `envconfig:"JWT_SECRET"`
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables relational storage.
type DatabaseConfig struct {
	DSN string `envconfig:"DATABASE_DSN"`
}

// RedisConfig holds Redis configuration. An empty URI selects the in-process cache.
type RedisConfig struct {
	URI string `envconfig:"REDIS_URI"`
}

// CacheConfig holds cache sizing and expiry.
type CacheConfig struct {
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	MaxBytes int64         `envconfig:"CACHE_MAX_BYTES" default:"67108864"`
}

// LLMConfig holds the OpenAI-compatible chat completions API configuration.
type LLMConfig struct {
	BaseURL string        `envconfig:"LLM_BASE_URL" default:"https://space.ai-builders.com/backend/v1"`
	APIKey  string        `envconfig:"AI_BUILDER_TOKEN"`
	Model   string        `envconfig:"LLM_MODEL" default:"deepseek"`
	Timeout time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
}

// AnalysisConfig holds report stage settings.
type AnalysisConfig struct {
	DepthSample      int           `envconfig:"ANALYSIS_DEPTH_SAMPLE" default:"100"`
	SummaryBatchSize int           `envconfig:"SUMMARY_BATCH_SIZE" default:"30"`
	SummaryPause     time.Duration `envconfig:"SUMMARY_BATCH_PAUSE" default:"2s"`
}

// FlattenConfig holds flattener settings.
type FlattenConfig struct {
	Workers int `envconfig:"FLATTEN_WORKERS" default:"1"`
}

// Load reads a .env file when present, then configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond required fields.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.Analysis.SummaryBatchSize <= 0 {
		return fmt.Errorf("SUMMARY_BATCH_SIZE must be positive, got %d", c.Analysis.SummaryBatchSize)
	}
	if c.Flatten.Workers <= 0 {
		return fmt.Errorf("FLATTEN_WORKERS must be positive, got %d", c.Flatten.Workers)
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("CACHE_MAX_BYTES must be positive, got %d", c.Cache.MaxBytes)
	}
	return nil
}

// RequireLLM reports whether the summarizer can run.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("AI_BUILDER_TOKEN is not set; add it to the environment or .env")
	}
	return nil
}
