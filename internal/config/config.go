package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/embeddings"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	AuthSecret  string `mapstructure:"auth_secret"`
}

// TracingConfig holds OTLP exporter settings.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// SearchConfig tunes indexing behavior.
type SearchConfig struct {
	BatchSize      int    `mapstructure:"batch_size"`
	DefinitionsDir string `mapstructure:"definitions_dir"`
	RateLimitFile  string `mapstructure:"rate_limit_file"`
}

// PersistenceConfig holds the audit store settings.
type PersistenceConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Search      SearchConfig      `mapstructure:"search"`
	Embeddings  embeddings.Config `mapstructure:"embeddings"`
	VectorDB    vectordb.Config   `mapstructure:"vectordb"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// envKeyReplacer maps nested keys to env names, e.g. server.port to
// TOOLSEARCH_SERVER_PORT.
var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 2112)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("search.batch_size", 100)
	v.SetDefault("search.definitions_dir", "config/definitions")
	v.SetDefault("embeddings.base_url", "http://localhost:8000")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.dimension", 1536)
	v.SetDefault("embeddings.timeout", 10*time.Second)
	v.SetDefault("vectordb.index_name", "tools-search-v1")
	v.SetDefault("vectordb.namespace", "test")
	v.SetDefault("vectordb.dimension", 1536)
	v.SetDefault("vectordb.metric", "cosine")
}

// Load reads config from TOOLSEARCH_CONFIG (or config/toolsearch.yaml when
// present), with TOOLSEARCH_* env vars taking precedence. A missing file is
// fine; defaults plus env cover a full configuration.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOOLSEARCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envKeyReplacer)

	cfgPath := os.Getenv("TOOLSEARCH_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/toolsearch.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides handles the well-known env vars that don't follow the
// TOOLSEARCH_ prefix convention.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("PINECONE_API_KEY"); key != "" {
		cfg.VectorDB.APIKey = key
	}
	if host := os.Getenv("PINECONE_INDEX_HOST"); host != "" {
		cfg.VectorDB.IndexHost = host
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Embeddings.RedisAddr = addr
		cfg.Embeddings.EnableRedis = true
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Persistence.PostgresDSN = dsn
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.VectorDB.APIKey == "" && c.VectorDB.IndexHost == "" {
		return fmt.Errorf("vectordb: either an API key or an index host is required")
	}
	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings: base URL is required")
	}
	if c.Embeddings.Dimension != c.VectorDB.Dimension {
		return fmt.Errorf("embedding dimension %d does not match index dimension %d",
			c.Embeddings.Dimension, c.VectorDB.Dimension)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	return nil
}
