package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOOLSEARCH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2112, cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 100, cfg.Search.BatchSize)
	assert.Equal(t, "config/definitions", cfg.Search.DefinitionsDir)
	assert.Equal(t, "http://localhost:8000", cfg.Embeddings.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
	assert.Equal(t, 10*time.Second, cfg.Embeddings.Timeout)
	assert.Equal(t, "tools-search-v1", cfg.VectorDB.IndexName)
	assert.Equal(t, "test", cfg.VectorDB.Namespace)
	assert.Equal(t, 1536, cfg.VectorDB.Dimension)
	assert.Equal(t, "cosine", cfg.VectorDB.Metric)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolsearch.yaml")
	yaml := `
server:
  port: 9090
  auth_secret: file-secret
logging:
  level: debug
  format: console
search:
  batch_size: 25
  definitions_dir: /etc/toolsearch/definitions
embeddings:
  base_url: http://embedder:8000
  dimension: 768
vectordb:
  index_name: tools-prod
  namespace: prod
  dimension: 768
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("TOOLSEARCH_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Server.AuthSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 25, cfg.Search.BatchSize)
	assert.Equal(t, "http://embedder:8000", cfg.Embeddings.BaseURL)
	assert.Equal(t, 768, cfg.Embeddings.Dimension)
	assert.Equal(t, "tools-prod", cfg.VectorDB.IndexName)
	assert.Equal(t, "prod", cfg.VectorDB.Namespace)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2112, cfg.Server.MetricsPort)
}

func TestLoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o600))
	t.Setenv("TOOLSEARCH_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLSEARCH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("TOOLSEARCH_SERVER_PORT", "7070")
	t.Setenv("TOOLSEARCH_LOGGING_LEVEL", "warn")
	t.Setenv("TOOLSEARCH_SEARCH_BATCH_SIZE", "42")
	t.Setenv("PINECONE_API_KEY", "pc-key")
	t.Setenv("PINECONE_INDEX_HOST", "https://idx.example.pinecone.io")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DATABASE_URL", "postgres://audit:pw@db/tools")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 42, cfg.Search.BatchSize)
	assert.Equal(t, "pc-key", cfg.VectorDB.APIKey)
	assert.Equal(t, "https://idx.example.pinecone.io", cfg.VectorDB.IndexHost)
	assert.Equal(t, "redis:6379", cfg.Embeddings.RedisAddr)
	assert.True(t, cfg.Embeddings.EnableRedis)
	assert.Equal(t, "postgres://audit:pw@db/tools", cfg.Persistence.PostgresDSN)
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Embeddings.BaseURL = "http://localhost:8000"
	cfg.Embeddings.Dimension = 1536
	cfg.VectorDB.APIKey = "pc-key"
	cfg.VectorDB.Dimension = 1536
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	noCreds := validConfig()
	noCreds.VectorDB.APIKey = ""
	noCreds.VectorDB.IndexHost = ""
	assert.ErrorContains(t, noCreds.Validate(), "API key or an index host")

	hostOnly := validConfig()
	hostOnly.VectorDB.APIKey = ""
	hostOnly.VectorDB.IndexHost = "https://idx.example.pinecone.io"
	assert.NoError(t, hostOnly.Validate())

	noBase := validConfig()
	noBase.Embeddings.BaseURL = ""
	assert.ErrorContains(t, noBase.Validate(), "base URL is required")

	mismatch := validConfig()
	mismatch.VectorDB.Dimension = 768
	assert.ErrorContains(t, mismatch.Validate(), "does not match index dimension")

	badPort := validConfig()
	badPort.Server.Port = 0
	assert.ErrorContains(t, badPort.Validate(), "invalid port")
}
