package embeddings

import "time"

// Input-type hints for asymmetric retrieval: free-text queries and indexed
// action summaries are tagged differently so backends that distinguish them
// can place both in a consistent embedding space.
const (
	InputQuery   = "query"
	InputPassage = "passage"
)

// Config controls the embedding service behavior.
type Config struct {
	// BaseURL points to the service providing POST /embeddings
	BaseURL string `mapstructure:"base_url"`
	// Model is the embedding model, e.g. text-embedding-3-small
	Model string `mapstructure:"model"`
	// Dimension of the produced vectors
	Dimension int `mapstructure:"dimension"`
	// Timeout for outbound HTTP calls
	Timeout time.Duration `mapstructure:"timeout"`
	// EnableRedis enables the Redis-backed cache tier
	EnableRedis bool `mapstructure:"enable_redis"`
	// RedisAddr in host:port form when EnableRedis is true
	RedisAddr string `mapstructure:"redis_addr"`
	// CacheTTL for Redis cache entries
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// MaxLRU bounds the in-process LRU
	MaxLRU int `mapstructure:"max_lru"`
}
