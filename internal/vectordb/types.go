package vectordb

import "time"

// Config controls the Pinecone client behavior.
type Config struct {
	// APIKey authenticates both control and data plane calls
	APIKey string `mapstructure:"api_key"`
	// ControlPlaneURL defaults to the public Pinecone API
	ControlPlaneURL string `mapstructure:"control_plane_url"`
	// IndexHost skips control-plane discovery when set (host:port or URL)
	IndexHost string `mapstructure:"index_host"`
	// IndexName of the serverless index; created on first use
	IndexName string `mapstructure:"index_name"`
	// Namespace partitions the index
	Namespace string `mapstructure:"namespace"`
	// Dimension of stored vectors
	Dimension int `mapstructure:"dimension"`
	// Metric for the index; cosine unless overridden
	Metric string `mapstructure:"metric"`
	// Cloud / Region for serverless index creation
	Cloud  string `mapstructure:"cloud"`
	Region string `mapstructure:"region"`
	// Timeout for outbound HTTP calls
	Timeout time.Duration `mapstructure:"timeout"`
	// ReadyAttempts x ReadyInterval bound the index-ready poll
	ReadyAttempts int           `mapstructure:"ready_attempts"`
	ReadyInterval time.Duration `mapstructure:"ready_interval"`
}

// Vector is one point in the index.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is one similarity query hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NamespaceStats reports the vector count of one namespace.
type NamespaceStats struct {
	VectorCount int `json:"vectorCount"`
}

// IndexStats is the describe_index_stats response.
type IndexStats struct {
	Dimension        int                       `json:"dimension"`
	TotalVectorCount int                       `json:"totalVectorCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

// Filter is a metadata filter in the store's native language
// ($in / $eq operators keyed by metadata field).
type Filter map[string]any

// In adds a membership predicate and returns the filter for chaining.
func (f Filter) In(field string, values ...string) Filter {
	f[field] = map[string]any{"$in": values}
	return f
}

// Eq adds an equality predicate and returns the filter for chaining.
func (f Filter) Eq(field string, value any) Filter {
	f[field] = map[string]any{"$eq": value}
	return f
}
