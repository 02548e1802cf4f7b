package toolsearch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/metrics"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/persistence"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/registry"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultBatchSize = 100
)

// Embedder generates embeddings for queries and indexed passages.
type Embedder interface {
	Embed(ctx context.Context, text string, inputType string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error)
}

// VectorStore is the slice of the vector database the manager depends on.
type VectorStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, vectors []vectordb.Vector) error
	Query(ctx context.Context, vector []float32, topK int, filter vectordb.Filter) ([]vectordb.Match, error)
	Fetch(ctx context.Context, ids []string) (map[string]vectordb.Vector, error)
	Delete(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
	Stats(ctx context.Context) (*vectordb.IndexStats, error)
}

// AuditLog records execution outcomes; nil disables auditing.
type AuditLog interface {
	RecordExecution(ctx context.Context, rec persistence.ExecutionRecord) error
}

// Config tunes manager behavior.
type Config struct {
	// BatchSize caps actions per embedding/upsert batch
	BatchSize int `mapstructure:"batch_size"`
}

// Manager indexes agent actions into a vector store and serves semantic
// search plus validated execution against the populated registry.
type Manager struct {
	cfg   Config
	reg   *registry.Registry
	emb   Embedder
	store VectorStore
	audit AuditLog
	log   *zap.Logger

	mu     sync.RWMutex
	ready  bool
	source []actions.Action
}

// NewManager wires a manager from its collaborators. audit may be nil.
func NewManager(cfg Config, emb Embedder, store VectorStore, audit AuditLog, logger *zap.Logger) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:   cfg,
		reg:   registry.New(logger),
		emb:   emb,
		store: store,
		audit: audit,
		log:   logger,
	}
}

// Initialize extracts the action list into the registry, ensures the index
// exists, and upserts every action. It is idempotent: a second call on a
// ready manager logs a warning and returns nil without re-running anything.
func (m *Manager) Initialize(ctx context.Context, list []actions.Action) error {
	m.mu.Lock()
	if m.ready {
		m.mu.Unlock()
		m.log.Warn("Tool search manager already initialized; skipping")
		return nil
	}
	m.mu.Unlock()

	if err := m.store.EnsureIndex(ctx); err != nil {
		return wrapError(KindInitialization, err, "ensure vector index")
	}
	if err := m.reg.Extract(list); err != nil {
		return wrapError(KindInitialization, err, "extract action registry")
	}
	if err := m.upsertActions(ctx, m.reg.All()); err != nil {
		return wrapError(KindInitialization, err, "index actions")
	}

	m.mu.Lock()
	m.ready = true
	m.source = list
	m.mu.Unlock()

	metrics.SetRegistrySize(m.reg.Count(), m.reg.ProviderCount())
	m.log.Info("Tool search manager initialized",
		zap.Int("actions", m.reg.Count()),
		zap.Int("providers", m.reg.ProviderCount()),
	)
	return nil
}

// Reindex rebuilds everything from the retained action source: the previous
// generation is deleted from the vector namespace first so regenerated ids
// leave no stale records behind, then extraction and indexing re-run.
func (m *Manager) Reindex(ctx context.Context) error {
	m.mu.RLock()
	ready := m.ready
	source := m.source
	m.mu.RUnlock()
	if !ready {
		return newError(KindInitialization, "tool search manager not initialized")
	}

	if err := m.store.DeleteAll(ctx); err != nil {
		return wrapError(KindDelete, err, "clear previous index generation")
	}
	if err := m.reg.Extract(source); err != nil {
		return wrapError(KindInitialization, err, "re-extract action registry")
	}
	if err := m.upsertActions(ctx, m.reg.All()); err != nil {
		return err
	}

	metrics.SetRegistrySize(m.reg.Count(), m.reg.ProviderCount())
	m.log.Info("Tool search reindex complete", zap.Int("actions", m.reg.Count()))
	return nil
}

// SetSource replaces the retained action source used by the next Reindex.
func (m *Manager) SetSource(list []actions.Action) {
	m.mu.Lock()
	m.source = list
	m.mu.Unlock()
}

func (m *Manager) isReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// GetActionByID is a synchronous registry read.
func (m *Manager) GetActionByID(id string) (*registry.SearchableAction, bool) {
	return m.reg.Action(id)
}

// GetProviders lists provider metadata in encounter order.
func (m *Manager) GetProviders() []*registry.ProviderMetadata {
	return m.reg.Providers()
}

// GetActionsByProvider lists a provider's actions.
func (m *Manager) GetActionsByProvider(providerID string) []*registry.SearchableAction {
	return m.reg.ActionsByProvider(providerID)
}

// DeleteActions removes indexed actions by id from the vector store.
func (m *Manager) DeleteActions(ctx context.Context, ids []string) error {
	if !m.isReady() {
		return newError(KindInitialization, "tool search manager not initialized")
	}
	if err := m.store.Delete(ctx, ids); err != nil {
		return wrapError(KindDelete, err, "delete %d vector(s)", len(ids))
	}
	return nil
}

// GetIndexedAction fetches one action's indexed form back from the vector
// store, reconstructing its summary from stored metadata.
func (m *Manager) GetIndexedAction(ctx context.Context, id string) (*SearchResult, error) {
	if !m.isReady() {
		return nil, newError(KindInitialization, "tool search manager not initialized")
	}
	vecs, err := m.store.Fetch(ctx, []string{id})
	if err != nil {
		return nil, wrapError(KindFetch, err, "fetch vector %s", id)
	}
	vec, ok := vecs[id]
	if !ok {
		return nil, newError(KindActionNotFound, "action %q not found in index", id)
	}
	res := m.matchToResult(vectordb.Match{ID: vec.ID, Metadata: vec.Metadata})
	// Fetch has no similarity context; a direct lookup is an exact hit.
	res.Score = 1.0
	return &res, nil
}

// Stats is the operational snapshot returned by GetStats.
type Stats struct {
	TotalActions   int                 `json:"totalActions"`
	TotalProviders int                 `json:"totalProviders"`
	VectorStore    *vectordb.IndexStats `json:"vectorStoreStats,omitempty"`
}

// GetStats reports registry sizes and index statistics.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	if !m.isReady() {
		return Stats{}, newError(KindInitialization, "tool search manager not initialized")
	}
	st := Stats{
		TotalActions:   m.reg.Count(),
		TotalProviders: m.reg.ProviderCount(),
	}
	vs, err := m.store.Stats(ctx)
	if err != nil {
		return st, wrapError(KindFetch, err, "vector store stats")
	}
	st.VectorStore = vs
	return st, nil
}

// Health is the HealthCheck response.
type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthCheck reports unhealthy when the manager is uninitialized or the
// vector store does not answer.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	if !m.isReady() {
		return Health{Status: "unhealthy", Details: map[string]any{
			"reason": "not initialized",
		}}
	}
	start := time.Now()
	vs, err := m.store.Stats(ctx)
	if err != nil {
		return Health{Status: "unhealthy", Details: map[string]any{
			"reason": err.Error(),
		}}
	}
	return Health{Status: "healthy", Details: map[string]any{
		"totalActions":   m.reg.Count(),
		"totalProviders": m.reg.ProviderCount(),
		"indexVectors":   vs.TotalVectorCount,
		"latencyMs":      time.Since(start).Milliseconds(),
	}}
}
