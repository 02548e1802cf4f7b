package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/circuitbreaker"
)

// VectorStoreChecker verifies the vector index answers stats queries.
type VectorStoreChecker struct {
	stats   func(ctx context.Context) (int, error)
	logger  *zap.Logger
	timeout time.Duration
}

// NewVectorStoreChecker wraps a stats probe returning the index vector count.
func NewVectorStoreChecker(stats func(ctx context.Context) (int, error), logger *zap.Logger) *VectorStoreChecker {
	return &VectorStoreChecker{stats: stats, logger: logger, timeout: 5 * time.Second}
}

func (v *VectorStoreChecker) Name() string           { return "vector_store" }
func (v *VectorStoreChecker) IsCritical() bool       { return true }
func (v *VectorStoreChecker) Timeout() time.Duration { return v.timeout }

func (v *VectorStoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "vector_store", Critical: true, Timestamp: start}

	count, err := v.stats(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Vector store stats query failed"
		return result
	}

	if result.Duration > 500*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Vector store responding with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Vector store healthy"
	}
	result.Details = map[string]any{
		"vector_count": count,
		"latency_ms":   result.Duration.Milliseconds(),
	}
	return result
}

// EmbeddingServiceChecker probes the embedding endpoint's health route.
type EmbeddingServiceChecker struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewEmbeddingServiceChecker creates an embedding endpoint checker. The
// service is non-critical since cached embeddings keep search usable.
func NewEmbeddingServiceChecker(baseURL string, logger *zap.Logger) *EmbeddingServiceChecker {
	return &EmbeddingServiceChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (e *EmbeddingServiceChecker) Name() string           { return "embedding_service" }
func (e *EmbeddingServiceChecker) IsCritical() bool       { return false }
func (e *EmbeddingServiceChecker) Timeout() time.Duration { return e.timeout }

func (e *EmbeddingServiceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "embedding_service", Critical: false, Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}
	resp, err := e.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Embedding service unreachable"
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Embedding service returned %d", resp.StatusCode)
	} else if result.Duration > 500*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Embedding service responding with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Embedding service healthy"
	}
	result.Details = map[string]any{
		"base_url":    e.baseURL,
		"status_code": resp.StatusCode,
		"latency_ms":  result.Duration.Milliseconds(),
	}
	return result
}

// RedisChecker checks the embedding cache's Redis backend.
type RedisChecker struct {
	wrapper *circuitbreaker.RedisWrapper
	logger  *zap.Logger
	timeout time.Duration
}

// NewRedisChecker creates a Redis cache checker. Cache loss degrades
// latency only, so the check is non-critical.
func NewRedisChecker(wrapper *circuitbreaker.RedisWrapper, logger *zap.Logger) *RedisChecker {
	return &RedisChecker{wrapper: wrapper, logger: logger, timeout: 5 * time.Second}
}

func (r *RedisChecker) Name() string           { return "redis" }
func (r *RedisChecker) IsCritical() bool       { return false }
func (r *RedisChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis", Critical: false, Timestamp: start}

	if r.wrapper.IsOpen() {
		result.Status = StatusUnhealthy
		result.Error = "circuit breaker open"
		result.Message = "Redis circuit breaker is open"
		result.Duration = time.Since(start)
		return result
	}

	err := r.wrapper.Ping(ctx).Err()
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		return result
	}

	if result.Duration > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Redis healthy"
	}
	result.Details = map[string]any{
		"latency_ms": result.Duration.Milliseconds(),
	}
	return result
}

// ReadinessChecker reports whether the tool index has been initialized.
type ReadinessChecker struct {
	ready func() bool
}

// NewReadinessChecker wraps a readiness probe over the search manager.
func NewReadinessChecker(ready func() bool) *ReadinessChecker {
	return &ReadinessChecker{ready: ready}
}

func (c *ReadinessChecker) Name() string           { return "tool_index" }
func (c *ReadinessChecker) IsCritical() bool       { return true }
func (c *ReadinessChecker) Timeout() time.Duration { return time.Second }

func (c *ReadinessChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: "tool_index", Critical: true, Timestamp: time.Now()}
	if c.ready() {
		result.Status = StatusHealthy
		result.Message = "Tool index initialized"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "Tool index not initialized"
	}
	return result
}
