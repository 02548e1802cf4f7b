package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/circuitbreaker"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/metrics"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/tracing"
)

// Client is a minimal Pinecone HTTP client covering the index lifecycle and
// the data-plane calls tool search needs.
type Client struct {
	cfg   Config
	http  *http.Client
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger

	mu   sync.Mutex
	host string // cached data-plane host
}

// New validates the config and builds a client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.IndexHost == "" {
		return nil, fmt.Errorf("vectordb: api key is required")
	}
	if cfg.ControlPlaneURL == "" {
		cfg.ControlPlaneURL = "https://api.pinecone.io"
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "tools-search-v1"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "test"
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReadyAttempts == 0 {
		cfg.ReadyAttempts = 30
	}
	if cfg.ReadyInterval == 0 {
		cfg.ReadyInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		httpw: circuitbreaker.NewHTTPWrapper(httpClient, "pinecone", logger),
		log:   logger,
		host:  normalizeHost(cfg.IndexHost),
	}, nil
}

// Namespace returns the configured namespace.
func (c *Client) Namespace() string { return c.cfg.Namespace }

// IndexName returns the configured index name.
func (c *Client) IndexName() string { return c.cfg.IndexName }

func normalizeHost(h string) string {
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://") {
		return h
	}
	return "https://" + h
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	ctx, span := tracing.StartHTTPSpan(ctx, method, rawURL)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.cfg.APIKey)
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", rawURL, err)
		}
	}
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinecone status %d from %s", e.Code, e.URL)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

type describeIndexResponse struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

func (c *Client) describeIndex(ctx context.Context) (*describeIndexResponse, error) {
	var out describeIndexResponse
	u := fmt.Sprintf("%s/indexes/%s", c.cfg.ControlPlaneURL, url.PathEscape(c.cfg.IndexName))
	if err := c.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) createIndex(ctx context.Context) error {
	body := map[string]any{
		"name":      c.cfg.IndexName,
		"dimension": c.cfg.Dimension,
		"metric":    c.cfg.Metric,
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  c.cfg.Cloud,
				"region": c.cfg.Region,
			},
		},
	}
	u := fmt.Sprintf("%s/indexes", c.cfg.ControlPlaneURL)
	return c.do(ctx, http.MethodPost, u, body, nil)
}

// EnsureIndex creates the index when it does not exist and waits for it to
// become ready, caching the data-plane host. The readiness poll is bounded;
// on exhaustion the index is considered unusable.
func (c *Client) EnsureIndex(ctx context.Context) error {
	c.mu.Lock()
	cached := c.host
	c.mu.Unlock()
	if cached != "" {
		return nil
	}

	desc, err := c.describeIndex(ctx)
	if err != nil {
		if !IsNotFound(err) {
			return fmt.Errorf("describe index %q: %w", c.cfg.IndexName, err)
		}
		c.log.Info("Creating vector index",
			zap.String("index", c.cfg.IndexName),
			zap.Int("dimension", c.cfg.Dimension),
			zap.String("metric", c.cfg.Metric),
		)
		if err := c.createIndex(ctx); err != nil {
			return fmt.Errorf("create index %q: %w", c.cfg.IndexName, err)
		}
		desc = nil
	}

	for attempt := 0; attempt < c.cfg.ReadyAttempts; attempt++ {
		if desc != nil && desc.Status.Ready && desc.Host != "" {
			c.mu.Lock()
			c.host = normalizeHost(desc.Host)
			c.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReadyInterval):
		}
		desc, err = c.describeIndex(ctx)
		if err != nil {
			return fmt.Errorf("describe index %q: %w", c.cfg.IndexName, err)
		}
	}
	return fmt.Errorf("index %q not ready after %d attempts", c.cfg.IndexName, c.cfg.ReadyAttempts)
}

func (c *Client) hostURL(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.host
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if err := c.EnsureIndex(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host, nil
}

// Upsert inserts or replaces vectors by id in the configured namespace.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	host, err := c.hostURL(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	body := map[string]any{"vectors": vectors, "namespace": c.cfg.Namespace}
	err = c.do(ctx, http.MethodPost, host+"/vectors/upsert", body, nil)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVectorOp("upsert", status, time.Since(start).Seconds())
	return err
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

// Query runs a top-K similarity search with metadata included. A nil filter
// means no metadata predicate.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	host, err := c.hostURL(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       c.cfg.Namespace,
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}
	var out queryResponse
	err = c.do(ctx, http.MethodPost, host+"/query", body, &out)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVectorOp("query", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return out.Matches, nil
}

type fetchResponse struct {
	Vectors map[string]Vector `json:"vectors"`
}

// Fetch retrieves vectors by id from the configured namespace.
func (c *Client) Fetch(ctx context.Context, ids []string) (map[string]Vector, error) {
	if len(ids) == 0 {
		return map[string]Vector{}, nil
	}
	host, err := c.hostURL(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	q.Set("namespace", c.cfg.Namespace)

	start := time.Now()
	var out fetchResponse
	err = c.do(ctx, http.MethodGet, host+"/vectors/fetch?"+q.Encode(), nil, &out)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVectorOp("fetch", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return out.Vectors, nil
}

// Delete removes vectors by id from the configured namespace.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.delete(ctx, map[string]any{"ids": ids, "namespace": c.cfg.Namespace})
}

// DeleteAll clears the configured namespace.
func (c *Client) DeleteAll(ctx context.Context) error {
	return c.delete(ctx, map[string]any{"deleteAll": true, "namespace": c.cfg.Namespace})
}

func (c *Client) delete(ctx context.Context, body map[string]any) error {
	host, err := c.hostURL(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.do(ctx, http.MethodPost, host+"/vectors/delete", body, nil)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVectorOp("delete", status, time.Since(start).Seconds())
	return err
}

// Stats returns the index statistics.
func (c *Client) Stats(ctx context.Context) (*IndexStats, error) {
	host, err := c.hostURL(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var out IndexStats
	err = c.do(ctx, http.MethodPost, host+"/describe_index_stats", map[string]any{}, &out)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVectorOp("stats", status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return &out, nil
}
