package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/metrics"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/ratecontrol"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/tracing"
)

// Service generates embeddings over HTTP with a two-tier cache (in-process
// LRU, optional Redis) and per-model rate limiting.
type Service struct {
	cfg    Config
	http   *http.Client
	cache  Cache
	lru    *LocalLRU
	limits *ratecontrol.Limits
	log    *zap.Logger
}

// NewService builds an embedding service. cache may be nil; limits may be
// nil for unlimited.
func NewService(cfg Config, cache Cache, limits *ratecontrol.Limits, logger *zap.Logger) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MaxLRU == 0 {
		cfg.MaxLRU = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		lru:    NewLocalLRU(cfg.MaxLRU),
		limits: limits,
		log:    logger,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
	ModelUsed  string      `json:"model_used"`
}

// Embed returns the vector for a single text.
func (s *Service) Embed(ctx context.Context, text string, inputType string) ([]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	vecs, err := s.EmbedBatch(ctx, []string{text}, inputType)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request,
// serving cached entries first. The result preserves input order, and the
// backend must return exactly one vector per uncached text.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model := s.cfg.Model
	results := make([][]float32, len(texts))
	var uncachedTexts []string
	var uncachedIndices []int

	for i, text := range texts {
		key := MakeKey(model, inputType, text)

		if v, ok := s.lru.Get(ctx, key); ok {
			results[i] = v
			metrics.RecordEmbedding(model, "lru_hit", 0)
			continue
		}
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, key); ok {
				results[i] = v
				s.lru.Set(ctx, key, v, 30*time.Minute)
				metrics.RecordEmbedding(model, "cache_hit", 0)
				continue
			}
		}
		uncachedTexts = append(uncachedTexts, text)
		uncachedIndices = append(uncachedIndices, i)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	if err := s.limits.Wait(ctx, model); err != nil {
		return nil, err
	}

	start := time.Now()
	url := fmt.Sprintf("%s/embeddings", s.cfg.BaseURL)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	payload := embedRequest{Texts: uncachedTexts, Model: model, InputType: inputType}
	buf, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := s.http.Do(req)
	if err != nil {
		metrics.RecordEmbedding(model, "error", time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordEmbedding(model, "error", time.Since(start).Seconds())
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(body))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		metrics.RecordEmbedding(model, "error", time.Since(start).Seconds())
		return nil, err
	}

	if len(er.Embeddings) != len(uncachedTexts) {
		metrics.RecordEmbedding(model, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("embedding service returned %d embeddings for %d texts", len(er.Embeddings), len(uncachedTexts))
	}

	for i, embedding := range er.Embeddings {
		out := make([]float32, len(embedding))
		for j, f := range embedding {
			out[j] = float32(f)
		}
		results[uncachedIndices[i]] = out

		key := MakeKey(model, inputType, uncachedTexts[i])
		s.lru.Set(ctx, key, out, 30*time.Minute)
		if s.cache != nil {
			s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
		}
	}

	metrics.RecordEmbedding(model, "ok", time.Since(start).Seconds())
	return results, nil
}
