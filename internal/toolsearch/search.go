package toolsearch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/embeddings"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/metrics"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

// SearchFilters narrows a semantic query. Provider, network, and wallet
// filters are pushed down to the vector store; required-parameter matching
// happens after retrieval since parameter lists are serialized in metadata.
type SearchFilters struct {
	ProviderNames      []string `json:"providerNames,omitempty"`
	Networks           []string `json:"networks,omitempty"`
	RequiresWallet     *bool    `json:"requiresWallet,omitempty"`
	RequiredParameters []string `json:"requiredParameters,omitempty"`
}

// SearchRequest is a semantic tool lookup.
type SearchRequest struct {
	Query   string         `json:"query"`
	TopK    int            `json:"topK,omitempty"`
	Filters *SearchFilters `json:"filters,omitempty"`
}

// SearchResult is one scored match with its indexed summary.
type SearchResult struct {
	ActionID       string                        `json:"actionId"`
	ProviderID     string                        `json:"providerId"`
	ProviderName   string                        `json:"providerName"`
	Name           string                        `json:"name"`
	Description    string                        `json:"description"`
	Network        string                        `json:"network"`
	RequiresWallet bool                          `json:"requiresWallet"`
	Parameters     []actions.ParameterDescriptor `json:"parameters"`
	Score          float64                       `json:"score"`
}

// normalizeScore maps cosine similarity [-1, 1] onto [0, 1], clamping
// anything the store reports outside the nominal range.
func normalizeScore(s float64) float64 {
	n := (s + 1) / 2
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func buildFilter(f *SearchFilters) vectordb.Filter {
	if f == nil {
		return nil
	}
	out := vectordb.Filter{}
	if len(f.ProviderNames) > 0 {
		out.In("providerName", f.ProviderNames...)
	}
	if len(f.Networks) > 0 {
		out.In("network", f.Networks...)
	}
	if f.RequiresWallet != nil {
		out.Eq("requiresWallet", *f.RequiresWallet)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// hasRequiredParameters checks that every requested name appears in the
// result's parameter list, case-insensitively.
func hasRequiredParameters(res *SearchResult, required []string) bool {
	for _, want := range required {
		found := false
		for _, p := range res.Parameters {
			if strings.EqualFold(p.Name, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func (m *Manager) matchToResult(match vectordb.Match) SearchResult {
	requiresWallet, _ := match.Metadata["requiresWallet"].(bool)
	return SearchResult{
		ActionID:       match.ID,
		ProviderID:     metaString(match.Metadata, "providerId"),
		ProviderName:   metaString(match.Metadata, "providerName"),
		Name:           metaString(match.Metadata, "actionName"),
		Description:    metaString(match.Metadata, "description"),
		Network:        metaString(match.Metadata, "network"),
		RequiresWallet: requiresWallet,
		Parameters:     m.parseParameters(match.ID, match.Metadata["parameters"]),
		Score:          normalizeScore(match.Score),
	}
}

// Search embeds the query and retrieves the best-matching actions, honoring
// filters and the top-K bounds.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if !m.isReady() {
		return nil, newError(KindInitialization, "tool search manager not initialized")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, newError(KindValidation, "query must not be empty")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vec, err := m.emb.Embed(ctx, query, embeddings.InputQuery)
	if err != nil {
		metrics.RecordSearch("error", 0)
		return nil, wrapError(KindEmbedding, err, "embed query")
	}

	// Over-fetch when a post-retrieval parameter filter will prune results.
	fetchK := topK
	if req.Filters != nil && len(req.Filters.RequiredParameters) > 0 {
		fetchK = topK * 2
		if fetchK > MaxTopK {
			fetchK = MaxTopK
		}
	}

	matches, err := m.store.Query(ctx, vec, fetchK, buildFilter(req.Filters))
	if err != nil {
		metrics.RecordSearch("error", 0)
		return nil, wrapError(KindQuery, err, "query vector store")
	}

	results := make([]SearchResult, 0, len(matches))
	for _, match := range matches {
		res := m.matchToResult(match)
		if req.Filters != nil && len(req.Filters.RequiredParameters) > 0 &&
			!hasRequiredParameters(&res, req.Filters.RequiredParameters) {
			continue
		}
		results = append(results, res)
		if len(results) == topK {
			break
		}
	}

	metrics.RecordSearch("ok", len(results))
	m.log.Debug("Tool search complete",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
	)
	return results, nil
}
