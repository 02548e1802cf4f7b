package toolsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/embeddings"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/registry"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

// canonicalText builds the passage embedded for an action:
//
//	"{provider} {name} | {description} | params: {p1, p2}"
//
// with "none" when the action takes no parameters.
func canonicalText(a *registry.SearchableAction) string {
	params := "none"
	if len(a.Parameters) > 0 {
		names := make([]string, len(a.Parameters))
		for i, p := range a.Parameters {
			names[i] = p.Name
		}
		params = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s %s | %s | params: %s", a.ProviderName, a.Name, a.Description, params)
}

// buildMetadata flattens an action into vector metadata. Parameters are
// JSON-serialized since the store only accepts scalar and string-list values.
func buildMetadata(a *registry.SearchableAction) map[string]any {
	paramsJSON := "[]"
	if len(a.Parameters) > 0 {
		if b, err := json.Marshal(a.Parameters); err == nil {
			paramsJSON = string(b)
		}
	}
	return map[string]any{
		"actionId":       a.ActionID,
		"providerId":     a.ProviderID,
		"providerName":   a.ProviderName,
		"actionName":     a.Name,
		"description":    a.Description,
		"network":        registry.NetworkUnknown,
		"requiresWallet": a.RequiresWallet,
		"parameters":     paramsJSON,
	}
}

// parseParameters decodes the serialized parameter list out of stored
// metadata. A corrupt record degrades to an empty list rather than failing
// the whole response.
func (m *Manager) parseParameters(id string, raw any) []actions.ParameterDescriptor {
	s, ok := raw.(string)
	if !ok || s == "" {
		return nil
	}
	var out []actions.ParameterDescriptor
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		m.log.Warn("Corrupt parameter metadata in index; returning empty list",
			zap.String("action_id", id),
			zap.Error(err),
		)
		return nil
	}
	return out
}

// upsertActions embeds and upserts the given actions in sequential batches.
func (m *Manager) upsertActions(ctx context.Context, list []*registry.SearchableAction) error {
	for start := 0; start < len(list); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(list) {
			end = len(list)
		}
		batch := list[start:end]

		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = canonicalText(a)
		}
		embs, err := m.emb.EmbedBatch(ctx, texts, embeddings.InputPassage)
		if err != nil {
			return wrapError(KindEmbedding, err, "embed batch starting at %d", start)
		}

		vectors := make([]vectordb.Vector, len(batch))
		for i, a := range batch {
			vectors[i] = vectordb.Vector{
				ID:       a.ActionID,
				Values:   embs[i],
				Metadata: buildMetadata(a),
			}
		}
		if err := m.store.Upsert(ctx, vectors); err != nil {
			return wrapError(KindUpsert, err, "upsert batch starting at %d", start)
		}
		m.log.Debug("Indexed action batch",
			zap.Int("offset", start),
			zap.Int("size", len(batch)),
		)
	}
	return nil
}
