package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/registry"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/toolsearch"
)

// ToolService is the slice of the search manager the API depends on.
type ToolService interface {
	Search(ctx context.Context, req toolsearch.SearchRequest) ([]toolsearch.SearchResult, error)
	Execute(ctx context.Context, req toolsearch.ExecuteRequest) toolsearch.ExecuteResult
	GetActionByID(id string) (*registry.SearchableAction, bool)
	GetProviders() []*registry.ProviderMetadata
	GetActionsByProvider(providerID string) []*registry.SearchableAction
	GetStats(ctx context.Context) (toolsearch.Stats, error)
	Reindex(ctx context.Context) error
}

// Handler provides the tool search HTTP API.
// Endpoints:
//
//	POST /api/tools/search
//	POST /api/tools/execute
//	POST /api/tools/reindex
//	GET  /api/providers
//	GET  /api/providers/{id}/actions
//	GET  /api/actions/{id}
//	GET  /api/stats
type Handler struct {
	svc    ToolService
	logger *zap.Logger
}

// NewHandler constructs a new handler.
func NewHandler(svc ToolService, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes registers API endpoints on the given mux. The middleware,
// when non-nil, wraps every route.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	wrap := func(fn http.HandlerFunc) http.Handler {
		if mw == nil {
			return fn
		}
		return mw(fn)
	}
	mux.Handle("/api/tools/search", wrap(h.handleSearch))
	mux.Handle("/api/tools/execute", wrap(h.handleExecute))
	mux.Handle("/api/tools/reindex", wrap(h.handleReindex))
	mux.Handle("/api/providers", wrap(h.handleProviders))
	mux.Handle("/api/providers/", wrap(h.handleProviderActions))
	mux.Handle("/api/actions/", wrap(h.handleAction))
	mux.Handle("/api/stats", wrap(h.handleStats))
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req toolsearch.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	results, err := h.svc.Search(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Search failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req toolsearch.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.ActionID == "" {
		http.Error(w, `{"error":"actionId is required"}`, http.StatusBadRequest)
		return
	}

	// Execution failures are part of the result payload, not HTTP errors.
	res := h.svc.Execute(r.Context(), req)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleReindex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if err := h.svc.Reindex(r.Context()); err != nil {
		h.writeServiceError(w, "Reindex failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"providers": toProviderSummaries(h.svc.GetProviders())})
}

func (h *Handler) handleProviderActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	// Path shape: /api/providers/{id}/actions
	rest := strings.TrimPrefix(r.URL.Path, "/api/providers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "actions" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	actions := h.svc.GetActionsByProvider(parts[0])
	if actions == nil {
		http.Error(w, `{"error":"provider not found"}`, http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"actions": toSummaries(actions)})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/actions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	action, ok := h.svc.GetActionByID(id)
	if !ok {
		http.Error(w, `{"error":"action not found"}`, http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toSummary(action))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		h.writeServiceError(w, "Stats lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// providerSummary is the wire form of a provider group. Registry types carry
// action handlers, which cannot be JSON-encoded; the wire form strips them.
type providerSummary struct {
	ProviderID  string          `json:"providerId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Network     string          `json:"network"`
	Actions     []actionSummary `json:"actions"`
}

func toProviderSummaries(list []*registry.ProviderMetadata) []providerSummary {
	out := make([]providerSummary, len(list))
	for i, p := range list {
		out[i] = providerSummary{
			ProviderID:  p.ProviderID,
			Name:        p.Name,
			Description: p.Description,
			Network:     p.Network,
			Actions:     toSummaries(p.Actions),
		}
	}
	return out
}

// actionSummary is the wire form of a registered action without its handler.
type actionSummary struct {
	ActionID       string `json:"actionId"`
	ProviderID     string `json:"providerId"`
	ProviderName   string `json:"providerName"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	RequiresWallet bool   `json:"requiresWallet"`
	Parameters     any    `json:"parameters"`
}

func toSummary(a *registry.SearchableAction) actionSummary {
	return actionSummary{
		ActionID:       a.ActionID,
		ProviderID:     a.ProviderID,
		ProviderName:   a.ProviderName,
		Name:           a.Name,
		Description:    a.Description,
		RequiresWallet: a.RequiresWallet,
		Parameters:     a.Parameters,
	}
}

func toSummaries(list []*registry.SearchableAction) []actionSummary {
	out := make([]actionSummary, len(list))
	for i, a := range list {
		out[i] = toSummary(a)
	}
	return out
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	h.logger.Warn(msg, zap.Error(err))

	status := http.StatusInternalServerError
	switch toolsearch.KindOf(err) {
	case toolsearch.KindValidation:
		status = http.StatusBadRequest
	case toolsearch.KindActionNotFound:
		status = http.StatusNotFound
	case toolsearch.KindInitialization:
		status = http.StatusServiceUnavailable
	}

	var te *toolsearch.Error
	body := map[string]any{"error": sanitizeErr(err.Error())}
	if errors.As(err, &te) {
		body["code"] = string(te.Kind)
	}
	h.writeJSON(w, status, body)
}

// writeJSON writes a JSON response with status and content-type. Encode
// failures after WriteHeader cannot reach the client, so they are logged.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// sanitizeErr trims error messages for safe client output (UTF-8 safe).
func sanitizeErr(s string) string {
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return s
}
