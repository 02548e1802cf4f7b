package health

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPHandler serves probe endpoints backed by the manager.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHTTPHandler creates the probe handler.
func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{manager: manager, logger: logger}
}

// RegisterRoutes registers probe endpoints on a mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/live", h.handleLiveness)
	mux.HandleFunc("/health/detailed", h.handleDetailedHealth)
}

func statusCodeFor(s CheckStatus) int {
	switch s {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	overall := h.manager.GetOverallHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(overall.Status))

	response := map[string]any{
		"status":    overall.Status.String(),
		"message":   overall.Message,
		"timestamp": overall.Timestamp.Unix(),
		"degraded":  overall.Degraded,
		"ready":     overall.Ready,
		"live":      overall.Live,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ready := h.manager.IsReady(r.Context())
	code := http.StatusOK
	status := "ready"
	if !ready {
		code = http.StatusServiceUnavailable
		status = "not ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"ready":     ready,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}

func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	alive := h.manager.IsLive(r.Context())
	code := http.StatusOK
	status := "alive"
	if !alive {
		code = http.StatusServiceUnavailable
		status = "not alive"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"live":      alive,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		h.logger.Error("Failed to encode liveness response", zap.Error(err))
	}
}

func (h *HTTPHandler) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	detailed := h.manager.GetDetailedHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(detailed.Overall.Status))
	if err := json.NewEncoder(w).Encode(detailed); err != nil {
		h.logger.Error("Failed to encode detailed health response", zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"error":     message,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
