package toolsearch

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/metrics"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/persistence"
)

// ExecuteRequest invokes one registered action by id.
type ExecuteRequest struct {
	ActionID   string         `json:"actionId"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ExecuteResult is always returned, success or not. Failures carry a
// human-readable Error instead of propagating as a Go error so callers can
// relay them to an agent verbatim.
type ExecuteResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func failure(format string, args ...any) ExecuteResult {
	return ExecuteResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Execute validates parameters against the action's schema and invokes its
// handler. Handler panics are contained and reported as failures.
func (m *Manager) Execute(ctx context.Context, req ExecuteRequest) ExecuteResult {
	start := time.Now()
	if !m.isReady() {
		return failure("tool search manager not initialized")
	}

	action, ok := m.reg.Action(req.ActionID)
	if !ok {
		metrics.RecordExecution("unknown", false, time.Since(start).Seconds())
		return failure("action %q not found", req.ActionID)
	}

	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}
	validated, err := action.Schema.Validate(params)
	if err != nil {
		res := failure("invalid parameters for %s: %v", action.Name, err)
		m.finishExecution(ctx, action.ProviderName, action.ActionID, action.Name, paramsDigest(params), res, start)
		return res
	}

	res := m.invoke(ctx, action.Name, action.Invoke, validated)
	m.finishExecution(ctx, action.ProviderName, action.ActionID, action.Name, paramsDigest(validated), res, start)
	return res
}

// paramsDigest hashes the parameter map so the audit trail never stores raw
// values.
func paramsDigest(params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", md5.Sum(raw))
}

func (m *Manager) invoke(ctx context.Context, name string, fn func(context.Context, map[string]any) (string, error), params map[string]any) (res ExecuteResult) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Action handler panicked",
				zap.String("action", name),
				zap.Any("panic", r),
			)
			res = failure("action %s panicked: %v", name, r)
		}
	}()
	out, err := fn(ctx, params)
	if err != nil {
		return failure("action %s failed: %v", name, err)
	}
	return ExecuteResult{Success: true, Result: out}
}

func (m *Manager) finishExecution(ctx context.Context, provider, actionID, name, digest string, res ExecuteResult, start time.Time) {
	elapsed := time.Since(start)
	metrics.RecordExecution(provider, res.Success, elapsed.Seconds())
	if m.audit != nil {
		rec := persistence.ExecutionRecord{
			ActionID:     actionID,
			ActionName:   name,
			Provider:     provider,
			ParamsDigest: digest,
			Success:      res.Success,
			Error:        res.Error,
			DurationMs:   elapsed.Milliseconds(),
		}
		if err := m.audit.RecordExecution(ctx, rec); err != nil {
			m.log.Warn("Failed to record execution audit entry",
				zap.String("action", name),
				zap.Error(err),
			)
		}
	}
}
