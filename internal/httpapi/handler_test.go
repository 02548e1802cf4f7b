package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/registry"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/toolsearch"
)

type fakeService struct {
	searchErr  error
	searchHits []toolsearch.SearchResult
	execRes    toolsearch.ExecuteResult
	execReq    *toolsearch.ExecuteRequest
	providers  []*registry.ProviderMetadata
	actions    map[string]*registry.SearchableAction
	byProvider map[string][]*registry.SearchableAction
	stats      toolsearch.Stats
	statsErr   error
	reindexErr error
	reindexed  int
}

func (f *fakeService) Search(_ context.Context, req toolsearch.SearchRequest) ([]toolsearch.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchHits, nil
}

func (f *fakeService) Execute(_ context.Context, req toolsearch.ExecuteRequest) toolsearch.ExecuteResult {
	f.execReq = &req
	return f.execRes
}

func (f *fakeService) GetActionByID(id string) (*registry.SearchableAction, bool) {
	a, ok := f.actions[id]
	return a, ok
}

func (f *fakeService) GetProviders() []*registry.ProviderMetadata { return f.providers }

func (f *fakeService) GetActionsByProvider(id string) []*registry.SearchableAction {
	return f.byProvider[id]
}

func (f *fakeService) GetStats(context.Context) (toolsearch.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeService) Reindex(context.Context) error {
	f.reindexed++
	return f.reindexErr
}

func newTestServer(t *testing.T, svc *fakeService, secret string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	auth := NewBearerAuth(secret, zap.NewNop())
	NewHandler(svc, zap.NewNop()).RegisterRoutes(mux, auth.Middleware)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	svc := &fakeService{searchHits: []toolsearch.SearchResult{
		{ActionID: "a", Name: "jupiter_swap", ProviderName: "jupiter", Score: 0.9},
	}}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/search", `{"query":"swap","topK":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []toolsearch.SearchResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "jupiter_swap", body.Results[0].Name)
}

func TestSearchEndpointValidation(t *testing.T) {
	svc := &fakeService{searchErr: &toolsearch.Error{
		Kind:    toolsearch.KindValidation,
		Message: "query must not be empty",
	}}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/search", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestSearchEndpointUnavailableBeforeInit(t *testing.T) {
	svc := &fakeService{searchErr: &toolsearch.Error{
		Kind:    toolsearch.KindInitialization,
		Message: "tool search manager not initialized",
	}}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/search", `{"query":"swap"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearchEndpointMethod(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "")
	resp, err := http.Get(srv.URL + "/api/tools/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestExecuteEndpoint(t *testing.T) {
	svc := &fakeService{execRes: toolsearch.ExecuteResult{Success: true, Result: "done"}}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/execute", `{"actionId":"a","parameters":{"amount":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res toolsearch.ExecuteResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	require.NotNil(t, svc.execReq)
	assert.Equal(t, "a", svc.execReq.ActionID)
}

func TestExecuteEndpointFailureStillHTTP200(t *testing.T) {
	svc := &fakeService{execRes: toolsearch.ExecuteResult{Success: false, Error: "action \"x\" not found"}}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/execute", `{"actionId":"x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "execution failures ride in the payload")
}

func TestExecuteEndpointRequiresActionID(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "")
	resp := postJSON(t, srv.URL+"/api/tools/execute", `{"parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProvidersEndpoint(t *testing.T) {
	svc := &fakeService{providers: []*registry.ProviderMetadata{
		{ProviderID: "p1", Name: "jupiter", Description: "jupiter provider offering: swap"},
	}}
	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/api/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []registry.ProviderMetadata `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "jupiter", body.Providers[0].Name)
}

func TestProvidersEndpointWithActions(t *testing.T) {
	// Registry actions carry handler funcs; the endpoint must serve a wire
	// form that drops them instead of failing mid-encode.
	action := &registry.SearchableAction{
		ActionID:     "a1",
		ProviderID:   "p1",
		ProviderName: "jupiter",
		Name:         "jupiter_swap",
		Invoke: func(context.Context, map[string]any) (string, error) {
			return "", nil
		},
	}
	svc := &fakeService{providers: []*registry.ProviderMetadata{
		{ProviderID: "p1", Name: "jupiter", Actions: []*registry.SearchableAction{action}},
	}}
	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/api/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Providers []struct {
			Name    string `json:"name"`
			Actions []struct {
				ActionID string `json:"actionId"`
				Name     string `json:"name"`
			} `json:"actions"`
		} `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Providers, 1)
	require.Len(t, body.Providers[0].Actions, 1)
	assert.Equal(t, "jupiter_swap", body.Providers[0].Actions[0].Name)
}

func TestProviderActionsEndpoint(t *testing.T) {
	svc := &fakeService{byProvider: map[string][]*registry.SearchableAction{
		"p1": {{ActionID: "a1", ProviderID: "p1", Name: "jupiter_swap"}},
	}}
	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/api/providers/p1/actions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/providers/ghost/actions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActionEndpoint(t *testing.T) {
	svc := &fakeService{actions: map[string]*registry.SearchableAction{
		"a1": {ActionID: "a1", Name: "jupiter_swap", ProviderName: "jupiter"},
	}}
	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/api/actions/a1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body actionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "jupiter_swap", body.Name)

	resp, err = http.Get(srv.URL + "/api/actions/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	svc := &fakeService{stats: toolsearch.Stats{TotalActions: 12, TotalProviders: 3}}
	srv := newTestServer(t, svc, "")

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body toolsearch.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 12, body.TotalActions)
}

func TestReindexEndpoint(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "")

	resp := postJSON(t, srv.URL+"/api/tools/reindex", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, svc.reindexed)
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	srv := newTestServer(t, &fakeService{}, secret)

	// No token.
	resp, err := http.Get(srv.URL + "/api/providers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/providers", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong secret.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/providers", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret"))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/providers", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBearerAuthDisabledWhenNoSecret(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "")
	resp, err := http.Get(srv.URL + "/api/providers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
