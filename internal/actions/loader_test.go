package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/circuitbreaker"
)

const jupiterYAML = `
provider: jupiter
actions:
  - name: swap
    description: Swap tokens via Jupiter aggregator
    endpoint: %s/swap
    parameters:
      - name: inputMint
        type: string
        description: input token mint
      - name: outputMint
        type: string
      - name: amount
        type: number
      - name: slippageBps
        type: number
        default: 50
  - name: quote
    description: Fetch a swap quote
    endpoint: %s/quote
    parameters:
      - name: inputMint
        type: string
      - name: outputMint
        type: string
`

func formatYAML(tmpl, baseURL string) string {
	return fmt.Sprintf(tmpl, baseURL, baseURL)
}

func writeDefinitions(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jupiter.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"path":   r.URL.Path,
			"amount": body["amount"],
		})
	}))
	defer srv.Close()

	yaml := formatYAML(jupiterYAML, srv.URL)
	dir := writeDefinitions(t, yaml)

	loader := NewLoader(srv.Client(), zap.NewNop())
	list, err := loader.LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)

	swap := list[0]
	assert.Equal(t, "jupiter_swap", swap.Name)
	assert.Equal(t, "jupiter", swap.Provider())
	assert.Equal(t, "swap", swap.LocalName())

	params := Parameters(swap.Schema)
	require.Len(t, params, 4)
	assert.Equal(t, "inputMint", params[0].Name)
	assert.Equal(t, "input token mint", params[0].Description)
	assert.False(t, params[3].Required, "defaulted parameter is not required")

	// The generated handler relays params to the endpoint.
	out, err := swap.Handler(context.Background(), map[string]any{"amount": 1.5})
	require.NoError(t, err)
	assert.Contains(t, out, `"path":"/swap"`)
	assert.Contains(t, out, `"amount":1.5`)
}

func TestLoadDirectoryMissingIsEmpty(t *testing.T) {
	loader := NewLoader(nil, zap.NewNop())
	list, err := loader.LoadDirectory(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadDirectoryRejectsMissingProvider(t *testing.T) {
	dir := writeDefinitions(t, "actions:\n  - name: x\n    endpoint: http://localhost\n")
	loader := NewLoader(nil, zap.NewNop())
	_, err := loader.LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing provider name")
}

func TestLoadDirectoryRejectsMissingEndpoint(t *testing.T) {
	dir := writeDefinitions(t, "provider: p\nactions:\n  - name: x\n")
	loader := NewLoader(nil, zap.NewNop())
	_, err := loader.LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing endpoint")
}

func TestHandlerCallsThroughBreakerWrapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	dir := writeDefinitions(t, formatYAML(jupiterYAML, srv.URL))
	wrapper := circuitbreaker.NewHTTPWrapper(srv.Client(), "provider_endpoints", zap.NewNop())
	loader := NewLoader(wrapper, zap.NewNop())
	list, err := loader.LoadDirectory(dir)
	require.NoError(t, err)

	out, err := list[0].Handler(context.Background(), map[string]any{"amount": 1.0})
	require.NoError(t, err)
	assert.Contains(t, out, `"ok":true`)
}

func TestHandlerSurfacesEndpointErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := writeDefinitions(t, formatYAML(jupiterYAML, srv.URL))
	loader := NewLoader(srv.Client(), zap.NewNop())
	list, err := loader.LoadDirectory(dir)
	require.NoError(t, err)

	_, err = list[0].Handler(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
