package toolsearch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/embeddings"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

func TestNormalizeScore(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1, 1},
		{0, 0.5},
		{-1, 0},
		{0.5, 0.75},
		{1.2, 1},  // clamp above
		{-1.3, 0}, // clamp below
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, normalizeScore(tc.in), 1e-9)
	}
}

func TestSearchReturnsNormalizedResults(t *testing.T) {
	m, emb, store := newTestManager(t)
	store.serveStored(0.5)

	results, err := m.Search(context.Background(), SearchRequest{Query: "swap solana tokens"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.InDelta(t, 0.75, r.Score, 1e-9)
		assert.NotEmpty(t, r.ActionID)
		assert.NotEmpty(t, r.ProviderName)
	}

	// The free-text query is embedded asymmetrically from indexed passages.
	require.NotEmpty(t, emb.queryTexts)
	assert.Equal(t, "swap solana tokens", emb.queryTexts[0])
	assert.Equal(t, embeddings.InputQuery, emb.inputTypes[len(emb.inputTypes)-1])
}

func TestSearchEmptyQuery(t *testing.T) {
	m, _, _ := newTestManager(t)
	for _, q := range []string{"", "   "} {
		_, err := m.Search(context.Background(), SearchRequest{Query: q})
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	}
}

func TestSearchTopKBounds(t *testing.T) {
	m, _, store := newTestManager(t)
	store.serveStored(0.9)

	_, err := m.Search(context.Background(), SearchRequest{Query: "price"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.queryTopKs[0], "zero topK uses the default")

	_, err = m.Search(context.Background(), SearchRequest{Query: "price", TopK: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxTopK, store.queryTopKs[1], "topK is capped")
}

func TestSearchFilterShape(t *testing.T) {
	m, _, store := newTestManager(t)
	store.serveStored(0.9)

	wallet := true
	_, err := m.Search(context.Background(), SearchRequest{
		Query: "swap",
		Filters: &SearchFilters{
			ProviderNames:  []string{"jupiter", "raydium"},
			Networks:       []string{"solana"},
			RequiresWallet: &wallet,
		},
	})
	require.NoError(t, err)

	require.Len(t, store.queryFilters, 1)
	filter := store.queryFilters[0]
	assert.Equal(t, map[string]any{"$in": []string{"jupiter", "raydium"}}, filter["providerName"])
	assert.Equal(t, map[string]any{"$in": []string{"solana"}}, filter["network"])
	assert.Equal(t, map[string]any{"$eq": true}, filter["requiresWallet"])
}

func TestSearchNoFiltersSendsNil(t *testing.T) {
	m, _, store := newTestManager(t)
	store.serveStored(0.9)

	_, err := m.Search(context.Background(), SearchRequest{Query: "swap"})
	require.NoError(t, err)
	assert.Nil(t, store.queryFilters[0])
}

func TestSearchRequiredParametersPostFilter(t *testing.T) {
	m, _, store := newFakeResultManager(t)
	_ = m

	results, err := m.Search(context.Background(), SearchRequest{
		Query:   "swap",
		Filters: &SearchFilters{RequiredParameters: []string{"INPUTMINT"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1, "only the action with an inputMint parameter survives")
	assert.Equal(t, "jupiter_swap", results[0].Name)

	// The store is over-fetched to compensate for pruning.
	assert.Equal(t, DefaultTopK*2, store.queryTopKs[len(store.queryTopKs)-1])
}

func TestSearchCorruptMetadataIsolated(t *testing.T) {
	m, _, store := newTestManager(t)
	store.serveStored(0.5)
	// Corrupt one record's serialized parameter list.
	store.matches[0].Metadata["parameters"] = "{not json"

	results, err := m.Search(context.Background(), SearchRequest{Query: "swap"})
	require.NoError(t, err)
	require.Len(t, results, 3, "one corrupt record must not fail the search")
	assert.Empty(t, results[0].Parameters)
	assert.NotEmpty(t, results[1].Parameters)
}

func TestSearchJupiterScenario(t *testing.T) {
	// End to end against the fakes: index a toolkit, query for a swap, and
	// expect the swap action ranked with its parameter list intact.
	m, _, store := newTestManager(t)
	store.serveStored(0.8)

	results, err := m.Search(context.Background(), SearchRequest{
		Query: "exchange SOL for USDC",
		TopK:  3,
		Filters: &SearchFilters{
			ProviderNames:      []string{"jupiter"},
			RequiredParameters: []string{"inputMint", "outputMint", "amount"},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	swap := results[0]
	assert.Equal(t, "jupiter_swap", swap.Name)
	assert.True(t, swap.RequiresWallet)
	assert.InDelta(t, 0.9, swap.Score, 1e-9)

	names := make([]string, len(swap.Parameters))
	for i, p := range swap.Parameters {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"inputMint", "outputMint", "amount", "slippageBps"}, names)
}

// newFakeResultManager builds a manager whose store serves handcrafted
// matches with divergent parameter lists.
func newFakeResultManager(t *testing.T) (*Manager, *fakeEmbedder, *fakeStore) {
	t.Helper()
	m, emb, store := newTestManager(t)

	params := func(names ...string) string {
		type pd struct {
			Name string `json:"name"`
		}
		list := make([]pd, len(names))
		for i, n := range names {
			list[i] = pd{Name: n}
		}
		b, err := json.Marshal(list)
		require.NoError(t, err)
		return string(b)
	}

	store.matches = []vectordb.Match{
		{ID: "a", Score: 0.9, Metadata: map[string]any{
			"actionName": "jupiter_swap", "providerName": "jupiter", "parameters": params("inputMint", "outputMint"),
		}},
		{ID: "b", Score: 0.8, Metadata: map[string]any{
			"actionName": "pyth_fetch_price", "providerName": "pyth", "parameters": params("symbol"),
		}},
	}
	return m, emb, store
}
