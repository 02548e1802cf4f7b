package toolsearch

import (
	"context"
	"fmt"
	"sync"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

// fakeEmbedder hands out deterministic vectors and records inputs.
type fakeEmbedder struct {
	mu         sync.Mutex
	batchCalls [][]string
	inputTypes []string
	queryTexts []string
	failWith   error
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, float32(len(text)), 1}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, inputType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.queryTexts = append(f.queryTexts, text)
	f.inputTypes = append(f.inputTypes, inputType)
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.batchCalls = append(f.batchCalls, texts)
	f.inputTypes = append(f.inputTypes, inputType)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

// fakeStore keeps vectors in a map and replays canned query matches.
type fakeStore struct {
	mu            sync.Mutex
	vectors       map[string]vectordb.Vector
	upsertBatches [][]vectordb.Vector
	queryFilters  []vectordb.Filter
	queryTopKs    []int
	matches       []vectordb.Match
	deleteAllN    int
	ensureErr     error
	upsertErr     error
	queryErr      error
	statsErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{vectors: map[string]vectordb.Vector{}}
}

func (s *fakeStore) EnsureIndex(ctx context.Context) error { return s.ensureErr }

func (s *fakeStore) Upsert(ctx context.Context, vectors []vectordb.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upsertBatches = append(s.upsertBatches, vectors)
	for _, v := range vectors {
		s.vectors[v.ID] = v
	}
	return nil
}

func (s *fakeStore) Query(ctx context.Context, vector []float32, topK int, filter vectordb.Filter) ([]vectordb.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.queryFilters = append(s.queryFilters, filter)
	s.queryTopKs = append(s.queryTopKs, topK)
	if len(s.matches) > topK {
		return s.matches[:topK], nil
	}
	return s.matches, nil
}

func (s *fakeStore) Fetch(ctx context.Context, ids []string) (map[string]vectordb.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]vectordb.Vector{}
	for _, id := range ids {
		if v, ok := s.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *fakeStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAllN++
	s.vectors = map[string]vectordb.Vector{}
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (*vectordb.IndexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return &vectordb.IndexStats{TotalVectorCount: len(s.vectors)}, nil
}

func (s *fakeStore) vectorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vectors)
}

// matchesFromStore turns stored vectors into query matches with one score.
func (s *fakeStore) serveStored(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = s.matches[:0]
	for _, v := range s.vectors {
		s.matches = append(s.matches, vectordb.Match{ID: v.ID, Score: score, Metadata: v.Metadata})
	}
}

// errNoAudit is a sentinel for audit failure tests.
var errNoAudit = fmt.Errorf("audit store down")
