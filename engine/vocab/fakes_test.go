package vocab

import (
	"context"
	"sort"
	"sync"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu    sync.Mutex
	types map[string]domain.VocabularyType
}

func newMemStore() *memStore {
	return &memStore{types: make(map[string]domain.VocabularyType)}
}

func (m *memStore) Get(_ context.Context, name string) (domain.VocabularyType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vt, ok := m.types[name]
	if !ok {
		return domain.VocabularyType{}, domain.ErrTypeNotFound
	}
	return vt, nil
}

func (m *memStore) List(_ context.Context, activeOnly bool) ([]domain.VocabularyType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.VocabularyType
	for _, vt := range m.types {
		if activeOnly && !vt.IsActive {
			continue
		}
		out = append(out, vt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, vt := range m.types {
		if vt.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Create(_ context.Context, vt domain.VocabularyType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[vt.Name]; ok {
		return domain.ErrTypeExists
	}
	m.types[vt.Name] = vt
	return nil
}

func (m *memStore) Update(_ context.Context, vt domain.VocabularyType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[vt.Name]; !ok {
		return domain.ErrTypeNotFound
	}
	m.types[vt.Name] = vt
	return nil
}

func (m *memStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[name]; !ok {
		return domain.ErrTypeNotFound
	}
	delete(m.types, name)
	return nil
}

// fakeEmbedder returns canned vectors by exact text, or err when set.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

// memIndex is a brute-force SimilarityIndex for tests.
type memIndex struct {
	mu      sync.Mutex
	vecs    map[string][]float32
	active  map[string]bool
	nearErr error
}

func newMemIndex() *memIndex {
	return &memIndex{vecs: make(map[string][]float32), active: make(map[string]bool)}
}

func (m *memIndex) Upsert(_ context.Context, name string, vec []float32, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecs[name] = vec
	m.active[name] = active
	return nil
}

func (m *memIndex) Nearest(_ context.Context, vec []float32, k int, activeOnly bool) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nearErr != nil {
		return nil, m.nearErr
	}
	var hits []Match
	for name, v := range m.vecs {
		if activeOnly && !m.active[name] {
			continue
		}
		hits = append(hits, Match{Name: name, Similarity: Cosine(vec, v)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *memIndex) SetActive(_ context.Context, name string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[name] = active
	return nil
}

func (m *memIndex) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vecs, name)
	delete(m.active, name)
	return nil
}

// fakeStats is a canned GraphStats.
type fakeStats struct {
	edges     map[string]int64
	traversal map[string]int64
	degrees   map[string][]DegreePair
}

func (f *fakeStats) CountEdgesByType(_ context.Context, name string) (int64, error) {
	return f.edges[name], nil
}

func (f *fakeStats) TraversalCount(_ context.Context, name string) (int64, error) {
	return f.traversal[name], nil
}

func (f *fakeStats) SampleEndpointDegrees(_ context.Context, name string, limit int) ([]DegreePair, error) {
	pairs := f.degrees[name]
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// unitVec builds a unit vector along the given axis of a 4-dim space, with
// an optional lean toward another axis. Handy for synthetic similarity.
func unitVec(axis int, lean int, leanAmount float32) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	if lean >= 0 {
		v[lean] = leanAmount
	}
	return v
}
