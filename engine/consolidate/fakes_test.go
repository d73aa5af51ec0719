package consolidate

import (
	"context"
	"fmt"
	"sync"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
)

type memStore struct {
	mu    sync.Mutex
	types map[string]domain.VocabularyType
	// listGate, when set, blocks List until the context is cancelled.
	listGate chan struct{}
}

func newMemStore(types ...domain.VocabularyType) *memStore {
	s := &memStore{types: make(map[string]domain.VocabularyType)}
	for _, vt := range types {
		s.types[vt.Name] = vt
	}
	return s
}

func (s *memStore) Get(_ context.Context, name string) (domain.VocabularyType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vt, ok := s.types[name]
	if !ok {
		return domain.VocabularyType{}, fmt.Errorf("%s: %w", name, domain.ErrTypeNotFound)
	}
	return vt, nil
}

func (s *memStore) List(ctx context.Context, activeOnly bool) ([]domain.VocabularyType, error) {
	if s.listGate != nil {
		select {
		case <-s.listGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VocabularyType
	for _, vt := range s.types {
		if activeOnly && !vt.IsActive {
			continue
		}
		out = append(out, vt)
	}
	return out, nil
}

func (s *memStore) CountActive(ctx context.Context) (int, error) {
	list, err := s.List(ctx, true)
	return len(list), err
}

func (s *memStore) Create(_ context.Context, vt domain.VocabularyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[vt.Name]; ok {
		return fmt.Errorf("%s: %w", vt.Name, domain.ErrTypeExists)
	}
	s.types[vt.Name] = vt
	return nil
}

func (s *memStore) Update(_ context.Context, vt domain.VocabularyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[vt.Name]; !ok {
		return fmt.Errorf("%s: %w", vt.Name, domain.ErrTypeNotFound)
	}
	s.types[vt.Name] = vt
	return nil
}

func (s *memStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[name]; !ok {
		return fmt.Errorf("%s: %w", name, domain.ErrTypeNotFound)
	}
	delete(s.types, name)
	return nil
}

func (s *memStore) mustGet(name string) domain.VocabularyType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[name]
}

func (s *memStore) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.types[name]
	return ok
}

// fakeMerger applies a merge to the backing memStore as one step, mirroring
// the graph store's transactional write. The member's pre-merge usage count
// stands in for the number of edges moved. When failures is positive, that
// many calls fail outright without touching the store, the way an aborted
// transaction would.
type fakeMerger struct {
	mu       sync.Mutex
	store    *memStore
	calls    []string
	failures int
}

func (m *fakeMerger) MergeTypes(ctx context.Context, member, canonical domain.VocabularyType) (int64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, member.Name+"->"+canonical.Name)
	fail := m.failures > 0
	if fail {
		m.failures--
	}
	m.mu.Unlock()
	if fail {
		return 0, fmt.Errorf("merge %s into %s: transaction rolled back", member.Name, canonical.Name)
	}
	before, err := m.store.Get(ctx, member.Name)
	if err != nil {
		return 0, err
	}
	if err := m.store.Update(ctx, canonical); err != nil {
		return 0, err
	}
	if err := m.store.Update(ctx, member); err != nil {
		return 0, err
	}
	return before.UsageCount, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	removed []string
	frozen  []string
}

func (i *fakeIndex) Upsert(context.Context, string, []float32, bool) error { return nil }

func (i *fakeIndex) Nearest(context.Context, []float32, int, bool) ([]vocab.Match, error) {
	return nil, nil
}

func (i *fakeIndex) SetActive(_ context.Context, name string, active bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !active {
		i.frozen = append(i.frozen, name)
	}
	return nil
}

func (i *fakeIndex) Remove(_ context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removed = append(i.removed, name)
	return nil
}

// fakeStats scores a type purely from its stored usage count.
type fakeStats struct {
	store *memStore
}

func (f *fakeStats) CountEdgesByType(ctx context.Context, typeName string) (int64, error) {
	vt, err := f.store.Get(ctx, typeName)
	if err != nil {
		return 0, nil
	}
	return vt.UsageCount, nil
}

func (f *fakeStats) TraversalCount(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeStats) SampleEndpointDegrees(context.Context, string, int) ([]vocab.DegreePair, error) {
	return nil, nil
}

func testController(store *memStore) (*Controller, *fakeMerger, *fakeIndex) {
	merger := &fakeMerger{store: store}
	index := &fakeIndex{}
	ctrl := NewController(
		store,
		merger,
		vocab.NewDetector(vocab.DefaultDetectorConfig()),
		vocab.NewValueScorer(&fakeStats{store: store}, vocab.DefaultValueConfig()),
		index,
		Config{Min: 3, SoftMax: 4, HardMax: 10, BatchSize: 2},
		nil,
	)
	return ctrl, merger, index
}

func builtin(name string, usage int64) domain.VocabularyType {
	return domain.VocabularyType{
		Name:           name,
		Category:       domain.CategoryStructural,
		CategorySource: domain.CategorySourceBuiltin,
		IsBuiltin:      true,
		IsActive:       true,
		UsageCount:     usage,
	}
}

func custom(name string, usage int64, embedding []float32) domain.VocabularyType {
	return domain.VocabularyType{
		Name:               name,
		Category:           domain.CategorySimilarity,
		CategorySource:     domain.CategorySourceComputed,
		CategoryConfidence: 0.8,
		Embedding:          embedding,
		IsActive:           true,
		UsageCount:         usage,
	}
}
