package vocab

import (
	"context"
	"errors"
	"testing"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

func newTestResolver(t *testing.T, cfg ResolverConfig) (*Resolver, *memStore, *memIndex, *fakeEmbedder) {
	t.Helper()
	store := newMemStore()
	index := newMemIndex()
	emb := &fakeEmbedder{vectors: map[string][]float32{}}

	// Seeds with synthetic embeddings, bootstrapped through the real path.
	for _, r := range seedRecords() {
		if len(r.Embedding) > 0 {
			emb.vectors[EmbedText(r.Name)] = r.Embedding
		}
	}
	cat := NewCategorizer(seedRecords())
	for _, r := range seedRecords() {
		r.CategorySource = domain.CategorySourceBuiltin
		r.CategoryConfidence = 1
		if err := store.Create(context.Background(), r); err != nil {
			t.Fatal(err)
		}
		if len(r.Embedding) > 0 {
			if err := index.Upsert(context.Background(), r.Name, r.Embedding, true); err != nil {
				t.Fatal(err)
			}
		}
	}
	return NewResolver(store, emb, index, cat, cfg, nil), store, index, emb
}

func TestResolveExactMatch(t *testing.T) {
	r, _, _, _ := newTestResolver(t, ResolverConfig{})
	res, err := r.Resolve(context.Background(), "  supports ")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsNew || res.CanonicalType != "SUPPORTS" {
		t.Errorf("got %+v, want existing SUPPORTS", res)
	}
}

func TestResolveFuzzyMatch(t *testing.T) {
	r, store, _, emb := newTestResolver(t, ResolverConfig{MatchThreshold: 0.9})
	// BACKS_UP embeds almost exactly onto SUPPORTS.
	emb.vectors[EmbedText("BACKS_UP")] = []float32{0, 0.999, 0.01, 0}

	res, err := r.Resolve(context.Background(), "backs up")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsNew {
		t.Error("fuzzy match must not create a new type")
	}
	if res.CanonicalType != "SUPPORTS" {
		t.Errorf("canonical = %s, want SUPPORTS", res.CanonicalType)
	}
	if res.Similarity < 0.9 {
		t.Errorf("similarity = %f, want >= 0.9", res.Similarity)
	}
	if _, err := store.Get(context.Background(), "BACKS_UP"); !errors.Is(err, domain.ErrTypeNotFound) {
		t.Error("BACKS_UP record must not exist after fuzzy match")
	}
}

func TestResolveCreatesAndCategorizesEagerly(t *testing.T) {
	r, store, index, emb := newTestResolver(t, ResolverConfig{MatchThreshold: 0.9})
	// ENHANCES leans to the causal pole but is not close enough to match.
	emb.vectors[EmbedText("ENHANCES")] = []float32{0.85, 0.5, 0, 0.2}

	var discovered []string
	r.OnDiscovered = func(_ context.Context, vt domain.VocabularyType) {
		discovered = append(discovered, vt.Name)
	}

	res, err := r.Resolve(context.Background(), "enhances")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsNew || res.CanonicalType != "ENHANCES" {
		t.Fatalf("got %+v, want new ENHANCES", res)
	}

	vt, err := store.Get(context.Background(), "ENHANCES")
	if err != nil {
		t.Fatal(err)
	}
	if vt.CategorySource != domain.CategorySourceComputed {
		t.Errorf("category_source = %s, want computed", vt.CategorySource)
	}
	if vt.Category != domain.CategoryCausal && vt.Category != domain.CategoryEvidential {
		t.Errorf("category = %s, want causal or evidential", vt.Category)
	}
	if vt.CategoryConfidence <= 0.5 {
		t.Errorf("confidence = %f, want > 0.5", vt.CategoryConfidence)
	}
	if len(vt.Embedding) == 0 {
		t.Error("embedding must be stored at creation")
	}
	if hits, _ := index.Nearest(context.Background(), vt.Embedding, 1, true); len(hits) == 0 || hits[0].Name != "ENHANCES" {
		t.Error("new type must be indexed")
	}
	if len(discovered) != 1 || discovered[0] != "ENHANCES" {
		t.Errorf("discovery callback got %v", discovered)
	}

	// Second resolve of the same string is a plain match.
	res, err = r.Resolve(context.Background(), "ENHANCES")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsNew {
		t.Error("second resolve must not be new")
	}
	if len(discovered) != 1 {
		t.Error("discovery callback must fire once")
	}
}

func TestResolveEmbeddingOutage(t *testing.T) {
	r, store, _, emb := newTestResolver(t, ResolverConfig{})
	emb.err = domain.ErrEmbeddingUnavailable

	// Exact match still works.
	res, err := r.Resolve(context.Background(), "supports")
	if err != nil {
		t.Fatal(err)
	}
	if res.CanonicalType != "SUPPORTS" || res.IsNew {
		t.Errorf("exact match during outage: %+v", res)
	}

	// Unknown type is still created, with a placeholder categorization.
	res, err = r.Resolve(context.Background(), "mystery relation")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsNew {
		t.Fatal("outage must not block creation")
	}
	vt, err := store.Get(context.Background(), "MYSTERY_RELATION")
	if err != nil {
		t.Fatal(err)
	}
	if vt.CategoryConfidence != 0 {
		t.Errorf("placeholder confidence = %f, want 0", vt.CategoryConfidence)
	}
	if len(vt.Embedding) != 0 {
		t.Error("no embedding should be stored during outage")
	}
}

func TestResolveBlockedAtHardMax(t *testing.T) {
	r, store, _, emb := newTestResolver(t, ResolverConfig{MatchThreshold: 0.9, HardMax: 30})
	emb.vectors[EmbedText("NOVEL_THING")] = []float32{0.5, 0.5, 0.5, 0.5}

	active, err := store.CountActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if active != 30 {
		t.Fatalf("precondition: active = %d, want 30 (at hard max)", active)
	}

	_, err = r.Resolve(context.Background(), "novel thing")
	if !errors.Is(err, domain.ErrVocabularyFull) {
		t.Errorf("err = %v, want ErrVocabularyFull", err)
	}
	// The novel proposal must not have been silently merged into an
	// unrelated type.
	if _, err := store.Get(context.Background(), "NOVEL_THING"); !errors.Is(err, domain.ErrTypeNotFound) {
		t.Error("blocked proposal must not create a record")
	}
}

func TestResolveFollowsSynonymPointer(t *testing.T) {
	r, store, _, _ := newTestResolver(t, ResolverConfig{})
	archived := domain.VocabularyType{
		Name:       "BACKS_UP",
		Category:   domain.CategoryEvidential,
		IsActive:   false,
		MergedInto: "SUPPORTS",
	}
	if err := store.Create(context.Background(), archived); err != nil {
		t.Fatal(err)
	}

	res, err := r.Resolve(context.Background(), "backs up")
	if err != nil {
		t.Fatal(err)
	}
	if res.CanonicalType != "SUPPORTS" || res.IsNew {
		t.Errorf("got %+v, want canonical SUPPORTS", res)
	}
}

func TestResolveInactiveType(t *testing.T) {
	r, store, _, _ := newTestResolver(t, ResolverConfig{})
	deactivated := domain.VocabularyType{Name: "RETIRED_REL", IsActive: false}
	if err := store.Create(context.Background(), deactivated); err != nil {
		t.Fatal(err)
	}
	_, err := r.Resolve(context.Background(), "retired rel")
	if !errors.Is(err, domain.ErrTypeInactive) {
		t.Errorf("err = %v, want ErrTypeInactive", err)
	}
}

func TestResolveRejectsGarbage(t *testing.T) {
	r, _, _, _ := newTestResolver(t, ResolverConfig{})
	for _, bad := range []string{"", "   ", "---"} {
		if _, err := r.Resolve(context.Background(), bad); !errors.Is(err, domain.ErrInvalidTypeName) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidTypeName", bad, err)
		}
	}
}
