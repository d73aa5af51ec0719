package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// fakeResolver normalizes to uppercase and reports IsNew on the first
// sighting of each name, mirroring vocabulary discovery.
type fakeResolver struct {
	canonical map[string]string
	seen      map[string]bool
	err       error
}

func newFakeResolver(canonical map[string]string) *fakeResolver {
	return &fakeResolver{canonical: canonical, seen: make(map[string]bool)}
}

func (r *fakeResolver) Resolve(_ context.Context, proposed string) (domain.Resolution, error) {
	if r.err != nil {
		return domain.Resolution{}, r.err
	}
	name, ok := r.canonical[proposed]
	if !ok {
		return domain.Resolution{}, fmt.Errorf("%s: %w", proposed, domain.ErrInvalidTypeName)
	}
	isNew := !r.seen[name]
	r.seen[name] = true
	return domain.Resolution{CanonicalType: name, IsNew: isNew}, nil
}

type fakeEdgeStore struct {
	edges   map[string]domain.ConceptEdge
	usage   map[string]int64
	saveErr error
}

func newFakeEdgeStore() *fakeEdgeStore {
	return &fakeEdgeStore{edges: make(map[string]domain.ConceptEdge), usage: make(map[string]int64)}
}

func (s *fakeEdgeStore) SaveEdge(_ context.Context, e domain.ConceptEdge) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.edges[e.ID] = e
	return nil
}

func (s *fakeEdgeStore) IncrementUsage(_ context.Context, typeName string, delta int64) error {
	s.usage[typeName] += delta
	return nil
}

func TestValidate_RejectsMalformedSubmissions(t *testing.T) {
	cases := []struct {
		name string
		sub  EdgeSubmission
	}{
		{"missing source", EdgeSubmission{TargetID: "b", Type: "enhances", Confidence: 0.5}},
		{"self loop", EdgeSubmission{SourceID: "a", TargetID: "a", Type: "enhances", Confidence: 0.5}},
		{"empty type", EdgeSubmission{SourceID: "a", TargetID: "b", Confidence: 0.5}},
		{"confidence above one", EdgeSubmission{SourceID: "a", TargetID: "b", Type: "enhances", Confidence: 1.2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if result := Validate(context.Background(), tc.sub); result.IsOk() {
				t.Errorf("submission accepted: %+v", tc.sub)
			}
		})
	}
}

func TestValidate_AcceptsWellFormedSubmission(t *testing.T) {
	sub := EdgeSubmission{SourceID: "exercise", TargetID: "mood", Type: "enhances", Confidence: 0.8}
	if result := Validate(context.Background(), sub); result.IsErr() {
		_, err := result.Unwrap()
		t.Fatalf("valid submission rejected: %v", err)
	}
}

func TestResolveTypeStage_PropagatesResolverError(t *testing.T) {
	resolver := newFakeResolver(nil)
	resolver.err = errors.New("store down")
	stage := NewResolveType(resolver)

	result := stage(context.Background(), EdgeSubmission{SourceID: "a", TargetID: "b", Type: "enhances"})
	if result.IsOk() {
		t.Fatal("expected error")
	}
}

func TestStoreEdgeStage_WritesCanonicalType(t *testing.T) {
	store := newFakeEdgeStore()
	stage := NewStoreEdge(store)

	re := resolvedEdge{
		sub: EdgeSubmission{SourceID: "exercise", TargetID: "mood", Type: "enhances", Confidence: 0.8, Document: "doc-1"},
		res: domain.Resolution{CanonicalType: "ENHANCES", IsNew: true},
	}
	result := stage(context.Background(), re)
	rec, err := result.Unwrap()
	if err != nil {
		t.Fatalf("store stage: %v", err)
	}

	if rec.Type != "ENHANCES" || !rec.IsNew {
		t.Errorf("recorded = %+v", rec)
	}
	stored, ok := store.edges[rec.EdgeID]
	if !ok {
		t.Fatal("edge not stored")
	}
	if stored.Type != "ENHANCES" || stored.Document != "doc-1" {
		t.Errorf("stored edge = %+v", stored)
	}
	if store.usage["ENHANCES"] != 1 {
		t.Errorf("usage = %d, want 1", store.usage["ENHANCES"])
	}
}

func TestPipeline_RepeatedTypeCountsUsage(t *testing.T) {
	resolver := newFakeResolver(map[string]string{"enhances": "ENHANCES"})
	store := newFakeEdgeStore()
	pipeline := NewPipeline(Deps{Resolver: resolver, Store: store})

	ctx := context.Background()
	var newCount int
	for i := 0; i < 5; i++ {
		sub := EdgeSubmission{
			SourceID:   "exercise",
			TargetID:   fmt.Sprintf("target-%d", i),
			Type:       "enhances",
			Confidence: 0.8,
		}
		rec, err := pipeline(ctx, sub).Unwrap()
		if err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
		if rec.Type != "ENHANCES" {
			t.Fatalf("submission %d resolved to %s", i, rec.Type)
		}
		if rec.IsNew {
			newCount++
		}
	}

	if newCount != 1 {
		t.Errorf("is_new reported %d times, want exactly once", newCount)
	}
	if store.usage["ENHANCES"] != 5 {
		t.Errorf("usage = %d, want 5", store.usage["ENHANCES"])
	}
	if len(store.edges) != 5 {
		t.Errorf("stored %d edges, want 5", len(store.edges))
	}
}

func TestPipeline_StopsAtFirstFailingStage(t *testing.T) {
	resolver := newFakeResolver(map[string]string{"enhances": "ENHANCES"})
	store := newFakeEdgeStore()
	store.saveErr = errors.New("neo4j down")
	pipeline := NewPipeline(Deps{Resolver: resolver, Store: store})

	result := pipeline(context.Background(), EdgeSubmission{
		SourceID: "a", TargetID: "b", Type: "enhances", Confidence: 0.5,
	})
	if result.IsOk() {
		t.Fatal("expected pipeline failure")
	}
	if store.usage["ENHANCES"] != 0 {
		t.Error("usage bumped despite failed save")
	}
}

func TestEdgeID_Deterministic(t *testing.T) {
	a := EdgeID("exercise", "ENHANCES", "mood")
	b := EdgeID("exercise", "ENHANCES", "mood")
	c := EdgeID("exercise", "CAUSES", "mood")
	if a != b {
		t.Fatal("same edge produced different IDs")
	}
	if a == c {
		t.Fatal("different types collided")
	}
}
