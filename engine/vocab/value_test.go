package vocab

import (
	"context"
	"math"
	"testing"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

func TestBuiltinScoreOverride(t *testing.T) {
	s := NewValueScorer(&fakeStats{}, DefaultValueConfig())
	got, err := s.Score(context.Background(), domain.VocabularyType{Name: "SUPPORTS", IsBuiltin: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != BuiltinScore {
		t.Errorf("builtin score = %f, want %f", got, BuiltinScore)
	}
}

func TestScoreGrowsWithUsage(t *testing.T) {
	stats := &fakeStats{edges: map[string]int64{"RARE": 1, "COMMON": 100}}
	s := NewValueScorer(stats, DefaultValueConfig())
	ctx := context.Background()

	rare, err := s.Score(ctx, domain.VocabularyType{Name: "RARE"})
	if err != nil {
		t.Fatal(err)
	}
	common, err := s.Score(ctx, domain.VocabularyType{Name: "COMMON"})
	if err != nil {
		t.Fatal(err)
	}
	if common <= rare {
		t.Errorf("common (%f) should outscore rare (%f)", common, rare)
	}
}

func TestBridgeBonus(t *testing.T) {
	// All sampled edges run from low-degree sources into high-degree
	// targets: maximal bridge fraction.
	bridging := make([]DegreePair, 10)
	for i := range bridging {
		bridging[i] = DegreePair{SourceDegree: 1, TargetDegree: 50}
	}
	ordinary := make([]DegreePair, 10)
	for i := range ordinary {
		ordinary[i] = DegreePair{SourceDegree: 8, TargetDegree: 8}
	}
	stats := &fakeStats{
		edges:   map[string]int64{"BRIDGE": 10, "PLAIN": 10},
		degrees: map[string][]DegreePair{"BRIDGE": bridging, "PLAIN": ordinary},
	}
	s := NewValueScorer(stats, DefaultValueConfig())
	ctx := context.Background()

	b, err := s.Score(ctx, domain.VocabularyType{Name: "BRIDGE"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Score(ctx, domain.VocabularyType{Name: "PLAIN"})
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultValueConfig()
	if diff := b - p; math.Abs(diff-cfg.BridgeWeight) > 1e-9 {
		t.Errorf("bridge bonus difference = %f, want %f", diff, cfg.BridgeWeight)
	}
}

func TestBridgeSampleBounded(t *testing.T) {
	// More pairs than the sample limit: the scorer must only consume the
	// bounded prefix the stats port returns.
	many := make([]DegreePair, 500)
	for i := range many {
		many[i] = DegreePair{SourceDegree: 1, TargetDegree: 50}
	}
	stats := &fakeStats{degrees: map[string][]DegreePair{"T": many}}
	cfg := DefaultValueConfig()
	cfg.SampleLimit = 10
	s := NewValueScorer(stats, cfg)
	if _, err := s.Score(context.Background(), domain.VocabularyType{Name: "T"}); err != nil {
		t.Fatal(err)
	}
	got, _ := stats.SampleEndpointDegrees(context.Background(), "T", cfg.SampleLimit)
	if len(got) != 10 {
		t.Errorf("sample = %d pairs, want 10", len(got))
	}
}

func TestSaturate(t *testing.T) {
	if saturate(0, 20) != 0 {
		t.Error("saturate(0) should be 0")
	}
	if got := saturate(20, 20); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("half saturation = %f, want 0.5", got)
	}
	if saturate(1e12, 20) >= 1 {
		t.Error("saturate must stay below 1")
	}
	// Diminishing returns: the first unit is worth more than the hundredth.
	first := saturate(1, 20) - saturate(0, 20)
	hundredth := saturate(100, 20) - saturate(99, 20)
	if first <= hundredth {
		t.Errorf("first gain %f should exceed later gain %f", first, hundredth)
	}
}
