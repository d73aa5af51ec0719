package vocab

import (
	"math"
	"testing"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// seedRecords builds seed vocabulary records with synthetic embeddings on a
// 4-dim space: axis 0 = causal pole, axis 1 = evidential-positive pole,
// axis 2 = evidential-negative pole, axis 3 = everything else.
func seedRecords() []domain.VocabularyType {
	vec := map[string][]float32{
		"CAUSES":      {1, 0, 0, 0},
		"ENABLES":     {0.95, 0, 0, 0.1},
		"SUPPORTS":    {0, 1, 0, 0},
		"VALIDATES":   {0, 0.95, 0, 0.1},
		"CONTRADICTS": {0, 0, 1, 0},
		"REFUTES":     {0, 0, 0.95, 0.1},
		"PART_OF":     {0, 0, 0, 1},
	}
	var out []domain.VocabularyType
	for _, s := range Seeds() {
		r := domain.VocabularyType{
			Name:      s.Name,
			Category:  s.Category,
			IsBuiltin: true,
			IsActive:  true,
		}
		if v, ok := vec[s.Name]; ok {
			r.Embedding = v
		}
		out = append(out, r)
	}
	return out
}

func TestCategorizeSatisficing(t *testing.T) {
	cat := NewCategorizer(seedRecords())

	// Leaning strongly to the causal pole only. The causal category contains
	// both CAUSES and (unembedded) PREVENTS; max-similarity must carry the
	// single strong match.
	asg := cat.Categorize([]float32{0.98, 0.1, 0, 0})
	if asg.Category != domain.CategoryCausal {
		t.Fatalf("category = %s, want causal", asg.Category)
	}
	if asg.Confidence < 0.9 {
		t.Errorf("confidence = %f, want >= 0.9", asg.Confidence)
	}
	if asg.NearestSeed != "CAUSES" {
		t.Errorf("nearest seed = %s, want CAUSES", asg.NearestSeed)
	}
}

func TestCategorizeNearestSeedBelongsToWinner(t *testing.T) {
	cat := NewCategorizer(seedRecords())

	seedCategory := make(map[string]domain.Category)
	for _, s := range Seeds() {
		seedCategory[s.Name] = s.Category
	}

	for _, vec := range [][]float32{
		{0.98, 0.1, 0, 0},
		{0.1, 0.9, 0.2, 0},
		{0, 0.1, 0.97, 0},
		{0.1, 0, 0, 0.99},
	} {
		asg := cat.Categorize(vec)
		if asg.NearestSeed == "" {
			t.Fatalf("vec %v: empty nearest seed", vec)
		}
		if got := seedCategory[asg.NearestSeed]; got != asg.Category {
			t.Errorf("vec %v: nearest seed %s belongs to %s but winner is %s",
				vec, asg.NearestSeed, got, asg.Category)
		}
	}
}

func TestCategorizeDeterminism(t *testing.T) {
	cat := NewCategorizer(seedRecords())
	vec := []float32{0.4, 0.8, 0.1, 0.2}
	first := cat.Categorize(vec)
	for i := 0; i < 10; i++ {
		again := cat.Categorize(vec)
		if again.Category != first.Category || again.Confidence != first.Confidence {
			t.Fatalf("run %d: got (%s, %f), want (%s, %f)",
				i, again.Category, again.Confidence, first.Category, first.Confidence)
		}
	}
}

func TestCategorizeAmbiguity(t *testing.T) {
	cat := NewCategorizer(seedRecords())

	// Equally close to causal and evidential-positive poles: both category
	// scores exceed the ambiguity threshold.
	asg := cat.Categorize([]float32{1, 1, 0, 0})
	if !asg.Ambiguous {
		t.Error("expected ambiguous assignment")
	}

	// Clear single-pole match must not be ambiguous.
	asg = cat.Categorize([]float32{1, 0.05, 0, 0})
	if asg.Ambiguous {
		t.Error("clear match flagged ambiguous")
	}
}

func TestCategorizeSkipsUnembeddedSeeds(t *testing.T) {
	// Only two seeds have embeddings; every other seed (and category) must
	// simply be absent from the score map, never fail the call.
	records := []domain.VocabularyType{
		{Name: "CAUSES", IsBuiltin: true, Embedding: []float32{1, 0, 0, 0}},
		{Name: "SUPPORTS", IsBuiltin: true, Embedding: []float32{0, 1, 0, 0}},
	}
	cat := NewCategorizer(records)
	if cat.ScorableSeeds() != 2 {
		t.Fatalf("scorable seeds = %d, want 2", cat.ScorableSeeds())
	}
	asg := cat.Categorize([]float32{1, 0, 0, 0})
	if asg.Category != domain.CategoryCausal {
		t.Errorf("category = %s, want causal", asg.Category)
	}
	if _, ok := asg.Scores[domain.CategoryTemporal]; ok {
		t.Error("category with no scorable seeds must be absent from scores")
	}
}

func TestCategorizeNoScorableSeeds(t *testing.T) {
	cat := NewCategorizer(nil)
	asg := cat.Categorize([]float32{1, 0, 0, 0})
	if asg.Category != "" || asg.Confidence != 0 {
		t.Errorf("expected empty assignment, got (%s, %f)", asg.Category, asg.Confidence)
	}
}

func TestCategorizePolarityInheritance(t *testing.T) {
	cat := NewCategorizer(seedRecords())

	tests := []struct {
		name string
		vec  []float32
		want float64
	}{
		{"supports-like", []float32{0.1, 0.95, 0, 0}, 1},
		{"contradicts-like", []float32{0.1, 0, 0.95, 0}, -1},
		{"no clear pole", []float32{1, 0.1, 0.1, 0}, 0},
	}
	for _, tt := range tests {
		asg := cat.Categorize(tt.vec)
		if asg.Polarity != tt.want {
			t.Errorf("%s: polarity = %f, want %f", tt.name, asg.Polarity, tt.want)
		}
	}
}

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		conf float64
		want string
	}{
		{0.9, "high"},
		{0.70, "high"},
		{0.6, "medium"},
		{0.50, "medium"},
		{0.49, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		a := Assignment{Confidence: tt.conf}
		if got := a.Band(); got != tt.want {
			t.Errorf("Band(%f) = %s, want %s", tt.conf, got, tt.want)
		}
	}
}

func TestSeedTableShape(t *testing.T) {
	if n := len(Seeds()); n != 30 {
		t.Errorf("seed count = %d, want 30", n)
	}
	cats := make(map[domain.Category]bool)
	signed := 0
	for _, s := range Seeds() {
		cats[s.Category] = true
		if s.Polarity != 0 {
			signed++
			if s.Category != domain.CategoryEvidential {
				t.Errorf("signed seed %s outside evidential category", s.Name)
			}
		}
	}
	if len(cats) != 10 {
		t.Errorf("category count = %d, want 10", len(cats))
	}
	if signed != 4 {
		t.Errorf("signed seed count = %d, want 4", signed)
	}
	if !IsSeed("SUPPORTS") || IsSeed("ENHANCES") {
		t.Error("IsSeed misidentifies membership")
	}
	if math.Abs(clamp01(1.5)-1) > 1e-9 || clamp01(-0.5) != 0 {
		t.Error("clamp01 out of range")
	}
}
