package vocab

import (
	"math"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// Confidence bands are advisory only; a low-confidence categorization is
// logged, never blocked.
const (
	ConfidenceHigh   = 0.70
	ConfidenceMedium = 0.50
)

// AmbiguityThreshold is the absolute runner-up score above which a type is
// flagged as genuinely spanning two categories.
const AmbiguityThreshold = 0.70

// polarityFloor is the minimum similarity to a signed seed for a computed
// type to inherit its polarity.
const polarityFloor = 0.5

// Assignment is the result of categorizing one embedding.
type Assignment struct {
	Category    domain.Category
	Confidence  float64
	Scores      map[domain.Category]float64
	Ambiguous   bool
	NearestSeed string
	Polarity    float64
}

// Band returns the advisory confidence band for the assignment.
func (a Assignment) Band() string {
	switch {
	case a.Confidence >= ConfidenceHigh:
		return "high"
	case a.Confidence >= ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// seedVector pairs a seed with its embedding.
type seedVector struct {
	seed Seed
	vec  []float32
}

// Categorizer assigns semantic categories to vocabulary types by comparing
// their embeddings against the protected seed embeddings.
type Categorizer struct {
	seeds []seedVector
}

// NewCategorizer builds a categorizer from the seed records currently in the
// store. Seeds without embeddings are skipped rather than failing the whole
// categorizer; a category with zero scorable seeds is simply absent from the
// score map and can never win.
func NewCategorizer(seedRecords []domain.VocabularyType) *Categorizer {
	byName := make(map[string][]float32, len(seedRecords))
	for _, r := range seedRecords {
		if len(r.Embedding) > 0 {
			byName[r.Name] = r.Embedding
		}
	}
	c := &Categorizer{}
	for _, s := range seedTable {
		if vec, ok := byName[s.Name]; ok {
			c.seeds = append(c.seeds, seedVector{seed: s, vec: vec})
		}
	}
	return c
}

// ScorableSeeds returns how many seeds carry embeddings.
func (c *Categorizer) ScorableSeeds() int { return len(c.seeds) }

// Categorize scores the embedding against every scorable seed. The score of
// a category is the maximum similarity among its seeds (satisficing, not
// mean): categories hold seeds of opposite meaning, and averaging would wash
// out a strong match to a single pole. Deterministic for fixed inputs.
func (c *Categorizer) Categorize(embedding []float32) Assignment {
	scores := make(map[domain.Category]float64)
	nearestName := ""
	nearestSim := math.Inf(-1)
	polarity := 0.0
	polaritySim := polarityFloor

	for _, sv := range c.seeds {
		sim := Cosine(embedding, sv.vec)
		if cur, ok := scores[sv.seed.Category]; !ok || sim > cur {
			scores[sv.seed.Category] = sim
		}
		if sim > nearestSim {
			nearestSim = sim
			nearestName = sv.seed.Name
		}
		if sv.seed.Polarity != 0 && sim >= polaritySim {
			polaritySim = sim
			polarity = sv.seed.Polarity
		}
	}

	if len(scores) == 0 {
		return Assignment{Scores: scores}
	}

	var winner domain.Category
	best := math.Inf(-1)
	runnerUp := math.Inf(-1)
	for _, cat := range domain.Categories() {
		s, ok := scores[cat]
		if !ok {
			continue
		}
		if s > best {
			runnerUp = best
			best = s
			winner = cat
		} else if s > runnerUp {
			runnerUp = s
		}
	}

	return Assignment{
		Category:    winner,
		Confidence:  clamp01(best),
		Scores:      scores,
		Ambiguous:   runnerUp > AmbiguityThreshold,
		NearestSeed: nearestName,
		Polarity:    polarity,
	}
}

// PlaceholderAssignment is used when the embedding call failed and the type
// must still be created without blocking ingestion.
func PlaceholderAssignment() Assignment {
	return Assignment{
		Category:   domain.CategorySimilarity,
		Confidence: 0,
		Scores:     map[domain.Category]float64{},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
