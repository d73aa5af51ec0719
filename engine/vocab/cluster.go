package vocab

import (
	"sort"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// DefaultClusterThreshold is the design-default mutual similarity for
// synonym clustering.
const DefaultClusterThreshold = 0.85

// DetectorConfig tunes synonym-cluster detection.
type DetectorConfig struct {
	// Threshold is the minimum cosine similarity for a type to join a
	// cluster.
	Threshold float64
	// AutoApplyBar is the similarity above which a merge recommendation is
	// marked safe for automatic execution; below it, the recommendation is
	// queued for human review.
	AutoApplyBar float64
}

// DefaultDetectorConfig returns the design defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{Threshold: DefaultClusterThreshold, AutoApplyBar: 0.92}
}

// Detector finds groups of vocabulary types that are near-duplicates in
// embedding space and picks a canonical representative per cluster.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultClusterThreshold
	}
	if cfg.AutoApplyBar <= 0 {
		cfg.AutoApplyBar = 0.92
	}
	return &Detector{cfg: cfg}
}

type protoCluster struct {
	members []domain.VocabularyType
}

// FindClusters groups active, embedded types by union of pairwise matches: a
// type joins a cluster if it is at or above threshold to any existing member
// (not a strict clique). valueOf supplies the structural value score used
// for canonical selection and attached to every recommendation. Types
// without embeddings never cluster.
func (d *Detector) FindClusters(types []domain.VocabularyType, valueOf func(name string) float64) []domain.Cluster {
	// Deterministic input order regardless of store iteration order.
	sorted := make([]domain.VocabularyType, len(types))
	copy(sorted, types)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var protos []protoCluster
	for _, t := range sorted {
		if !t.IsActive || len(t.Embedding) == 0 {
			continue
		}
		joined := false
		for i := range protos {
			for _, m := range protos[i].members {
				if Cosine(t.Embedding, m.Embedding) >= d.cfg.Threshold {
					protos[i].members = append(protos[i].members, t)
					joined = true
					break
				}
			}
			if joined {
				break
			}
		}
		if !joined {
			protos = append(protos, protoCluster{members: []domain.VocabularyType{t}})
		}
	}

	var out []domain.Cluster
	for _, p := range protos {
		if len(p.members) < 2 {
			continue
		}
		out = append(out, d.buildCluster(p.members, valueOf))
	}
	return out
}

// buildCluster selects the canonical member and emits a recommendation for
// every other member. Canonical priority: builtin wins unconditionally, then
// highest value score, then highest usage count, then lexicographically
// first as the final deterministic tiebreak.
func (d *Detector) buildCluster(members []domain.VocabularyType, valueOf func(string) float64) domain.Cluster {
	canonical := members[0]
	for _, m := range members[1:] {
		if betterCanonical(m, canonical, valueOf) {
			canonical = m
		}
	}

	cluster := domain.Cluster{Canonical: canonical.Name}
	for _, m := range members {
		cluster.Members = append(cluster.Members, m.Name)
		if m.Name == canonical.Name {
			continue
		}
		sim := Cosine(m.Embedding, canonical.Embedding)
		cluster.Recommendations = append(cluster.Recommendations, domain.MergeRecommendation{
			MemberType:     m.Name,
			CanonicalType:  canonical.Name,
			Similarity:     sim,
			MemberValue:    valueOf(m.Name),
			CanonicalValue: valueOf(canonical.Name),
			Action:         domain.ActionMerge,
			AutoApply:      !m.IsBuiltin && sim >= d.cfg.AutoApplyBar,
		})
	}
	sort.Strings(cluster.Members)
	return cluster
}

func betterCanonical(a, b domain.VocabularyType, valueOf func(string) float64) bool {
	if a.IsBuiltin != b.IsBuiltin {
		return a.IsBuiltin
	}
	av, bv := valueOf(a.Name), valueOf(b.Name)
	if av != bv {
		return av > bv
	}
	if a.UsageCount != b.UsageCount {
		return a.UsageCount > b.UsageCount
	}
	return a.Name < b.Name
}
