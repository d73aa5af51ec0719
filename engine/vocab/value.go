package vocab

import (
	"context"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// BuiltinScore is the score override that makes builtin types un-prunable.
// Protection is structural, not earned.
const BuiltinScore = 1e9

// ValueConfig tunes structural value scoring.
type ValueConfig struct {
	UsageWeight     float64
	TraversalWeight float64
	BridgeWeight    float64
	// UsageHalf and TraversalHalf are half-saturation constants for count
	// normalization.
	UsageHalf     float64
	TraversalHalf float64
	// LowDegree / HighDegree bound the bridge test: an edge counts toward
	// the bridge bonus when its source sits below LowDegree and its target
	// at or above HighDegree.
	LowDegree  int64
	HighDegree int64
	// SampleLimit caps the per-type endpoint sample so scoring never scans
	// the whole graph.
	SampleLimit int
}

// DefaultValueConfig returns the design defaults.
func DefaultValueConfig() ValueConfig {
	return ValueConfig{
		UsageWeight:     0.5,
		TraversalWeight: 0.3,
		BridgeWeight:    0.2,
		UsageHalf:       20,
		TraversalHalf:   50,
		LowDegree:       3,
		HighDegree:      10,
		SampleLimit:     50,
	}
}

// ValueScorer computes the composite structural value of a vocabulary type:
// higher means more valuable and more protected from pruning. Grounding is
// deliberately not an input; types describing contradicted or historical
// concepts are not penalized.
type ValueScorer struct {
	stats GraphStats
	cfg   ValueConfig
}

// NewValueScorer creates a ValueScorer.
func NewValueScorer(stats GraphStats, cfg ValueConfig) *ValueScorer {
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = DefaultValueConfig().SampleLimit
	}
	return &ValueScorer{stats: stats, cfg: cfg}
}

// Score returns the structural value of a type. Builtins always score
// BuiltinScore regardless of computed value.
func (s *ValueScorer) Score(ctx context.Context, vt domain.VocabularyType) (float64, error) {
	if vt.IsBuiltin {
		return BuiltinScore, nil
	}

	usage := float64(vt.UsageCount)
	if s.stats != nil {
		if n, err := s.stats.CountEdgesByType(ctx, vt.Name); err == nil && n >= 0 {
			usage = float64(n)
		}
	}

	var traversal float64
	if s.stats != nil {
		if n, err := s.stats.TraversalCount(ctx, vt.Name); err == nil {
			traversal = float64(n)
		}
	}

	bridge, err := s.bridgeBonus(ctx, vt.Name)
	if err != nil {
		return 0, err
	}

	score := s.cfg.UsageWeight*saturate(usage, s.cfg.UsageHalf) +
		s.cfg.TraversalWeight*saturate(traversal, s.cfg.TraversalHalf) +
		s.cfg.BridgeWeight*bridge
	return score, nil
}

// bridgeBonus is the fraction of sampled edges whose source has low overall
// connectivity while the target is well connected: the type is
// disproportionately responsible for reaching otherwise-isolated regions.
func (s *ValueScorer) bridgeBonus(ctx context.Context, typeName string) (float64, error) {
	if s.stats == nil {
		return 0, nil
	}
	pairs, err := s.stats.SampleEndpointDegrees(ctx, typeName, s.cfg.SampleLimit)
	if err != nil {
		return 0, err
	}
	if len(pairs) == 0 {
		return 0, nil
	}
	bridging := 0
	for _, p := range pairs {
		if p.SourceDegree < s.cfg.LowDegree && p.TargetDegree >= s.cfg.HighDegree {
			bridging++
		}
	}
	return float64(bridging) / float64(len(pairs)), nil
}

// saturate maps a non-negative count to [0, 1) with half-saturation at k.
func saturate(v, k float64) float64 {
	if v <= 0 || k <= 0 {
		return 0
	}
	return v / (v + k)
}
