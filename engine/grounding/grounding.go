// Package grounding computes a concept's epistemic standing from the shape
// of its evidence graph: a signed grounding value, a saturating measurement
// confidence, and the combined status label. Everything here is a pure
// function over current graph reads; results are recomputed per query and
// never cached as truth.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// EdgeSource is the graph read port: all typed edges touching a concept.
type EdgeSource interface {
	ConceptEdges(ctx context.Context, conceptID string) ([]domain.ConceptEdge, error)
}

// PolarityFunc maps a relationship type name to its evidential-axis sign in
// [-1, 1]. Types with no clear pole return 0.
type PolarityFunc func(ctx context.Context, typeName string) float64

// Config tunes the confidence composite and the saturating transforms.
type Config struct {
	// HalfSaturation is the Michaelis-Menten constant k in c/(c+k) for the
	// confidence transform. The derivative is highest at zero: the first
	// piece of evidence is the biggest jump.
	HalfSaturation float64
	// GroundingHalfSaturation is k for the signed grounding saturation used
	// in the authenticated-diversity composite.
	GroundingHalfSaturation float64
	// Composite weights, in count units.
	EdgeWeight     float64
	SourceWeight   float64
	EvidenceWeight float64
	DiversityBoost float64
}

// DefaultConfig returns the design defaults.
func DefaultConfig() Config {
	return Config{
		HalfSaturation:          2.0,
		GroundingHalfSaturation: 0.25,
		EdgeWeight:              0.5,
		SourceWeight:            0.75,
		EvidenceWeight:          0.25,
		DiversityBoost:          1.0,
	}
}

// Service evaluates concepts. It is stateless and safe for concurrent use by
// many readers: it only reads graph data and does in-memory arithmetic.
type Service struct {
	edges    EdgeSource
	polarity PolarityFunc
	cfg      Config
	log      *slog.Logger
}

// NewService creates a grounding Service.
func NewService(edges EdgeSource, polarity PolarityFunc, cfg Config, log *slog.Logger) *Service {
	if cfg.HalfSaturation <= 0 {
		cfg.HalfSaturation = DefaultConfig().HalfSaturation
	}
	if cfg.GroundingHalfSaturation <= 0 {
		cfg.GroundingHalfSaturation = DefaultConfig().GroundingHalfSaturation
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{edges: edges, polarity: polarity, cfg: cfg, log: log}
}

// Evaluate computes the full grounding result for a concept from its current
// edges.
func (s *Service) Evaluate(ctx context.Context, conceptID string) (domain.GroundingResult, error) {
	edges, err := s.edges.ConceptEdges(ctx, conceptID)
	if err != nil {
		return domain.GroundingResult{}, fmt.Errorf("grounding: edges for %s: %w", conceptID, err)
	}

	g := s.grounding(ctx, edges)
	conf, diversity := s.confidence(edges)
	res := domain.GroundingResult{
		ConceptID:              conceptID,
		Grounding:              g,
		Confidence:             conf,
		Status:                 Classify(g, conf),
		SampleSize:             len(edges),
		Diversity:              diversity,
		AuthenticatedDiversity: s.AuthenticatedDiversity(g, diversity),
	}
	return res, nil
}

// grounding projects every edge onto the polarity axis and returns the
// confidence-weighted net lean, normalized by total edge weight and clamped
// to [-1, 1]. A concept with zero edges grounds at exactly 0. Polarity is
// resolved once per distinct type, not per edge: a hub concept repeats a
// handful of types across hundreds of edges, and each resolution may be a
// graph read.
func (s *Service) grounding(ctx context.Context, edges []domain.ConceptEdge) float64 {
	var signed, total float64
	signs := make(map[string]float64)
	for _, e := range edges {
		w := e.Confidence
		if w <= 0 {
			continue
		}
		total += w
		if s.polarity == nil {
			continue
		}
		sign, ok := signs[e.Type]
		if !ok {
			sign = s.polarity(ctx, e.Type)
			signs[e.Type] = sign
		}
		signed += w * sign
	}
	if total == 0 {
		return 0
	}
	return clamp(signed/total, -1, 1)
}

// confidence computes the evidence-richness composite and passes it through
// the saturating transform. The result approaches but never reaches 1: no
// concept gets absolute certainty, and a concept cited five thousand times
// is only better-measured than one cited fifty times, not more true.
func (s *Service) confidence(edges []domain.ConceptEdge) (conf, diversity float64) {
	if len(edges) == 0 {
		return 0, 0
	}

	docs := make(map[string]struct{})
	types := make(map[string]struct{})
	evidence := 0
	for _, e := range edges {
		if e.Document != "" {
			docs[e.Document] = struct{}{}
		}
		types[e.Type] = struct{}{}
		evidence += e.Evidence
	}
	diversity = float64(len(types)) / float64(len(edges))

	composite := s.cfg.EdgeWeight*float64(len(edges)) +
		s.cfg.SourceWeight*float64(len(docs)) +
		s.cfg.EvidenceWeight*float64(evidence) +
		s.cfg.DiversityBoost*diversity
	return composite / (composite + s.cfg.HalfSaturation), diversity
}

// AuthenticatedDiversity applies the saturating transform to grounding
// itself, symmetric around zero, before multiplying by diversity: near-zero
// grounding is noise and must contribute near-zero instead of flipping sign
// on floating-point jitter.
func (s *Service) AuthenticatedDiversity(grounding, diversity float64) float64 {
	mag := math.Abs(grounding)
	sat := mag / (mag + s.cfg.GroundingHalfSaturation)
	if grounding < 0 {
		sat = -sat
	}
	return sat * diversity
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
