package vocab

import (
	"context"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// Store is the persistence port for vocabulary-type records. All mutations go
// through the graph store's native transactional write path; this package
// introduces no lock manager of its own.
type Store interface {
	Get(ctx context.Context, name string) (domain.VocabularyType, error)
	List(ctx context.Context, activeOnly bool) ([]domain.VocabularyType, error)
	CountActive(ctx context.Context) (int, error)
	Create(ctx context.Context, vt domain.VocabularyType) error
	Update(ctx context.Context, vt domain.VocabularyType) error
	Delete(ctx context.Context, name string) error
}

// Embedder is the embedding port: text in, fixed-dimension vector out.
// Failures surface as typed errors, never as a silent zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is a similarity-index hit.
type Match struct {
	Name       string
	Similarity float64
}

// SimilarityIndex is the vector index over active vocabulary-type embeddings
// used for fuzzy matching during discovery.
type SimilarityIndex interface {
	Upsert(ctx context.Context, name string, vec []float32, active bool) error
	Nearest(ctx context.Context, vec []float32, k int, activeOnly bool) ([]Match, error)
	SetActive(ctx context.Context, name string, active bool) error
	Remove(ctx context.Context, name string) error
}

// GraphStats exposes the aggregate graph reads needed for structural value
// scoring. Degree sampling is bounded; implementations must not scan the
// whole graph.
type GraphStats interface {
	CountEdgesByType(ctx context.Context, typeName string) (int64, error)
	TraversalCount(ctx context.Context, typeName string) (int64, error)
	SampleEndpointDegrees(ctx context.Context, typeName string, limit int) ([]DegreePair, error)
}

// DegreePair holds the endpoint connectivity of one sampled edge.
type DegreePair struct {
	SourceDegree int64
	TargetDegree int64
}
