// Package domain defines core domain types, constants, and validation for the
// knowledge-graph vocabulary and grounding engines. It acts as the validation
// gate at pipeline entry points.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of semantic buckets a relationship type can
// belong to. The set is extensible only through protected seed types, never
// at runtime.
type Category string

const (
	CategoryCausal       Category = "causal"
	CategoryEvidential   Category = "evidential"
	CategoryStructural   Category = "structural"
	CategoryTaxonomic    Category = "taxonomic"
	CategoryTemporal     Category = "temporal"
	CategoryFunctional   Category = "functional"
	CategorySimilarity   Category = "similarity"
	CategoryDefinitional Category = "definitional"
	CategoryAttributive  Category = "attributive"
	CategoryDerivational Category = "derivational"
)

// Categories lists every known category in stable order.
func Categories() []Category {
	return []Category{
		CategoryCausal, CategoryEvidential, CategoryStructural,
		CategoryTaxonomic, CategoryTemporal, CategoryFunctional,
		CategorySimilarity, CategoryDefinitional, CategoryAttributive,
		CategoryDerivational,
	}
}

// CategorySource records how a type's category was assigned.
type CategorySource string

const (
	CategorySourceBuiltin  CategorySource = "builtin"
	CategorySourceComputed CategorySource = "computed"
)

// VocabularyType is a named relationship-type definition with category and
// lifecycle metadata. Name is the unique key, normalized to an uppercase
// token.
type VocabularyType struct {
	Name               string               `json:"name"`
	Category           Category             `json:"category"`
	CategorySource     CategorySource       `json:"category_source"`
	CategoryConfidence float64              `json:"category_confidence"`
	CategoryScores     map[Category]float64 `json:"category_scores,omitempty"`
	Embedding          []float32            `json:"embedding,omitempty"`
	// Polarity is the evidential-axis sign in [-1, 1] inherited from the
	// nearest signed seed at categorization time. Zero means no clear pole.
	Polarity   float64  `json:"polarity"`
	IsBuiltin  bool     `json:"is_builtin"`
	IsActive   bool     `json:"is_active"`
	UsageCount int64    `json:"usage_count"`
	Synonyms   []string `json:"synonyms,omitempty"`
	// MergedInto names the canonical type this record was archived under,
	// empty for live types. Resolution follows the pointer.
	MergedInto string `json:"merged_into,omitempty"`
}

// ConceptEdge is the read-only edge projection consumed by the grounding
// engine. Confidence is author-time (LLM-assigned) and immutable; it is
// distinct from the measurement confidence computed from the evidence graph.
type ConceptEdge struct {
	ID         string  `json:"id"`
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	// Evidence counts the distinct text instances backing this edge.
	Evidence int `json:"evidence,omitempty"`
	// Document identifies the originating source document.
	Document string `json:"document,omitempty"`
}

// EpistemicStatus is the human-readable label produced by the classifier.
type EpistemicStatus string

const (
	StatusWellSupported EpistemicStatus = "well-supported"
	StatusSupported     EpistemicStatus = "supported"
	StatusTentative     EpistemicStatus = "tentative"
	StatusContradicted  EpistemicStatus = "contradicted"
	StatusDisputed      EpistemicStatus = "disputed"
	StatusQuestioned    EpistemicStatus = "questioned"
	StatusContested     EpistemicStatus = "contested"
	StatusUnclear       EpistemicStatus = "unclear"
	StatusUnexplored    EpistemicStatus = "unexplored"
)

// GroundingResult is computed fresh per query from current edge data. It is
// never persisted as ground truth; recomputation after new edges arrive is
// expected to change it.
type GroundingResult struct {
	ConceptID  string          `json:"concept_id"`
	Grounding  float64         `json:"grounding"`
	Confidence float64         `json:"confidence"`
	Status     EpistemicStatus `json:"status"`
	SampleSize int             `json:"sample_size"`
	Diversity  float64         `json:"diversity"`
	// AuthenticatedDiversity combines saturated grounding with semantic
	// diversity so near-zero grounding contributes near-zero signal.
	AuthenticatedDiversity float64 `json:"authenticated_diversity"`
}

// MergeAction is the recommended handling of a non-canonical cluster member.
type MergeAction string

const (
	ActionMerge      MergeAction = "merge"
	ActionDeactivate MergeAction = "deactivate"
	ActionDelete     MergeAction = "delete"
)

// MergeRecommendation is produced per consolidation run for every
// non-canonical cluster member.
type MergeRecommendation struct {
	MemberType     string      `json:"member_type"`
	CanonicalType  string      `json:"canonical_type"`
	Similarity     float64     `json:"similarity"`
	MemberValue    float64     `json:"value_score_member"`
	CanonicalValue float64     `json:"value_score_canonical"`
	Action         MergeAction `json:"action"`
	// AutoApply is set when the recommendation clears the auto-execute bar;
	// everything else is queued for human review.
	AutoApply bool `json:"auto_apply"`
}

// Cluster is a group of near-duplicate vocabulary types with a chosen
// canonical representative.
type Cluster struct {
	Canonical       string                `json:"canonical"`
	Members         []string              `json:"members"`
	Recommendations []MergeRecommendation `json:"recommendations"`
}

// JobStatus is the lifecycle state of a consolidation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ConsolidationJob is the sole durable artifact of a consolidation run. It is
// owned exclusively by the job runner and destroyed on explicit deletion.
type ConsolidationJob struct {
	ID          uuid.UUID            `json:"job_id"`
	Status      JobStatus            `json:"status"`
	Progress    int                  `json:"progress"`
	DryRun      bool                 `json:"dry_run"`
	Result      *ConsolidationReport `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
	SubmittedAt time.Time            `json:"submitted_at"`
	StartedAt   time.Time            `json:"started_at,omitempty"`
	FinishedAt  time.Time            `json:"finished_at,omitempty"`
}

// ConsolidationReport is the structured final report of a run. The Merged,
// Deactivated and Deleted counters tally applied mutations only, so a dry run
// reports all three as zero; its plan is carried by Applied and PendingReview.
type ConsolidationReport struct {
	ActiveBefore  int                   `json:"active_before"`
	ActiveAfter   int                   `json:"active_after"`
	Merged        int                   `json:"merged"`
	Deactivated   int                   `json:"deactivated"`
	Deleted       int                   `json:"deleted"`
	Batches       int                   `json:"batches"`
	Applied       []MergeRecommendation `json:"applied,omitempty"`
	PendingReview []MergeRecommendation `json:"pending_review,omitempty"`
}

// Resolution is the outcome of resolving an LLM-proposed type string against
// the vocabulary.
type Resolution struct {
	CanonicalType string  `json:"canonical_type"`
	IsNew         bool    `json:"is_new"`
	Similarity    float64 `json:"similarity,omitempty"`
}
