package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// EdgeSubmission is an extraction-produced edge proposal as it arrives on
// the wire: concept endpoints, a free-form relationship type string, and the
// extractor's confidence.
type EdgeSubmission struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Evidence   int     `json:"evidence,omitempty"`
	Document   string  `json:"document,omitempty"`
}

// RecordedEdge is the pipeline output: the stored edge plus how its type
// resolved against the vocabulary.
type RecordedEdge struct {
	EdgeID     string  `json:"edge_id"`
	Type       string  `json:"type"`
	IsNew      bool    `json:"is_new"`
	Similarity float64 `json:"similarity,omitempty"`
}

// resolvedEdge carries a submission between the resolve and store stages.
type resolvedEdge struct {
	sub EdgeSubmission
	res domain.Resolution
}

// EdgeID derives a stable edge identifier so re-submitting the same edge
// merges instead of duplicating.
func EdgeID(sourceID, typeName, targetID string) string {
	key := fmt.Sprintf("%s|%s|%s", sourceID, typeName, targetID)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
