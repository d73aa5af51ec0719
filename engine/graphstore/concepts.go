package graphstore

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/repo"
)

// Concept is a knowledge-graph node that typed edges connect. The graph is
// the system of record; this struct is the read/write projection used by the
// CRUD repository.
type Concept struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Document       string `json:"document,omitempty"`
	TraversalCount int64  `json:"traversal_count"`
}

func conceptToMap(c Concept) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"name":            c.Name,
		"description":     c.Description,
		"document":        c.Document,
		"traversal_count": c.TraversalCount,
	}
}

func conceptFromRecord(rec *neo4j.Record) (Concept, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Concept{}, err
	}
	props := node.Props
	return Concept{
		ID:             strProp(props, "id"),
		Name:           strProp(props, "name"),
		Description:    strProp(props, "description"),
		Document:       strProp(props, "document"),
		TraversalCount: intProp(props, "traversal_count"),
	}, nil
}

// NewConceptRepo returns a generic CRUD repository over Concept nodes, keyed
// by the id property.
func NewConceptRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Concept, string] {
	return repo.NewNeo4jRepo[Concept, string](
		driver,
		labelConcept,
		conceptToMap,
		conceptFromRecord,
	)
}
