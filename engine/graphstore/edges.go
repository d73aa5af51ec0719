package graphstore

import (
	"context"
	"fmt"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// SaveEdge records a typed relationship between two concepts, creating the
// concept nodes on first sight. Recording the same (source, type, target)
// again accumulates evidence and keeps the highest confidence seen.
func (g *GraphStore) SaveEdge(ctx context.Context, e domain.ConceptEdge) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (a:` + labelConcept + ` {id: $source})
		MERGE (b:` + labelConcept + ` {id: $target})
		MERGE (a)-[r:` + sanitizeRelType(e.Type) + `]->(b)
		ON CREATE SET r.id = $id, r.confidence = $confidence, r.evidence = $evidence, r.document = $document
		ON MATCH SET r.evidence = coalesce(r.evidence, 0) + $evidence,
			r.confidence = CASE WHEN $confidence > r.confidence THEN $confidence ELSE r.confidence END`
	evidence := e.Evidence
	if evidence <= 0 {
		evidence = 1
	}
	_, err := sess.Run(ctx, cypher, map[string]any{
		"source":     e.SourceID,
		"target":     e.TargetID,
		"id":         e.ID,
		"confidence": e.Confidence,
		"evidence":   int64(evidence),
		"document":   e.Document,
	})
	return err
}

// ConceptEdges returns every relationship touching a concept, in either
// direction. Grounding reads all of them; filtering by sign happens in the
// evaluator, not here.
func (g *GraphStore) ConceptEdges(ctx context.Context, conceptID string) ([]domain.ConceptEdge, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (c:` + labelConcept + ` {id: $id})-[r]-(o:` + labelConcept + `)
		RETURN r.id AS id,
			startNode(r).id AS source_id,
			endNode(r).id AS target_id,
			type(r) AS type,
			coalesce(r.confidence, 0.0) AS confidence,
			coalesce(r.evidence, 1) AS evidence,
			coalesce(r.document, '') AS document`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": conceptID})
	if err != nil {
		return nil, err
	}
	var out []domain.ConceptEdge
	for result.Next(ctx) {
		out = append(out, edgeFromRecord(result.Record()))
	}
	return out, nil
}

// MergeTypes retypes every member relationship to the canonical type and
// writes both updated vocabulary records, all in one write transaction.
// Neo4j cannot rename a relationship type in place, so each edge is recreated
// and the original deleted. Because the edge rewrite and the usage transfer
// commit together, a failed merge leaves both records untouched and a retry
// starts over from unchanged counts. Returns the number of edges moved.
func (g *GraphStore) MergeTypes(ctx context.Context, member, canonical domain.VocabularyType) (int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	var moved int64
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		rewrite := `MATCH (a)-[r:` + sanitizeRelType(member.Name) + `]->(b)
			CREATE (a)-[r2:` + sanitizeRelType(canonical.Name) + `]->(b)
			SET r2 = properties(r)
			DELETE r
			RETURN count(r2) AS moved`
		result, err := tx.Run(ctx, rewrite, nil)
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			moved = intProp(recordMap(result.Record()), "moved")
		}
		update := `MATCH (n:` + labelVocabularyType + ` {name: $name}) SET n = $props RETURN n.name AS name`
		for _, vt := range []domain.VocabularyType{canonical, member} {
			res, err := tx.Run(ctx, update, map[string]any{
				"name":  vt.Name,
				"props": vocabToMap(vt),
			})
			if err != nil {
				return nil, err
			}
			if !res.Next(ctx) {
				return nil, fmt.Errorf("vocabulary type %s: %w", vt.Name, domain.ErrTypeNotFound)
			}
		}
		return nil, nil
	})
	return moved, err
}
