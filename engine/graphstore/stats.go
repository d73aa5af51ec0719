package graphstore

import (
	"context"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
)

// CountEdgesByType returns the number of relationships of one type.
func (g *GraphStore) CountEdgesByType(ctx context.Context, typeName string) (int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r:` + sanitizeRelType(typeName) + `]->() RETURN count(r) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, nil
	}
	return intProp(recordMap(result.Record()), "count"), nil
}

// TraversalCount returns the accumulated query-traversal counter of a type.
func (g *GraphStore) TraversalCount(ctx context.Context, typeName string) (int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name})
		RETURN coalesce(n.traversal_count, 0) AS count`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": typeName})
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, nil
	}
	return intProp(recordMap(result.Record()), "count"), nil
}

// RecordTraversal bumps the traversal counter of a type. Called by read
// paths that follow edges of that type.
func (g *GraphStore) RecordTraversal(ctx context.Context, typeName string, delta int64) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name})
		SET n.traversal_count = coalesce(n.traversal_count, 0) + $delta`
	_, err := sess.Run(ctx, cypher, map[string]any{"name": typeName, "delta": delta})
	return err
}

// SampleEndpointDegrees returns endpoint degrees for up to limit edges of a
// type. The limit keeps bridge scoring bounded on hub-heavy graphs.
func (g *GraphStore) SampleEndpointDegrees(ctx context.Context, typeName string, limit int) ([]vocab.DegreePair, error) {
	if limit <= 0 {
		limit = 50
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (a)-[r:` + sanitizeRelType(typeName) + `]->(b)
		WITH a, b LIMIT $limit
		RETURN COUNT { (a)--() } AS source_degree, COUNT { (b)--() } AS target_degree`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var out []vocab.DegreePair
	for result.Next(ctx) {
		props := recordMap(result.Record())
		out = append(out, vocab.DegreePair{
			SourceDegree: intProp(props, "source_degree"),
			TargetDegree: intProp(props, "target_degree"),
		})
	}
	return out, nil
}

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}
