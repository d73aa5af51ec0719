package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// GraphStore provides vocabulary and concept-edge operations over Neo4j.
type GraphStore struct {
	opener SessionOpener
}

// New creates a GraphStore backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{opener: &driverOpener{driver: driver}}
}

// NewWithOpener creates a GraphStore with a custom session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// Get returns one vocabulary-type record by name.
func (g *GraphStore) Get(ctx context.Context, name string) (domain.VocabularyType, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": name})
	if err != nil {
		return domain.VocabularyType{}, err
	}
	if !result.Next(ctx) {
		return domain.VocabularyType{}, fmt.Errorf("vocabulary type %s: %w", name, domain.ErrTypeNotFound)
	}
	return vocabFromRecord(result.Record())
}

// List returns vocabulary-type records, optionally restricted to active ones,
// ordered by name for deterministic iteration.
func (g *GraphStore) List(ctx context.Context, activeOnly bool) ([]domain.VocabularyType, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + `) RETURN n ORDER BY n.name`
	if activeOnly {
		cypher = `MATCH (n:` + labelVocabularyType + ` {is_active: true}) RETURN n ORDER BY n.name`
	}
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var out []domain.VocabularyType
	for result.Next(ctx) {
		vt, err := vocabFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

// CountActive returns the number of active vocabulary types.
func (g *GraphStore) CountActive(ctx context.Context) (int, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {is_active: true}) RETURN count(n) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, nil
	}
	props := recordMap(result.Record())
	return int(intProp(props, "count")), nil
}

// Create inserts a new vocabulary-type record. The existence check and the
// insert run in one write transaction so concurrent discovery of the same
// name surfaces as ErrTypeExists rather than a duplicate node.
func (g *GraphStore) Create(ctx context.Context, vt domain.VocabularyType) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		check := `MATCH (n:` + labelVocabularyType + ` {name: $name}) RETURN n.name AS name`
		result, err := tx.Run(ctx, check, map[string]any{"name": vt.Name})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			return nil, fmt.Errorf("vocabulary type %s: %w", vt.Name, domain.ErrTypeExists)
		}
		create := `CREATE (n:` + labelVocabularyType + `) SET n = $props`
		_, err = tx.Run(ctx, create, map[string]any{"props": vocabToMap(vt)})
		return nil, err
	})
	return err
}

// Update overwrites the stored record with vt.
func (g *GraphStore) Update(ctx context.Context, vt domain.VocabularyType) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name}) SET n = $props RETURN n.name AS name`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"name":  vt.Name,
		"props": vocabToMap(vt),
	})
	if err != nil {
		return err
	}
	if !result.Next(ctx) {
		return fmt.Errorf("vocabulary type %s: %w", vt.Name, domain.ErrTypeNotFound)
	}
	return nil
}

// Delete removes a vocabulary-type record.
func (g *GraphStore) Delete(ctx context.Context, name string) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name}) DELETE n`
	_, err := sess.Run(ctx, cypher, map[string]any{"name": name})
	return err
}

// IncrementUsage bumps the usage counter of a type by delta.
func (g *GraphStore) IncrementUsage(ctx context.Context, name string, delta int64) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:` + labelVocabularyType + ` {name: $name})
		SET n.usage_count = coalesce(n.usage_count, 0) + $delta`
	_, err := sess.Run(ctx, cypher, map[string]any{"name": name, "delta": delta})
	return err
}
