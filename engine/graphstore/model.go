package graphstore

import (
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// Node labels and the per-category score property prefix.
const (
	labelVocabularyType = "VocabularyType"
	labelConcept        = "Concept"
	scorePrefix         = "score_"
)

func vocabToMap(vt domain.VocabularyType) map[string]any {
	m := map[string]any{
		"name":                vt.Name,
		"category":            string(vt.Category),
		"category_source":     string(vt.CategorySource),
		"category_confidence": vt.CategoryConfidence,
		"polarity":            vt.Polarity,
		"is_builtin":          vt.IsBuiltin,
		"is_active":           vt.IsActive,
		"usage_count":         vt.UsageCount,
		"merged_into":         vt.MergedInto,
	}
	if len(vt.Synonyms) > 0 {
		m["synonyms"] = toAnySlice(vt.Synonyms)
	}
	if len(vt.Embedding) > 0 {
		vec := make([]any, len(vt.Embedding))
		for i, v := range vt.Embedding {
			vec[i] = float64(v)
		}
		m["embedding"] = vec
	}
	for cat, score := range vt.CategoryScores {
		m[scorePrefix+string(cat)] = score
	}
	return m
}

func vocabFromProps(props map[string]any) domain.VocabularyType {
	vt := domain.VocabularyType{
		Name:               strProp(props, "name"),
		Category:           domain.Category(strProp(props, "category")),
		CategorySource:     domain.CategorySource(strProp(props, "category_source")),
		CategoryConfidence: floatProp(props, "category_confidence"),
		Polarity:           floatProp(props, "polarity"),
		IsBuiltin:          boolProp(props, "is_builtin"),
		IsActive:           boolProp(props, "is_active"),
		UsageCount:         intProp(props, "usage_count"),
		MergedInto:         strProp(props, "merged_into"),
	}
	if raw, ok := props["synonyms"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				vt.Synonyms = append(vt.Synonyms, s)
			}
		}
	}
	if raw, ok := props["embedding"].([]any); ok {
		vt.Embedding = make([]float32, 0, len(raw))
		for _, v := range raw {
			if f, ok := v.(float64); ok {
				vt.Embedding = append(vt.Embedding, float32(f))
			}
		}
	}
	for k, v := range props {
		if !strings.HasPrefix(k, scorePrefix) {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			continue
		}
		if vt.CategoryScores == nil {
			vt.CategoryScores = make(map[domain.Category]float64)
		}
		vt.CategoryScores[domain.Category(k[len(scorePrefix):])] = f
	}
	return vt
}

func vocabFromRecord(rec *neo4j.Record) (domain.VocabularyType, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.VocabularyType{}, err
	}
	return vocabFromProps(node.Props), nil
}

func edgeFromRecord(rec *neo4j.Record) domain.ConceptEdge {
	props := recordMap(rec)
	return domain.ConceptEdge{
		ID:         strProp(props, "id"),
		SourceID:   strProp(props, "source_id"),
		TargetID:   strProp(props, "target_id"),
		Type:       strProp(props, "type"),
		Confidence: floatProp(props, "confidence"),
		Evidence:   int(intProp(props, "evidence")),
		Document:   strProp(props, "document"),
	}
}

func recordMap(rec *neo4j.Record) map[string]any {
	m := make(map[string]any, len(rec.Keys))
	for i, k := range rec.Keys {
		if i < len(rec.Values) {
			m[k] = rec.Values[i]
		}
	}
	return m
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// sanitizeRelType keeps relationship types valid Cypher identifiers.
// Vocabulary names are validated upstream; this is the storage-side
// backstop against interpolating arbitrary text into a query.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
