// Package vocab implements the relationship-type vocabulary lifecycle:
// discovery and normalization of LLM-proposed types, embedding-based
// categorization against protected seed types, synonym-cluster detection,
// and structural value scoring.
package vocab

import (
	"math"
	"strings"
)

// NormalizeTypeName converts an LLM-proposed relationship string into the
// canonical uppercase token form: trimmed, uppercased, runs of whitespace
// and dashes collapsed to a single underscore.
func NormalizeTypeName(proposed string) string {
	s := strings.TrimSpace(proposed)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// EmbedText frames a type name for embedding. All vocabulary embeddings are
// produced through this framing so cosine comparisons stay consistent.
func EmbedText(typeName string) string {
	return "relationship: " + strings.ToLower(strings.ReplaceAll(typeName, "_", " "))
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty or zero-length in magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
