package vocab

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// Seed is a protected builtin vocabulary type used as a reference point for
// categorizing new types. Polarity marks the evidential axis: supporting
// seeds are positive, contradicting seeds negative, everything else zero.
type Seed struct {
	Name     string
	Category domain.Category
	Polarity float64
}

// seedTable is the single configuration table mapping categories to their
// protected seeds. Categories deliberately contain seeds of opposite meaning
// (ENABLES and PREVENTS are both causal); the categorizer scores by max
// similarity, not mean, so opposite poles do not wash each other out.
var seedTable = []Seed{
	{Name: "CAUSES", Category: domain.CategoryCausal},
	{Name: "ENABLES", Category: domain.CategoryCausal},
	{Name: "PREVENTS", Category: domain.CategoryCausal},
	{Name: "INFLUENCES", Category: domain.CategoryCausal},

	{Name: "SUPPORTS", Category: domain.CategoryEvidential, Polarity: 1},
	{Name: "VALIDATES", Category: domain.CategoryEvidential, Polarity: 1},
	{Name: "CONTRADICTS", Category: domain.CategoryEvidential, Polarity: -1},
	{Name: "REFUTES", Category: domain.CategoryEvidential, Polarity: -1},

	{Name: "PART_OF", Category: domain.CategoryStructural},
	{Name: "CONTAINS", Category: domain.CategoryStructural},
	{Name: "COMPOSED_OF", Category: domain.CategoryStructural},

	{Name: "IS_A", Category: domain.CategoryTaxonomic},
	{Name: "INSTANCE_OF", Category: domain.CategoryTaxonomic},
	{Name: "SUBTYPE_OF", Category: domain.CategoryTaxonomic},

	{Name: "PRECEDES", Category: domain.CategoryTemporal},
	{Name: "FOLLOWS", Category: domain.CategoryTemporal},
	{Name: "CONCURRENT_WITH", Category: domain.CategoryTemporal},

	{Name: "USED_FOR", Category: domain.CategoryFunctional},
	{Name: "PRODUCES", Category: domain.CategoryFunctional},
	{Name: "REQUIRES", Category: domain.CategoryFunctional},
	{Name: "DEPENDS_ON", Category: domain.CategoryFunctional},

	{Name: "SIMILAR_TO", Category: domain.CategorySimilarity},
	{Name: "ANALOGOUS_TO", Category: domain.CategorySimilarity},
	{Name: "CONTRASTS_WITH", Category: domain.CategorySimilarity},

	{Name: "DEFINED_AS", Category: domain.CategoryDefinitional},
	{Name: "EXEMPLIFIES", Category: domain.CategoryDefinitional},

	{Name: "HAS_PROPERTY", Category: domain.CategoryAttributive},
	{Name: "CHARACTERIZED_BY", Category: domain.CategoryAttributive},

	{Name: "DERIVED_FROM", Category: domain.CategoryDerivational},
	{Name: "EVOLVED_INTO", Category: domain.CategoryDerivational},
}

// Seeds returns the full protected seed table.
func Seeds() []Seed {
	out := make([]Seed, len(seedTable))
	copy(out, seedTable)
	return out
}

// SeedNames returns the names of all protected seeds.
func SeedNames() []string {
	out := make([]string, len(seedTable))
	for i, s := range seedTable {
		out[i] = s.Name
	}
	return out
}

// IsSeed reports whether name is a protected seed type.
func IsSeed(name string) bool {
	for _, s := range seedTable {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Bootstrap ensures every seed exists as an active builtin vocabulary type
// with an embedding, creating or back-filling records idempotently. Seeds
// that cannot be embedded are created without one and logged; the
// categorizer skips them until a later bootstrap repairs them.
func Bootstrap(ctx context.Context, store Store, embedder Embedder, index SimilarityIndex, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	for _, seed := range seedTable {
		existing, err := store.Get(ctx, seed.Name)
		switch {
		case err == nil && len(existing.Embedding) > 0:
			continue
		case err != nil && !errors.Is(err, domain.ErrTypeNotFound):
			return err
		}

		vt := domain.VocabularyType{
			Name:               seed.Name,
			Category:           seed.Category,
			CategorySource:     domain.CategorySourceBuiltin,
			CategoryConfidence: 1.0,
			Polarity:           seed.Polarity,
			IsBuiltin:          true,
			IsActive:           true,
		}
		if err == nil {
			vt = existing
		}

		vec, embedErr := embedder.Embed(ctx, EmbedText(seed.Name))
		if embedErr != nil {
			log.Warn("seed bootstrap: embedding failed", "seed", seed.Name, "error", embedErr)
		} else {
			vt.Embedding = vec
		}

		if errors.Is(err, domain.ErrTypeNotFound) {
			if err := store.Create(ctx, vt); err != nil {
				return err
			}
		} else if err := store.Update(ctx, vt); err != nil {
			return err
		}

		if len(vt.Embedding) > 0 && index != nil {
			if err := index.Upsert(ctx, vt.Name, vt.Embedding, true); err != nil {
				log.Warn("seed bootstrap: index upsert failed", "seed", seed.Name, "error", err)
			}
		}
	}
	return nil
}
