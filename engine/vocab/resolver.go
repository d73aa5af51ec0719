package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
)

// DefaultMatchThreshold is the design-default fuzzy-match similarity for
// resolving a proposed type to an existing one.
const DefaultMatchThreshold = 0.88

// ResolverConfig tunes discovery.
type ResolverConfig struct {
	// MatchThreshold is the minimum cosine similarity for a fuzzy match.
	MatchThreshold float64
	// HardMax blocks new-type creation outright once the active count
	// reaches it. Zero disables the check.
	HardMax int
}

// Resolver implements vocabulary discovery: it maps LLM-proposed relationship
// strings to canonical vocabulary types, creating and eagerly categorizing
// new types when nothing matches.
type Resolver struct {
	store    Store
	embedder Embedder
	index    SimilarityIndex
	cat      *Categorizer
	cfg      ResolverConfig
	log      *slog.Logger

	// OnDiscovered is invoked after a genuinely new type is created. Used by
	// callers to publish discovery events and bump counters.
	OnDiscovered func(ctx context.Context, vt domain.VocabularyType)
}

// NewResolver creates a Resolver.
func NewResolver(store Store, embedder Embedder, index SimilarityIndex, cat *Categorizer, cfg ResolverConfig, log *slog.Logger) *Resolver {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, embedder: embedder, index: index, cat: cat, cfg: cfg, log: log}
}

// Resolve normalizes the proposed string and returns the canonical type it
// maps to, creating a new type when nothing matches. An embedding outage
// degrades to exact-string matching and a placeholder categorization; it
// never aborts the surrounding ingestion.
func (r *Resolver) Resolve(ctx context.Context, proposed string) (domain.Resolution, error) {
	name := NormalizeTypeName(proposed)
	if err := domain.ValidateTypeName(name); err != nil {
		return domain.Resolution{}, err
	}

	// Exact match first: cheapest, and the fallback when embeddings are down.
	existing, err := r.store.Get(ctx, name)
	if err == nil {
		return r.resolveExisting(ctx, existing)
	}
	if !errors.Is(err, domain.ErrTypeNotFound) {
		return domain.Resolution{}, fmt.Errorf("vocab: lookup %s: %w", name, err)
	}

	vec, embedErr := r.embedder.Embed(ctx, EmbedText(name))
	if embedErr != nil {
		r.log.Warn("vocab: embedding failed, falling back to exact match only",
			"type", name, "error", embedErr)
		return r.createType(ctx, name, nil, PlaceholderAssignment())
	}

	if match, ok, err := r.fuzzyMatch(ctx, vec); err != nil {
		return domain.Resolution{}, err
	} else if ok {
		return domain.Resolution{CanonicalType: match.Name, Similarity: match.Similarity}, nil
	}

	return r.createType(ctx, name, vec, r.cat.Categorize(vec))
}

// resolveExisting follows synonym pointers from archived members to their
// canonical type.
func (r *Resolver) resolveExisting(ctx context.Context, vt domain.VocabularyType) (domain.Resolution, error) {
	for hops := 0; vt.MergedInto != "" && hops < 8; hops++ {
		next, err := r.store.Get(ctx, vt.MergedInto)
		if err != nil {
			return domain.Resolution{}, fmt.Errorf("vocab: follow synonym %s -> %s: %w", vt.Name, vt.MergedInto, err)
		}
		vt = next
	}
	if !vt.IsActive {
		return domain.Resolution{}, fmt.Errorf("vocab: %s: %w", vt.Name, domain.ErrTypeInactive)
	}
	return domain.Resolution{CanonicalType: vt.Name}, nil
}

func (r *Resolver) fuzzyMatch(ctx context.Context, vec []float32) (Match, bool, error) {
	if r.index == nil {
		return Match{}, false, nil
	}
	hits, err := r.index.Nearest(ctx, vec, 1, true)
	if err != nil {
		r.log.Warn("vocab: similarity search failed", "error", err)
		return Match{}, false, nil
	}
	if len(hits) > 0 && hits[0].Similarity >= r.cfg.MatchThreshold {
		return hits[0], true, nil
	}
	return Match{}, false, nil
}

func (r *Resolver) createType(ctx context.Context, name string, vec []float32, asg Assignment) (domain.Resolution, error) {
	if r.cfg.HardMax > 0 {
		active, err := r.store.CountActive(ctx)
		if err != nil {
			return domain.Resolution{}, fmt.Errorf("vocab: count active: %w", err)
		}
		if active >= r.cfg.HardMax {
			return domain.Resolution{}, fmt.Errorf("vocab: %d active types at hard max %d: %w",
				active, r.cfg.HardMax, domain.ErrVocabularyFull)
		}
	}

	vt := domain.VocabularyType{
		Name:               name,
		Category:           asg.Category,
		CategorySource:     domain.CategorySourceComputed,
		CategoryConfidence: asg.Confidence,
		CategoryScores:     asg.Scores,
		Embedding:          vec,
		Polarity:           asg.Polarity,
		IsActive:           true,
	}
	if err := r.store.Create(ctx, vt); err != nil {
		// Lost a creation race: resolve to the winner.
		if errors.Is(err, domain.ErrTypeExists) {
			if existing, getErr := r.store.Get(ctx, name); getErr == nil {
				return r.resolveExisting(ctx, existing)
			}
		}
		return domain.Resolution{}, fmt.Errorf("vocab: create %s: %w", name, err)
	}

	if len(vec) > 0 && r.index != nil {
		if err := r.index.Upsert(ctx, name, vec, true); err != nil {
			r.log.Warn("vocab: index upsert failed", "type", name, "error", err)
		}
	}

	if asg.Band() == "low" {
		r.log.Warn("vocab: low-confidence categorization",
			"type", name, "category", asg.Category, "confidence", asg.Confidence)
	} else {
		r.log.Info("vocab: discovered type",
			"type", name, "category", asg.Category,
			"confidence", asg.Confidence, "ambiguous", asg.Ambiguous)
	}
	if r.OnDiscovered != nil {
		r.OnDiscovered(ctx, vt)
	}
	return domain.Resolution{CanonicalType: name, IsNew: true}, nil
}
