// Package consolidate implements vocabulary consolidation: merging synonym
// clusters and pruning low-value types to keep the vocabulary inside its
// size window. Consolidation is the only mutating, long-running operation in
// the core and always runs off the request-handling path.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/time/rate"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
)

// TypeMerger is the merge write port: retype every member edge and persist
// both updated vocabulary records in one graph transaction. Atomicity here is
// what keeps retried merges from transferring the member's usage twice.
type TypeMerger interface {
	MergeTypes(ctx context.Context, member, canonical domain.VocabularyType) (int64, error)
}

// Config is the vocabulary window, injected at construction so deployments
// can tune it without code changes.
type Config struct {
	// Min is the floor the vocabulary never shrinks below. It can never be
	// lower than the builtin count; builtins are structurally protected.
	Min int
	// SoftMax triggers pruning when the active count exceeds it.
	SoftMax int
	// HardMax blocks discovery; enforced by the resolver, carried here for
	// reporting.
	HardMax int
	// BatchSize bounds how many merges or prunes are applied between
	// cancellation checks. A batch is the transaction and cancellation
	// boundary.
	BatchSize int
}

// DefaultConfig returns a small deployment window.
func DefaultConfig() Config {
	return Config{Min: 30, SoftMax: 120, HardMax: 200, BatchSize: 10}
}

// RunParams are the per-run knobs of a consolidation.
type RunParams struct {
	DryRun bool `json:"dry_run"`
	// TargetSize overrides SoftMax as the prune target when positive.
	TargetSize int `json:"target_size,omitempty"`
	// BatchSize overrides Config.BatchSize when positive.
	BatchSize int `json:"batch_size,omitempty"`
}

// Controller orchestrates one consolidation pass: cluster detection, merges
// above the auto-execute bar, then size-based pruning over the post-merge
// counts. Every pass is reproducible from current data: embeddings, usage
// and edge counts, never wall-clock timestamps.
type Controller struct {
	store    vocab.Store
	merger   TypeMerger
	detector *vocab.Detector
	scorer   *vocab.ValueScorer
	index    vocab.SimilarityIndex
	cfg      Config
	log      *slog.Logger

	// Throttle, when set, is awaited between batches to bound load on the
	// shared graph store.
	Throttle *rate.Limiter
}

// NewController creates a Controller.
func NewController(store vocab.Store, merger TypeMerger, detector *vocab.Detector, scorer *vocab.ValueScorer, index vocab.SimilarityIndex, cfg Config, log *slog.Logger) *Controller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		store: store, merger: merger, detector: detector,
		scorer: scorer, index: index, cfg: cfg, log: log,
	}
}

// Clusters computes the current synonym clusters without mutating anything.
func (c *Controller) Clusters(ctx context.Context) ([]domain.Cluster, error) {
	active, err := c.store.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("consolidate: list active: %w", err)
	}
	return c.detector.FindClusters(active, c.valueFunc(ctx, active)), nil
}

// Recommendations flattens current clusters into merge recommendations.
func (c *Controller) Recommendations(ctx context.Context) ([]domain.MergeRecommendation, error) {
	clusters, err := c.Clusters(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.MergeRecommendation
	for _, cl := range clusters {
		out = append(out, cl.Recommendations...)
	}
	return out, nil
}

// Run executes one consolidation pass. Merges are applied before pruning so
// prune decisions see post-merge usage counts. The returned report is
// populated even when the run stops early; the error then says why.
// Cancellation is observed between batches only, so a cancelled run is
// partially complete but never mid-merge inconsistent.
func (c *Controller) Run(ctx context.Context, params RunParams, progress func(int)) (*domain.ConsolidationReport, error) {
	if progress == nil {
		progress = func(int) {}
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = c.cfg.BatchSize
	}

	report := &domain.ConsolidationReport{}

	active, err := c.store.List(ctx, true)
	if err != nil {
		return report, fmt.Errorf("consolidate: list active: %w", err)
	}
	report.ActiveBefore = len(active)
	progress(5)

	valueOf := c.valueFunc(ctx, active)
	clusters := c.detector.FindClusters(active, valueOf)
	for _, cl := range clusters {
		for _, rec := range cl.Recommendations {
			if rec.AutoApply {
				report.Applied = append(report.Applied, rec)
			} else {
				report.PendingReview = append(report.PendingReview, rec)
			}
		}
	}
	progress(10)

	if err := c.mergePhase(ctx, report, params.DryRun, batchSize, progress); err != nil {
		return report, err
	}

	if err := c.prunePhase(ctx, report, params, batchSize, progress); err != nil {
		return report, err
	}

	after, err := c.store.CountActive(ctx)
	if err != nil {
		return report, fmt.Errorf("consolidate: count active: %w", err)
	}
	report.ActiveAfter = after
	progress(100)
	return report, nil
}

// mergePhase applies auto-approved merges in batches.
func (c *Controller) mergePhase(ctx context.Context, report *domain.ConsolidationReport, dryRun bool, batchSize int, progress func(int)) error {
	total := len(report.Applied)
	if total == 0 || dryRun {
		// Merged counts applied merges only; on a dry run the plan is
		// already carried by report.Applied.
		progress(60)
		return nil
	}

	for start := 0; start < total; start += batchSize {
		if err := c.batchGate(ctx); err != nil {
			return err
		}
		end := start + batchSize
		if end > total {
			end = total
		}
		for _, rec := range report.Applied[start:end] {
			if err := c.ApplyMerge(ctx, rec.MemberType, rec.CanonicalType); err != nil {
				return fmt.Errorf("consolidate: merge %s into %s: %w", rec.MemberType, rec.CanonicalType, err)
			}
			report.Merged++
		}
		report.Batches++
		progress(10 + 50*report.Merged/total)
	}
	return nil
}

// prunePhase enforces the size window over post-merge counts. Non-builtin
// types are ranked by structural value ascending; the excess is deleted when
// unused or deactivated when edges still reference it. Deleting a used type
// would orphan edge type references, so it is never a deletion candidate.
func (c *Controller) prunePhase(ctx context.Context, report *domain.ConsolidationReport, params RunParams, batchSize int, progress func(int)) error {
	target := params.TargetSize
	if target <= 0 {
		target = c.cfg.SoftMax
	}

	active, err := c.store.List(ctx, true)
	if err != nil {
		return fmt.Errorf("consolidate: list active: %w", err)
	}

	floor := c.cfg.Min
	builtins := 0
	for _, vt := range active {
		if vt.IsBuiltin {
			builtins++
		}
	}
	if builtins > floor {
		floor = builtins
	}
	if target < floor {
		target = floor
	}

	excess := len(active) - target
	if excess <= 0 {
		progress(95)
		return nil
	}

	candidates := make([]domain.VocabularyType, 0, len(active))
	scores := make(map[string]float64, len(active))
	valueOf := c.valueFunc(ctx, active)
	for _, vt := range active {
		if vt.IsBuiltin {
			continue
		}
		candidates = append(candidates, vt)
		scores[vt.Name] = valueOf(vt.Name)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if scores[candidates[i].Name] != scores[candidates[j].Name] {
			return scores[candidates[i].Name] < scores[candidates[j].Name]
		}
		return candidates[i].Name < candidates[j].Name
	})
	if excess > len(candidates) {
		excess = len(candidates)
	}

	pruned := 0
	for start := 0; start < excess; start += batchSize {
		if err := c.batchGate(ctx); err != nil {
			return err
		}
		end := start + batchSize
		if end > excess {
			end = excess
		}
		for _, vt := range candidates[start:end] {
			action := domain.ActionDeactivate
			if vt.UsageCount == 0 {
				action = domain.ActionDelete
			}
			if params.DryRun {
				report.PendingReview = append(report.PendingReview, domain.MergeRecommendation{
					MemberType:  vt.Name,
					Action:      action,
					MemberValue: scores[vt.Name],
				})
			} else if action == domain.ActionDelete {
				if err := c.deleteType(ctx, vt); err != nil {
					return err
				}
				report.Deleted++
			} else {
				if err := c.DeactivateType(ctx, vt.Name); err != nil {
					return err
				}
				report.Deactivated++
			}
			pruned++
		}
		report.Batches++
		progress(60 + 35*pruned/excess)
	}
	return nil
}

// ApplyMerge rewrites every edge of member to canonical, sums usage counts,
// and archives the member as an inactive synonym. The edge rewrite and both
// record writes commit in one transaction, so a failed merge changes nothing
// and a retry starts over from unchanged counts. Re-applying a completed
// merge is a no-op: the member record is already archived.
func (c *Controller) ApplyMerge(ctx context.Context, memberName, canonicalName string) error {
	if memberName == canonicalName {
		return fmt.Errorf("consolidate: %s: %w", memberName, domain.ErrSelfMerge)
	}

	member, err := c.store.Get(ctx, memberName)
	if err != nil {
		if errors.Is(err, domain.ErrTypeNotFound) {
			return nil // already merged away
		}
		return err
	}
	if member.IsBuiltin {
		return fmt.Errorf("consolidate: merge %s: %w", memberName, domain.ErrBuiltinProtected)
	}
	if member.MergedInto != "" {
		return nil // already archived
	}

	canonical, err := c.store.Get(ctx, canonicalName)
	if err != nil {
		return err
	}

	canonical.UsageCount += member.UsageCount
	canonical.Synonyms = fn.Unique(append(append(canonical.Synonyms, member.Name), member.Synonyms...))
	member.IsActive = false
	member.MergedInto = canonical.Name
	member.UsageCount = 0

	moved, err := c.merger.MergeTypes(ctx, member, canonical)
	if err != nil {
		return err
	}

	if c.index != nil {
		if err := c.index.Remove(ctx, member.Name); err != nil {
			c.log.Warn("consolidate: index remove failed", "type", member.Name, "error", err)
		}
	}
	c.log.Info("consolidate: merged type",
		"member", member.Name, "canonical", canonical.Name, "edges_moved", moved)
	return nil
}

// DeactivateType marks a type inactive: existing edges stay queryable, new
// edges of this type are no longer accepted. Builtins are protected.
func (c *Controller) DeactivateType(ctx context.Context, name string) error {
	vt, err := c.store.Get(ctx, name)
	if err != nil {
		return err
	}
	if vt.IsBuiltin {
		return fmt.Errorf("consolidate: deactivate %s: %w", name, domain.ErrBuiltinProtected)
	}
	if !vt.IsActive {
		return nil
	}
	vt.IsActive = false
	if err := c.store.Update(ctx, vt); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.SetActive(ctx, name, false); err != nil {
			c.log.Warn("consolidate: index deactivate failed", "type", name, "error", err)
		}
	}
	c.log.Info("consolidate: deactivated type", "type", name, "usage", vt.UsageCount)
	return nil
}

func (c *Controller) deleteType(ctx context.Context, vt domain.VocabularyType) error {
	if vt.IsBuiltin {
		return fmt.Errorf("consolidate: delete %s: %w", vt.Name, domain.ErrBuiltinProtected)
	}
	if vt.UsageCount != 0 {
		return fmt.Errorf("consolidate: delete %s with %d edges would orphan them: %w",
			vt.Name, vt.UsageCount, domain.ErrInvalidEdge)
	}
	if err := c.store.Delete(ctx, vt.Name); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Remove(ctx, vt.Name); err != nil {
			c.log.Warn("consolidate: index remove failed", "type", vt.Name, "error", err)
		}
	}
	c.log.Info("consolidate: deleted unused type", "type", vt.Name)
	return nil
}

// batchGate checks cancellation and applies the inter-batch throttle.
func (c *Controller) batchGate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Throttle != nil {
		if err := c.Throttle.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// valueFunc memoizes value scores for one pass.
func (c *Controller) valueFunc(ctx context.Context, types []domain.VocabularyType) func(string) float64 {
	cache := make(map[string]float64, len(types))
	byName := make(map[string]domain.VocabularyType, len(types))
	for _, vt := range types {
		byName[vt.Name] = vt
	}
	return func(name string) float64 {
		if v, ok := cache[name]; ok {
			return v
		}
		vt, ok := byName[name]
		if !ok {
			return 0
		}
		v, err := c.scorer.Score(ctx, vt)
		if err != nil {
			c.log.Warn("consolidate: value score failed", "type", name, "error", err)
			v = 0
		}
		cache[name] = v
		return v
	}
}

