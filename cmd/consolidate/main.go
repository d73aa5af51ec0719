// Command consolidate runs one vocabulary consolidation pass from the shell:
// synonym merges above the auto-apply bar, then size-based pruning down to
// the target window. Use --dry-run to print the plan without mutating the
// graph.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/consolidate"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/graphstore"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/semantic"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "plan merges and prunes without applying them")
	target := flag.Int("target", 0, "prune target size (0 uses the configured soft max)")
	batch := flag.Int("batch-size", 0, "merges per transaction (0 uses the default)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	neo4jURL := envOr("NEO4J_URL", "neo4j://localhost:7687")
	neo4jUser := envOr("NEO4J_USER", "neo4j")
	neo4jPass := envOr("NEO4J_PASS", "password")
	qdrantURL := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "vocab_types")

	driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		log.Fatalf("neo4j connect: %v", err)
	}
	defer driver.Close(ctx)

	index, err := semantic.New(qdrantURL, collection)
	if err != nil {
		log.Fatalf("qdrant connect: %v", err)
	}
	defer index.Close()

	store := graphstore.New(driver)

	cfg := consolidate.DefaultConfig()
	cfg.Min = envInt("VOCAB_MIN", cfg.Min)
	cfg.SoftMax = envInt("VOCAB_SOFT_MAX", cfg.SoftMax)
	cfg.HardMax = envInt("VOCAB_HARD_MAX", cfg.HardMax)

	ctrl := consolidate.NewController(
		store,
		store,
		vocab.NewDetector(vocab.DefaultDetectorConfig()),
		vocab.NewValueScorer(store, vocab.DefaultValueConfig()),
		index,
		cfg,
		nil,
	)

	params := consolidate.RunParams{DryRun: *dryRun, TargetSize: *target, BatchSize: *batch}

	report, err := ctrl.Run(ctx, params, func(pct int) {
		log.Printf("progress: %d%%", pct)
	})
	if err != nil {
		log.Fatalf("consolidation failed: %v", err)
	}

	mode := "applied"
	if *dryRun {
		mode = "planned (dry run, nothing changed)"
	}
	log.Printf("Done (%s). Active: %d -> %d. Merged: %d, deactivated: %d, deleted: %d, batches: %d",
		mode, report.ActiveBefore, report.ActiveAfter,
		report.Merged, report.Deactivated, report.Deleted, report.Batches)

	for _, rec := range report.Applied {
		log.Printf("merged %s -> %s (similarity %.3f)", rec.MemberType, rec.CanonicalType, rec.Similarity)
	}
	for _, rec := range report.PendingReview {
		log.Printf("pending review: %s %s -> %s (similarity %.3f)", rec.Action, rec.MemberType, rec.CanonicalType, rec.Similarity)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
