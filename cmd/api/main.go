// Package main implements the knowledge-graph API server: vocabulary
// lifecycle, edge ingestion, grounding evaluation, and consolidation jobs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/consolidate"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/graphstore"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/grounding"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/ingest"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/semantic"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/embed"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/metrics"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/mid"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/natsutil"
)

// EmbeddingDims is the vector size of the nomic-embed-text model.
const EmbeddingDims = 768

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	OllamaURL  string
	EmbedModel string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	NATSURL    string
	CORSOrigin string

	VocabMin      int
	VocabSoftMax  int
	VocabHardMax  int
	BatchSize     int
	BatchesPerSec float64
}

func loadConfig() Config {
	win := consolidate.DefaultConfig()
	return Config{
		Port:          envOr("PORT", "8080"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:    envOr("EMBED_MODEL", "nomic-embed-text"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "vocab_types"),
		NATSURL:       envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		VocabMin:      envInt("VOCAB_MIN", win.Min),
		VocabSoftMax:  envInt("VOCAB_SOFT_MAX", win.SoftMax),
		VocabHardMax:  envInt("VOCAB_HARD_MAX", win.HardMax),
		BatchSize:     envInt("CONSOLIDATE_BATCH_SIZE", win.BatchSize),
		BatchesPerSec: envFloat("CONSOLIDATE_BATCHES_PER_SEC", 0),
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graphstore.New(driver)

	// --- Connect to Qdrant ---
	index, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, EmbeddingDims); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	// --- Embedding client (Ollama) ---
	embCfg := embed.DefaultConfig()
	embCfg.BaseURL = cfg.OllamaURL
	embCfg.Model = cfg.EmbedModel
	embedder := embed.New(embCfg)

	// --- NATS (optional: the API works without events, just degraded) ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("kg-api"))
	if err != nil {
		logger.Warn("nats unavailable, events and queue ingestion disabled", "err", err)
		nc = nil
	} else {
		defer nc.Close()
	}

	// --- Seed the vocabulary ---
	if err := vocab.Bootstrap(ctx, store, embedder, index, logger); err != nil {
		return fmt.Errorf("bootstrap vocabulary: %w", err)
	}
	seeds, err := seedRecords(ctx, store)
	if err != nil {
		return fmt.Errorf("load seed records: %w", err)
	}

	// --- Metrics ---
	reg := metrics.New()
	discovered := reg.Counter("kg_vocab_discovered_total", "New vocabulary types created by discovery")
	edgesRecorded := reg.Counter("kg_edges_recorded_total", "Edges written to the graph")
	jobsSubmitted := reg.Counter("kg_consolidation_jobs_total", "Consolidation jobs submitted")
	activeGauge := reg.Gauge("kg_vocab_active", "Active vocabulary types at last count")

	// --- Vocabulary services ---
	cat := vocab.NewCategorizer(seeds)
	resolver := vocab.NewResolver(store, embedder, index, cat,
		vocab.ResolverConfig{HardMax: cfg.VocabHardMax}, logger)
	resolver.OnDiscovered = func(ctx context.Context, vt domain.VocabularyType) {
		discovered.Inc()
		if nc == nil {
			return
		}
		if err := natsutil.Publish(ctx, nc, "kg.vocab.discovered", vt); err != nil {
			logger.Warn("publish discovery event", "type", vt.Name, "err", err)
		}
	}

	detector := vocab.NewDetector(vocab.DefaultDetectorConfig())
	scorer := vocab.NewValueScorer(store, vocab.DefaultValueConfig())

	// --- Grounding ---
	grounder := grounding.NewService(store, typePolarity(store), grounding.DefaultConfig(), logger)

	// --- Consolidation ---
	ctrl := consolidate.NewController(store, store, detector, scorer, index, consolidate.Config{
		Min:       cfg.VocabMin,
		SoftMax:   cfg.VocabSoftMax,
		HardMax:   cfg.VocabHardMax,
		BatchSize: cfg.BatchSize,
	}, logger)
	runner := consolidate.NewRunner(ctrl, consolidate.RunnerConfig{
		BatchesPerSecond: cfg.BatchesPerSec,
	}, logger)
	runner.OnStatus = func(job domain.ConsolidationJob) {
		if nc == nil {
			return
		}
		subject := fmt.Sprintf("kg.jobs.%s.status", job.ID)
		if err := natsutil.Publish(context.Background(), nc, subject, job); err != nil {
			logger.Warn("publish job status", "job", job.ID, "err", err)
		}
	}

	// --- Edge ingestion ---
	pipeDeps := ingest.Deps{Resolver: resolver, Store: store, Logger: logger}
	pipeline := ingest.NewPipeline(pipeDeps)
	if nc != nil {
		sub, err := ingest.StartConsumer(nc, pipeDeps)
		if err != nil {
			return fmt.Errorf("edge consumer: %w", err)
		}
		defer sub.Drain()
	}

	// --- Build HTTP server ---
	a := &api{
		vocab:         store,
		resolver:      resolver,
		clusters:      ctrl,
		runner:        runner,
		grounder:      grounder,
		concepts:      graphstore.NewConceptRepo(driver),
		stats:         store,
		pipeline:      pipeline,
		edgesRecorded: edgesRecorded,
		jobsSubmitted: jobsSubmitted,
		activeGauge:   activeGauge,
		log:           logger,
	}

	mux := a.routes()
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("kg-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// seedRecords loads the persisted seed types; the categorizer needs their
// stored embeddings, not the static seed table.
func seedRecords(ctx context.Context, store vocab.Store) ([]domain.VocabularyType, error) {
	var out []domain.VocabularyType
	for _, name := range vocab.SeedNames() {
		vt, err := store.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		out = append(out, vt)
	}
	return out, nil
}

// typePolarity resolves a relationship type's evidential sign from its
// stored record. Unknown types count as unsigned.
func typePolarity(store vocab.Store) grounding.PolarityFunc {
	return func(ctx context.Context, typeName string) float64 {
		vt, err := store.Get(ctx, typeName)
		if err != nil {
			return 0
		}
		return vt.Polarity
	}
}
