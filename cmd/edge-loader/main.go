// Command edge-loader watches a directory for JSON files of extracted edges
// and runs them through the ingestion pipeline into Neo4j, resolving each
// relationship type against the vocabulary on the way in. Files that ingest
// cleanly are remembered in a state file; files with errors are retried on
// the next scan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/graphstore"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/ingest"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/semantic"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/embed"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/metrics"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/resilience"
)

var met = metrics.New()

// Loader metrics
var (
	mEdgesTotal     = met.Counter("kg_loader_edges_total", "Edges ingested")
	mEdgeErrors     = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("kg_loader_errors_total", "stage", stage), "Ingestion errors") }
	mNewTypes       = met.Counter("kg_loader_new_types_total", "Vocabulary types discovered during load")
	mFilesProcessed = met.Counter("kg_loader_files_processed_total", "Files processed")
	mBytesProcessed = met.Counter("kg_loader_bytes_processed_total", "Bytes of source files processed")
	mQueueDepth     = met.Gauge("kg_loader_queue_depth", "Files waiting to process")
	mLastScan       = met.Gauge("kg_loader_last_scan_timestamp", "Epoch of last directory scan")
	mFileDur        = met.Histogram("kg_loader_file_duration_seconds", "Per-file ingest time", nil)
)

const vectorDims = 768 // nomic-embed-text

func main() {
	var (
		dataDir    = flag.String("dir", "/var/lib/kg/edges", "directory to watch for edge JSON files")
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		model      = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		neo4jURL   = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser  = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", "password", "Neo4j password")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "vocab_types", "Qdrant collection name")
		interval   = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile  = flag.String("state", "/var/lib/kg/edges/.loader-state.json", "processed files state")
		workers    = flag.Int("workers", 4, "concurrent edge ingestions per file")
		rate       = flag.Float64("rate", 200, "max edges per second")
	)
	flag.Parse()

	met.ServeAsync(9091)

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	index, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer index.Close()
	if err := index.EnsureCollection(ctx, vectorDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

	embCfg := embed.DefaultConfig()
	embCfg.BaseURL = *ollamaURL
	embCfg.Model = *model
	embedder := embed.New(embCfg)
	log.Info("using Ollama embeddings", "model", *model)

	store := graphstore.New(driver)

	if err := vocab.Bootstrap(ctx, store, embedder, index, log); err != nil {
		log.Error("bootstrap vocabulary failed", "error", err)
		os.Exit(1)
	}
	seeds, err := seedRecords(ctx, store)
	if err != nil {
		log.Error("load seed records failed", "error", err)
		os.Exit(1)
	}

	resolver := vocab.NewResolver(store, embedder, index, vocab.NewCategorizer(seeds), vocab.ResolverConfig{}, log)
	resolver.OnDiscovered = func(context.Context, domain.VocabularyType) { mNewTypes.Inc() }

	// Bulk loads share the graph with live traffic; the pipeline is
	// throttled and fanned out per file.
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: *rate, Burst: int(*rate)})
	pipeline := resilience.LimiterStageWait(limiter,
		ingest.NewPipeline(ingest.Deps{Resolver: resolver, Store: store, Logger: log}))
	ingestEdges := func(ctx context.Context, subs []ingest.EdgeSubmission) (int, int) {
		results := fn.ParMapResult(subs, *workers, func(sub ingest.EdgeSubmission) fn.Result[ingest.RecordedEdge] {
			return pipeline(ctx, sub)
		})
		var ok, failed int
		for _, res := range results {
			if _, err := res.Unwrap(); err != nil {
				mEdgeErrors("pipeline").Inc()
				failed++
				continue
			}
			mEdgesTotal.Inc()
			ok++
		}
		return ok, failed
	}

	processed := loadState(*stateFile)

	os.MkdirAll(*dataDir, 0o755)

	log.Info("watching for edge files", "dir", *dataDir, "interval", *interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(*dataDir)
		if err != nil {
			mEdgeErrors("scan").Inc()
			log.Error("readdir failed", "error", err)
			return
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name()[0] == '.' {
				continue
			}
			path := filepath.Join(*dataDir, e.Name())
			info, _ := e.Info()
			key := fmt.Sprintf("%s:%d", e.Name(), info.Size())

			if processed[key] {
				continue
			}

			mQueueDepth.Inc()
			log.Info("processing file", "file", e.Name())
			if info != nil {
				mBytesProcessed.Add(info.Size())
			}
			start := time.Now()
			count, errs := processFile(ctx, path, ingestEdges)
			mFileDur.Since(start)
			mQueueDepth.Dec()
			log.Info("file done", "file", e.Name(), "ingested", count, "errors", errs)
			mFilesProcessed.Inc()

			// Only mark as fully processed if no errors (allows retry on next scan)
			if errs == 0 {
				processed[key] = true
				saveState(*stateFile, processed)
			} else {
				log.Warn("file had errors, will retry on next scan", "file", e.Name(), "errors", errs)
			}
		}
	}

	scan()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// processFile decodes a stream or array of edge submissions and pushes them
// through the pipeline. Returns the ingested and failed counts.
func processFile(ctx context.Context, path string, ingestEdges func(context.Context, []ingest.EdgeSubmission) (int, int)) (int, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		mEdgeErrors("read").Inc()
		return 0, 1
	}

	var subs []ingest.EdgeSubmission

	// Either a JSON array or newline-delimited objects.
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &subs); err != nil {
			mEdgeErrors("decode").Inc()
			return 0, 1
		}
	} else {
		dec := json.NewDecoder(strings.NewReader(trimmed))
		for {
			var sub ingest.EdgeSubmission
			if err := dec.Decode(&sub); err != nil {
				break
			}
			subs = append(subs, sub)
		}
	}

	if ctx.Err() != nil {
		return 0, len(subs)
	}
	return ingestEdges(ctx, subs)
}

func loadState(path string) map[string]bool {
	state := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	json.Unmarshal(data, &state)
	return state
}

func saveState(path string, state map[string]bool) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	os.WriteFile(path, data, 0o644)
}

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
