package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/consolidate"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/graphstore"
	"github.com/aaronsb/knowledge-graph-system-sub016/engine/ingest"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/metrics"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/repo"
)

// Narrow views of the engine services, one per handler concern.
type (
	vocabReader interface {
		Get(ctx context.Context, name string) (domain.VocabularyType, error)
		List(ctx context.Context, activeOnly bool) ([]domain.VocabularyType, error)
		CountActive(ctx context.Context) (int, error)
	}

	typeResolver interface {
		Resolve(ctx context.Context, proposed string) (domain.Resolution, error)
	}

	clusterSource interface {
		Clusters(ctx context.Context) ([]domain.Cluster, error)
		Recommendations(ctx context.Context) ([]domain.MergeRecommendation, error)
	}

	jobRunner interface {
		Submit(params consolidate.RunParams) (uuid.UUID, error)
		Get(id uuid.UUID) (domain.ConsolidationJob, error)
		List() []domain.ConsolidationJob
		Cancel(id uuid.UUID) error
		Delete(id uuid.UUID) error
	}

	conceptEvaluator interface {
		Evaluate(ctx context.Context, conceptID string) (domain.GroundingResult, error)
	}

	graphCounts interface {
		NodeCounts(ctx context.Context) (map[string]int64, error)
		RelationshipCounts(ctx context.Context) (map[string]int64, error)
	}
)

type api struct {
	vocab         vocabReader
	resolver      typeResolver
	clusters      clusterSource
	runner        jobRunner
	grounder      conceptEvaluator
	concepts      repo.Repository[graphstore.Concept, string]
	stats         graphCounts
	pipeline      fn.Stage[ingest.EdgeSubmission, ingest.RecordedEdge]
	edgesRecorded *metrics.Counter
	jobsSubmitted *metrics.Counter
	activeGauge   *metrics.Gauge
	log           *slog.Logger
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/vocabulary", a.handleListVocabulary)
	mux.HandleFunc("GET /api/vocabulary/clusters", a.handleClusters)
	mux.HandleFunc("GET /api/vocabulary/recommendations", a.handleRecommendations)
	mux.HandleFunc("GET /api/vocabulary/{name}", a.handleGetVocabulary)
	mux.HandleFunc("POST /api/vocabulary/resolve", a.handleResolve)
	mux.HandleFunc("POST /api/edges", a.handleSubmitEdge)
	mux.HandleFunc("GET /api/concepts/{id}", a.handleGetConcept)
	mux.HandleFunc("GET /api/concepts/{id}/grounding", a.handleGrounding)
	mux.HandleFunc("POST /api/consolidation", a.handleSubmitJob)
	mux.HandleFunc("GET /api/consolidation", a.handleListJobs)
	mux.HandleFunc("GET /api/consolidation/{id}", a.handleGetJob)
	mux.HandleFunc("POST /api/consolidation/{id}/cancel", a.handleCancelJob)
	mux.HandleFunc("DELETE /api/consolidation/{id}", a.handleDeleteJob)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleListVocabulary(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = b
	}
	types, err := a.vocab.List(r.Context(), activeOnly)
	if err != nil {
		a.fail(w, "list vocabulary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types, "count": len(types)})
}

func (a *api) handleGetVocabulary(w http.ResponseWriter, r *http.Request) {
	vt, err := a.vocab.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		a.fail(w, "get vocabulary type", err)
		return
	}
	writeJSON(w, http.StatusOK, vt)
}

// ResolveRequest is the JSON body for POST /api/vocabulary/resolve.
type ResolveRequest struct {
	Type string `json:"type"`
}

func (a *api) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	res, err := a.resolver.Resolve(r.Context(), req.Type)
	if err != nil {
		a.fail(w, "resolve type", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := a.clusters.Clusters(r.Context())
	if err != nil {
		a.fail(w, "detect clusters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters, "count": len(clusters)})
}

func (a *api) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := a.clusters.Recommendations(r.Context())
	if err != nil {
		a.fail(w, "merge recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs, "count": len(recs)})
}

func (a *api) handleSubmitEdge(w http.ResponseWriter, r *http.Request) {
	var sub ingest.EdgeSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := a.pipeline(r.Context(), sub).Unwrap()
	if err != nil {
		a.fail(w, "record edge", err)
		return
	}
	if a.edgesRecorded != nil {
		a.edgesRecorded.Inc()
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *api) handleGetConcept(w http.ResponseWriter, r *http.Request) {
	c, err := a.concepts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "concept not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleGrounding(w http.ResponseWriter, r *http.Request) {
	res, err := a.grounder.Evaluate(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "evaluate grounding", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var params consolidate.RunParams
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	id, err := a.runner.Submit(params)
	if err != nil {
		a.fail(w, "submit consolidation", err)
		return
	}
	if a.jobsSubmitted != nil {
		a.jobsSubmitted.Inc()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "status": domain.JobPending})
}

func (a *api) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := a.runner.List()
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (a *api) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.jobID(w, r)
	if !ok {
		return
	}
	job, err := a.runner.Get(id)
	if err != nil {
		a.fail(w, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *api) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.jobID(w, r)
	if !ok {
		return
	}
	if err := a.runner.Cancel(id); err != nil {
		a.fail(w, "cancel job", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (a *api) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.jobID(w, r)
	if !ok {
		return
	}
	if err := a.runner.Delete(id); err != nil {
		a.fail(w, "delete job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleStats(w http.ResponseWriter, r *http.Request) {
	nodes, err := a.stats.NodeCounts(r.Context())
	if err != nil {
		a.fail(w, "node counts", err)
		return
	}
	rels, err := a.stats.RelationshipCounts(r.Context())
	if err != nil {
		a.fail(w, "relationship counts", err)
		return
	}
	active, err := a.vocab.CountActive(r.Context())
	if err != nil {
		a.fail(w, "active count", err)
		return
	}
	if a.activeGauge != nil {
		a.activeGauge.Set(int64(active))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":             nodes,
		"relationships":     rels,
		"vocabulary_active": active,
	})
}

func (a *api) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

// fail maps engine errors to HTTP statuses and logs server-side failures.
func (a *api) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrTypeNotFound), errors.Is(err, domain.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTypeName), errors.Is(err, domain.ErrInvalidEdge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrJobNotCancellable), errors.Is(err, domain.ErrVocabularyFull),
		errors.Is(err, domain.ErrTypeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		if a.log != nil {
			a.log.Error(op+" failed", "err", err)
		}
		writeError(w, http.StatusServiceUnavailable, "embedding service unavailable")
	default:
		if a.log != nil {
			a.log.Error(op+" failed", "err", err)
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
