// Package ingest is the edge-recording pipeline: validate an incoming edge
// proposal, resolve its relationship type against the vocabulary, and store
// the edge with its canonical type.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/domain"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/fn"
	"github.com/aaronsb/knowledge-graph-system-sub016/pkg/natsutil"
)

const (
	// EdgesSubject carries incoming edge submissions.
	EdgesSubject = "kg.edges"
	// DLQSubject is the dead letter queue for submissions that kept failing.
	DLQSubject = "kg.edges.dlq"
	// MaxRetries before a submission lands on the DLQ.
	MaxRetries = 3
)

// TypeResolver resolves a proposed relationship type string to its canonical
// vocabulary type.
type TypeResolver interface {
	Resolve(ctx context.Context, proposed string) (domain.Resolution, error)
}

// EdgeStore persists resolved edges and usage counters.
type EdgeStore interface {
	SaveEdge(ctx context.Context, e domain.ConceptEdge) error
	IncrementUsage(ctx context.Context, typeName string, delta int64) error
}

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Resolver TypeResolver
	Store    EdgeStore
	Logger   *slog.Logger
}

// --- Pipeline stages ---

// Validate rejects malformed submissions before they reach the resolver.
var Validate fn.Stage[EdgeSubmission, EdgeSubmission] = func(_ context.Context, sub EdgeSubmission) fn.Result[EdgeSubmission] {
	probe := domain.ConceptEdge{
		ID:         "probe",
		SourceID:   sub.SourceID,
		TargetID:   sub.TargetID,
		Type:       sub.Type,
		Confidence: sub.Confidence,
	}
	if err := domain.ValidateEdge(probe); err != nil {
		return fn.Err[EdgeSubmission](err)
	}
	return fn.Ok(sub)
}

// NewResolveType creates the stage that maps the proposed type string to a
// canonical vocabulary type, discovering a new type when nothing matches.
func NewResolveType(resolver TypeResolver) fn.Stage[EdgeSubmission, resolvedEdge] {
	return func(ctx context.Context, sub EdgeSubmission) fn.Result[resolvedEdge] {
		res, err := resolver.Resolve(ctx, sub.Type)
		if err != nil {
			return fn.Err[resolvedEdge](fmt.Errorf("resolve type %q: %w", sub.Type, err))
		}
		return fn.Ok(resolvedEdge{sub: sub, res: res})
	}
}

// NewStoreEdge creates the stage that writes the edge under its canonical
// type and bumps that type's usage counter.
func NewStoreEdge(store EdgeStore) fn.Stage[resolvedEdge, RecordedEdge] {
	return func(ctx context.Context, re resolvedEdge) fn.Result[RecordedEdge] {
		edge := domain.ConceptEdge{
			ID:         EdgeID(re.sub.SourceID, re.res.CanonicalType, re.sub.TargetID),
			SourceID:   re.sub.SourceID,
			TargetID:   re.sub.TargetID,
			Type:       re.res.CanonicalType,
			Confidence: re.sub.Confidence,
			Evidence:   re.sub.Evidence,
			Document:   re.sub.Document,
		}
		if err := store.SaveEdge(ctx, edge); err != nil {
			return fn.Err[RecordedEdge](fmt.Errorf("save edge: %w", err))
		}
		if err := store.IncrementUsage(ctx, re.res.CanonicalType, 1); err != nil {
			return fn.Err[RecordedEdge](fmt.Errorf("bump usage %s: %w", re.res.CanonicalType, err))
		}
		return fn.Ok(RecordedEdge{
			EdgeID:     edge.ID,
			Type:       re.res.CanonicalType,
			IsNew:      re.res.IsNew,
			Similarity: re.res.Similarity,
		})
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes Validate → ResolveType → StoreEdge.
func NewPipeline(deps Deps) fn.Stage[EdgeSubmission, RecordedEdge] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[EdgeSubmission]("validate", log), Validate)
	resolved := fn.Then(validated, NewResolveType(deps.Resolver))
	stored := fn.Then(resolved, NewStoreEdge(deps.Store))
	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Submission EdgeSubmission `json:"submission"`
	Error      string         `json:"error"`
	Retries    int            `json:"retries"`
}

// StartConsumer subscribes to the edges subject and runs every submission
// through the pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(EdgesSubject, func(msg *nats.Msg) {
		var sub EdgeSubmission
		if err := json.Unmarshal(msg.Data, &sub); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, sub)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"source_id", sub.SourceID,
				"type", sub.Type,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Submission: sub, Error: pipeErr.Error(), Retries: retries}
				if err := natsutil.Publish(ctx, nc, DLQSubject, dlq); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(EdgesSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			rec, _ := result.Unwrap()
			log.Info("ingest: edge recorded",
				"edge_id", rec.EdgeID, "type", rec.Type, "is_new", rec.IsNew)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
