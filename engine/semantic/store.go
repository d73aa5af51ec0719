// Package semantic owns all Qdrant operations. It maintains one point per
// vocabulary type, keyed by a deterministic UUID of the type name, and serves
// the fuzzy-match and clustering lookups.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/aaronsb/knowledge-graph-system-sub016/engine/vocab"
)

// pointsAPI is the slice of pb.PointsClient this package uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	SetPayload(ctx context.Context, in *pb.SetPayloadPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient this package uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore indexes vocabulary-type embeddings in Qdrant.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

var _ vocab.SimilarityIndex = (*VectorStore)(nil)

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore over pre-built clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// PointID derives the stable point UUID for a vocabulary-type name. Upserts
// of the same name always land on the same point.
func PointID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores one vocabulary-type embedding with its name and active flag.
func (v *VectorStore) Upsert(ctx context.Context, name string, vec []float32, active bool) error {
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(name)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: map[string]*pb.Value{
				"name":   {Kind: &pb.Value_StringValue{StringValue: name}},
				"active": {Kind: &pb.Value_BoolValue{BoolValue: active}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %s: %w", name, err)
	}
	return nil
}

// Nearest returns up to k most similar vocabulary types, optionally
// restricted to active ones.
func (v *VectorStore) Nearest(ctx context.Context, vec []float32, k int, activeOnly bool) ([]vocab.Match, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if activeOnly {
		req.Filter = &pb.Filter{Must: []*pb.Condition{activeMatch(true)}}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	matches := make([]vocab.Match, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		name := r.GetPayload()["name"].GetStringValue()
		if name == "" {
			continue
		}
		matches = append(matches, vocab.Match{
			Name:       name,
			Similarity: float64(r.GetScore()),
		})
	}
	return matches, nil
}

// SetActive flips the active flag on a type's point without touching its
// vector.
func (v *VectorStore) SetActive(ctx context.Context, name string, active bool) error {
	wait := true
	_, err := v.points.SetPayload(ctx, &pb.SetPayloadPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Payload: map[string]*pb.Value{
			"active": {Kind: &pb.Value_BoolValue{BoolValue: active}},
		},
		PointsSelector: idSelector(name),
	})
	if err != nil {
		return fmt.Errorf("semantic: set active %s=%t: %w", name, active, err)
	}
	return nil
}

// Remove deletes a type's point.
func (v *VectorStore) Remove(ctx context.Context, name string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         idSelector(name),
	})
	if err != nil {
		return fmt.Errorf("semantic: remove %s: %w", name, err)
	}
	return nil
}

func idSelector(name string) *pb.PointsSelector {
	return &pb.PointsSelector{
		PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{
				Ids: []*pb.PointId{{
					PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(name)},
				}},
			},
		},
	}
}

func activeMatch(active bool) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: "active",
				Match: &pb.Match{
					MatchValue: &pb.Match_Boolean{Boolean: active},
				},
			},
		},
	}
}
