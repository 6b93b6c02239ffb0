package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the subset of pb.PointsClient used here.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient used here.
type collectionsAPI interface {
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantBuilder builds indexes as temporary Qdrant collections using the
// Euclid metric. Each Build creates its own collection, dropped on Close.
type QdrantBuilder struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	prefix      string
}

// NewQdrantBuilder dials Qdrant's gRPC endpoint at addr.
func NewQdrantBuilder(addr, prefix string) (*QdrantBuilder, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	if prefix == "" {
		prefix = "eval"
	}
	return &QdrantBuilder{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		prefix:      prefix,
	}, nil
}

func newQdrantBuilderWithClients(points pointsAPI, collections collectionsAPI, prefix string) *QdrantBuilder {
	return &QdrantBuilder{points: points, collections: collections, prefix: prefix}
}

// Close closes the gRPC connection.
func (q *QdrantBuilder) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func (q *QdrantBuilder) Build(ctx context.Context, vecs [][]float32) (Index, error) {
	if len(vecs) == 0 {
		return nil, fmt.Errorf("semantic: qdrant: no vectors to index")
	}
	dims := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}

	name := fmt.Sprintf("%s-%s", q.prefix, uuid.NewString())
	_, err := q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	idx := &qdrantIndex{points: q.points, collections: q.collections, name: name, dims: dims}

	points := make([]*pb.PointStruct, len(vecs))
	for i, v := range vecs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(i)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: v},
				},
			},
		}
	}
	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		_ = idx.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return idx, nil
}

type qdrantIndex struct {
	points      pointsAPI
	collections collectionsAPI
	name        string
	dims        int
}

// Search converts Qdrant's Euclid scores (plain distances) to squared distances.
func (i *qdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != i.dims {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(query), i.dims)
	}
	resp, err := i.points.Search(ctx, &pb.SearchPoints{
		CollectionName: i.name,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}
	hits := make([]Hit, len(resp.GetResult()))
	for j, r := range resp.GetResult() {
		d := float64(r.GetScore())
		hits[j] = Hit{Pos: int(r.GetId().GetNum()), Distance: d * d}
	}
	return hits, nil
}

func (i *qdrantIndex) Close(ctx context.Context) error {
	_, err := i.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: i.name})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", i.name, err)
	}
	return nil
}
