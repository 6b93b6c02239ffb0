package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/WessleyAI/evalpipe/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upserted  *pb.UpsertPoints
	upsertErr error
	searched  *pb.SearchPoints
	searchRes *pb.SearchResponse
	searchErr error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchRes, m.searchErr
}

type mockCollections struct {
	created   *pb.CreateCollection
	createErr error
	deleted   []string
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{}, nil
}

func scored(num uint64, score float32) *pb.ScoredPoint {
	return &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: num}},
		Score: score,
	}
}

// --- Tests ---

func TestQdrantBuildSearchClose(t *testing.T) {
	points := &mockPoints{searchRes: &pb.SearchResponse{Result: []*pb.ScoredPoint{scored(1, 2)}}}
	cols := &mockCollections{}
	b := newQdrantBuilderWithClients(points, cols, "test")
	ctx := context.Background()

	idx, err := b.Build(ctx, [][]float32{{0, 0}, {1, 1}})
	if err != nil {
		t.Fatal(err)
	}
	name := cols.created.GetCollectionName()
	if !strings.HasPrefix(name, "test-") {
		t.Errorf("unexpected collection name %q", name)
	}
	if got := cols.created.GetVectorsConfig().GetParams().GetDistance(); got != pb.Distance_Euclid {
		t.Errorf("expected Euclid distance, got %v", got)
	}
	if len(points.upserted.GetPoints()) != 2 {
		t.Errorf("expected 2 points upserted")
	}

	hits, err := idx.Search(ctx, []float32{1, 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Pos != 1 || hits[0].Distance != 4 {
		t.Errorf("expected squared distance 4 at pos 1, got %+v", hits)
	}
	if points.searched.GetLimit() != 1 {
		t.Errorf("limit = %d", points.searched.GetLimit())
	}

	if err := idx.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != name {
		t.Errorf("expected collection %s dropped, got %v", name, cols.deleted)
	}
}

func TestQdrantUpsertFailureDropsCollection(t *testing.T) {
	points := &mockPoints{upsertErr: errors.New("unavailable")}
	cols := &mockCollections{}
	b := newQdrantBuilderWithClients(points, cols, "test")
	if _, err := b.Build(context.Background(), [][]float32{{1}}); err == nil {
		t.Fatal("expected error")
	}
	if len(cols.deleted) != 1 {
		t.Error("expected temporary collection to be dropped")
	}
}

func TestQdrantBuildRejectsMixedDims(t *testing.T) {
	b := newQdrantBuilderWithClients(&mockPoints{}, &mockCollections{}, "test")
	if _, err := b.Build(context.Background(), [][]float32{{1, 2}, {1}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNearestChunkWithQdrant(t *testing.T) {
	points := &mockPoints{searchRes: &pb.SearchResponse{Result: []*pb.ScoredPoint{scored(0, 1)}}}
	cols := &mockCollections{}
	b := newQdrantBuilderWithClients(points, cols, "nn")
	chunks := []domain.ContextChunk{{ID: "x", Text: "x"}, {ID: "y", Text: "y"}}
	m, ok, err := NearestChunk(context.Background(), b, []float32{0, 0}, chunks, [][]float32{{0, 1}, {5, 5}})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if m.Chunk.ID != "x" || m.Distance != 1 {
		t.Errorf("unexpected match %+v", m)
	}
	if len(cols.deleted) != 1 {
		t.Error("index must be closed after the query")
	}
}
