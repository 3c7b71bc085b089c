// internal/rag/qdrant.go
package rag

import (
	"context"
	"fmt"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mwiater/sage/internal/logging"
)

const qdrantBatchSize = 256

// QdrantStore keeps the passage vectors in a Qdrant collection. The collection
// is recreated when the store is built and only searched afterwards.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	count       int
	dim         int
}

// NewQdrantStore connects to Qdrant over gRPC and indexes passages into collection.
func NewQdrantStore(ctx context.Context, addr, collection string, passages []Passage, vectors [][]float64) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
	if err := s.index(ctx, passages, vectors); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) index(ctx context.Context, passages []Passage, vectors [][]float64) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("passages and vectors length mismatch: %d != %d", len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return ErrEmptyStore
	}
	s.dim = len(vectors[0])

	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("qdrant drop collection %s: %w", s.collection, err)
	}
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(s.dim), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}

	wait := true
	for start := 0; start < len(passages); start += qdrantBatchSize {
		end := min(start+qdrantBatchSize, len(passages))
		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			if len(vectors[i]) != s.dim {
				return fmt.Errorf("passage %d has dimension %d, expected %d", passages[i].Position, len(vectors[i]), s.dim)
			}
			points = append(points, toPoint(passages[i], vectors[i]))
		}
		_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert passages %d-%d: %w", start, end-1, err)
		}
	}
	s.count = len(passages)
	logging.LogEvent("qdrant collection %s indexed %d passages (dim=%d)", s.collection, s.count, s.dim)
	return nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, vector []float64, k int) ([]ScoredPassage, error) {
	if s.count == 0 {
		return nil, ErrEmptyStore
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vector), s.dim)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         toFloat32(vector),
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]ScoredPassage, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		payload := pt.GetPayload()
		results[i] = ScoredPassage{
			Passage: Passage{
				ID:       pt.GetId().GetUuid(),
				Position: int(payload["position"].GetIntegerValue()),
				Text:     payload["text"].GetStringValue(),
			},
			Score: float64(pt.GetScore()),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})
	return results, nil
}

// Len implements Store.
func (s *QdrantStore) Len() int {
	return s.count
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func toPoint(p Passage, vector []float64) *pb.PointStruct {
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: toFloat32(vector)}}},
		Payload: map[string]*pb.Value{
			"text":     {Kind: &pb.Value_StringValue{StringValue: p.Text}},
			"position": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.Position)}},
		},
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

var _ Store = (*QdrantStore)(nil)
