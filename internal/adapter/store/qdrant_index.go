package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ecom-support/internal/domain/entity"
)

const (
	upsertBatchSize = 256
	// tieWindow is the page size used while resolving equal scores by
	// position instead of by Qdrant's internal order.
	tieWindow   = 8
	positionKey = "position"
)

// QdrantIndex keeps one collection per record kind. Each point carries its
// record position in the payload.
type QdrantIndex struct {
	client         *qdrant.Client
	collectionName string
	logger         *zap.Logger
}

func NewQdrantIndex(client *qdrant.Client, collectionName string, logger *zap.Logger) *QdrantIndex {
	return &QdrantIndex{
		client:         client,
		collectionName: collectionName,
		logger:         logger,
	}
}

// Build recreates the collection so it holds exactly the given vectors.
func (s *QdrantIndex) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return entity.ErrEmptyCollection
	}
	if err := s.initCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return err
	}

	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(s.collectionName, i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{positionKey: int64(i)}),
			})
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Nearest returns the best position. Hits are read a page at a time for as
// long as the last hit of a page still ties the best score, so the lowest
// tied position is found whatever the size of the tie.
func (s *QdrantIndex) Nearest(ctx context.Context, vector []float32) (int, float32, error) {
	hits, err := collectTies(func(offset uint64) ([]scoredPosition, error) {
		return s.queryPage(ctx, vector, offset)
	})
	if err != nil {
		return -1, 0, err
	}
	if len(hits) == 0 {
		return -1, 0, entity.ErrEmptyCollection
	}
	best := pickBest(hits)
	return best.position, best.score, nil
}

func (s *QdrantIndex) queryPage(ctx context.Context, vector []float32, offset uint64) ([]scoredPosition, error) {
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(tieWindow)),
		Offset:         qdrant.PtrOf(offset),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.collectionName, err)
	}
	hits := make([]scoredPosition, 0, len(res))
	for _, hit := range res {
		hits = append(hits, scoredPosition{
			position: int(hit.GetPayload()[positionKey].GetIntegerValue()),
			score:    hit.GetScore(),
		})
	}
	return hits, nil
}

// collectTies pulls score-ordered pages of tieWindow hits until a page is
// short or ends below the top score.
func collectTies(fetch func(offset uint64) ([]scoredPosition, error)) ([]scoredPosition, error) {
	var hits []scoredPosition
	for offset := uint64(0); ; offset += tieWindow {
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}
		hits = append(hits, page...)
		if len(page) < tieWindow || page[len(page)-1].score < hits[0].score {
			return hits, nil
		}
	}
}

func (s *QdrantIndex) initCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err == nil {
		s.logger.Info("dropping stale collection", zap.String("collection", s.collectionName))
		if err := s.client.DeleteCollection(ctx, s.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	} else if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		return err
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

type scoredPosition struct {
	position int
	score    float32
}

// pickBest returns the highest score, preferring the lowest position on ties.
func pickBest(hits []scoredPosition) scoredPosition {
	best := hits[0]
	for _, h := range hits[1:] {
		if h.score > best.score || (h.score == best.score && h.position < best.position) {
			best = h
		}
	}
	return best
}

// PointID derives a stable point id for a record position in a collection.
func PointID(collection string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s/%d", collection, position)).String()
}
